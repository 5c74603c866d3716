// Package events is the in-process event bus used by session state,
// batch execution and thumbnail loading to notify interested observers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jneless/bkp-drive/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventPathChanged      EventType = "path_changed"
	EventSelectionChanged EventType = "selection_changed"
	EventViewModeChanged  EventType = "view_mode_changed"
	EventAuthChanged      EventType = "auth_changed"

	EventBatchState    EventType = "batch_state"
	EventBatchProgress EventType = "batch_progress"
	EventFolderSkipped EventType = "folder_skipped"

	EventThumbnail EventType = "thumbnail"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// PathChangedEvent is published when the session navigates.
type PathChangedEvent struct {
	BaseEvent
	OldPath string
	NewPath string
}

// SelectionChangedEvent carries the selection after a change, in insertion order.
type SelectionChangedEvent struct {
	BaseEvent
	Selected []string
}

// ViewModeChangedEvent is published when the layout mode switches.
type ViewModeChangedEvent struct {
	BaseEvent
	Mode string
}

// AuthChangedEvent is published on login, logout and token expiry.
type AuthChangedEvent struct {
	BaseEvent
	Authenticated bool
	Username      string
	Reason        string // "login", "logout", "expired"
}

// BatchStateEvent reports an upload batch state transition.
type BatchStateEvent struct {
	BaseEvent
	OldState string
	NewState string
	Err      error
}

// BatchProgressEvent is published after each file of an upload batch.
type BatchProgressEvent struct {
	BaseEvent
	Done    int
	Total   int
	Percent float64
	Current string
}

// FolderSkippedEvent reports a sub-path the resolver could not list.
type FolderSkippedEvent struct {
	BaseEvent
	Path string
	Err  error
}

// ThumbnailEvent reports the outcome of one thumbnail fetch.
type ThumbnailEvent struct {
	BaseEvent
	Key      string
	Fallback bool
	Err      error
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events for a full subscriber are dropped and counted.
// A nil bus is valid and discards everything.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishPathChanged is a convenience wrapper for PathChangedEvent.
func (eb *EventBus) PublishPathChanged(oldPath, newPath string) {
	eb.Publish(&PathChangedEvent{BaseEvent: base(EventPathChanged), OldPath: oldPath, NewPath: newPath})
}

// PublishSelection is a convenience wrapper for SelectionChangedEvent.
func (eb *EventBus) PublishSelection(selected []string) {
	eb.Publish(&SelectionChangedEvent{BaseEvent: base(EventSelectionChanged), Selected: selected})
}

// PublishViewMode is a convenience wrapper for ViewModeChangedEvent.
func (eb *EventBus) PublishViewMode(mode string) {
	eb.Publish(&ViewModeChangedEvent{BaseEvent: base(EventViewModeChanged), Mode: mode})
}

// PublishAuth is a convenience wrapper for AuthChangedEvent.
func (eb *EventBus) PublishAuth(authenticated bool, username, reason string) {
	eb.Publish(&AuthChangedEvent{
		BaseEvent:     base(EventAuthChanged),
		Authenticated: authenticated,
		Username:      username,
		Reason:        reason,
	})
}

// PublishBatchState is a convenience wrapper for BatchStateEvent.
func (eb *EventBus) PublishBatchState(oldState, newState string, err error) {
	eb.Publish(&BatchStateEvent{BaseEvent: base(EventBatchState), OldState: oldState, NewState: newState, Err: err})
}

// PublishBatchProgress is a convenience wrapper for BatchProgressEvent.
func (eb *EventBus) PublishBatchProgress(done, total int, percent float64, current string) {
	eb.Publish(&BatchProgressEvent{
		BaseEvent: base(EventBatchProgress),
		Done:      done,
		Total:     total,
		Percent:   percent,
		Current:   current,
	})
}

// PublishFolderSkipped is a convenience wrapper for FolderSkippedEvent.
func (eb *EventBus) PublishFolderSkipped(path string, err error) {
	eb.Publish(&FolderSkippedEvent{BaseEvent: base(EventFolderSkipped), Path: path, Err: err})
}

// PublishThumbnail is a convenience wrapper for ThumbnailEvent.
func (eb *EventBus) PublishThumbnail(key string, fallback bool, err error) {
	eb.Publish(&ThumbnailEvent{BaseEvent: base(EventThumbnail), Key: key, Fallback: fallback, Err: err})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			close(subCh)
			return
		}
	}
}

// DroppedEvents returns the number of events dropped due to full buffers.
func (eb *EventBus) DroppedEvents() int64 {
	return eb.droppedEvents.Load()
}
