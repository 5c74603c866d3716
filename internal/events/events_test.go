package events

import (
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
		return nil
	}
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventPathChanged)
	bus.PublishPathChanged("", "docs/")

	ev, ok := receive(t, ch).(*PathChangedEvent)
	if !ok {
		t.Fatal("Expected PathChangedEvent")
	}
	if ev.OldPath != "" || ev.NewPath != "docs/" {
		t.Errorf("event = %q -> %q, want \"\" -> \"docs/\"", ev.OldPath, ev.NewPath)
	}
	if ev.Timestamp().IsZero() {
		t.Error("event timestamp not set")
	}
}

func TestEventBus_TypeFiltering(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	sel := bus.Subscribe(EventSelectionChanged)
	all := bus.SubscribeAll()

	bus.PublishViewMode("grid")
	bus.PublishSelection([]string{"a.txt"})

	if got := receive(t, all).Type(); got != EventViewModeChanged {
		t.Errorf("first all-event = %s, want %s", got, EventViewModeChanged)
	}
	if got := receive(t, all).Type(); got != EventSelectionChanged {
		t.Errorf("second all-event = %s, want %s", got, EventSelectionChanged)
	}

	ev := receive(t, sel).(*SelectionChangedEvent)
	if len(ev.Selected) != 1 || ev.Selected[0] != "a.txt" {
		t.Errorf("Selected = %v, want [a.txt]", ev.Selected)
	}
	select {
	case extra := <-sel:
		t.Errorf("unexpected extra event %v", extra.Type())
	default:
	}
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	_ = bus.Subscribe(EventBatchProgress)
	bus.PublishBatchProgress(1, 3, 33.3, "a")
	bus.PublishBatchProgress(2, 3, 66.6, "b")

	if got := bus.DroppedEvents(); got != 1 {
		t.Errorf("DroppedEvents() = %d, want 1", got)
	}
}

func TestEventBus_CloseAndNil(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventAuthChanged)
	bus.Close()
	bus.Close() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}

	// publishing after close and on a nil bus must not panic
	bus.PublishAuth(false, "", "logout")
	var nilBus *EventBus
	nilBus.PublishAuth(true, "alice", "login")

	late := bus.Subscribe(EventAuthChanged)
	if _, ok := <-late; ok {
		t.Error("subscription on closed bus should be closed")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventThumbnail)
	bus.Unsubscribe(EventThumbnail, ch)
	bus.PublishThumbnail("a.png", false, nil)

	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed and empty")
	}
}
