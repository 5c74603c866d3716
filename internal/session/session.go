// Package session holds the client-side state of one user session:
// credentials, the folder being browsed, the selection, and the layout
// mode. A Session is an explicit object owned by its caller.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jneless/bkp-drive/internal/events"
	"github.com/jneless/bkp-drive/internal/models"
)

// ViewMode is the listing layout.
type ViewMode string

const (
	ViewList ViewMode = "list"
	ViewGrid ViewMode = "grid"
)

// ParseViewMode validates a layout name.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewList:
		return ViewList, nil
	case ViewGrid:
		return ViewGrid, nil
	}
	return "", fmt.Errorf("unknown view mode %q (want list or grid)", s)
}

// Crumb is one breadcrumb segment. Path is "" for the root crumb.
type Crumb struct {
	Name string
	Path string
}

// RootCrumbName labels the root breadcrumb.
const RootCrumbName = "Home"

// State is an immutable snapshot of a Session.
type State struct {
	Authenticated bool
	Username      string
	CurrentPath   string
	Selection     []string
	ViewMode      ViewMode
}

// Session is safe for concurrent use. Changes are published on the
// event bus when one is attached.
type Session struct {
	mu sync.RWMutex

	bus *events.EventBus

	auth        *AuthRecord
	currentPath string

	selection []string // insertion order
	selected  map[string]struct{}

	rendered      map[string]struct{}
	renderedOrder []string

	viewMode ViewMode
}

// New creates a logged-out session at the root, in list mode.
func New(bus *events.EventBus) *Session {
	return &Session{
		bus:      bus,
		selected: make(map[string]struct{}),
		rendered: make(map[string]struct{}),
		viewMode: ViewList,
	}
}

// CurrentPath returns "" for the root or a folder key ending in "/".
func (s *Session) CurrentPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPath
}

// Navigate moves to path, normalizing it, and clears the selection and
// the rendered key set. It returns the normalized path.
func (s *Session) Navigate(path string) string {
	next := models.NormalizeFolder(path)

	s.mu.Lock()
	old := s.currentPath
	s.currentPath = next
	hadSelection := len(s.selection) > 0
	s.clearSelectionLocked()
	s.rendered = make(map[string]struct{})
	s.renderedOrder = nil
	s.mu.Unlock()

	if old != next {
		s.bus.PublishPathChanged(old, next)
	}
	if hadSelection {
		s.bus.PublishSelection(nil)
	}
	return next
}

// Resolve interprets p relative to the current path. Absolute paths start
// with "/"; ".." steps up one folder.
func (s *Session) Resolve(p string) string {
	base := s.CurrentPath()
	if strings.HasPrefix(p, models.Separator) {
		base = ""
	}
	parts := strings.Split(strings.TrimSuffix(base, models.Separator), models.Separator)
	if base == "" {
		parts = nil
	}
	for _, seg := range strings.Split(p, models.Separator) {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	return models.NormalizeFolder(strings.Join(parts, models.Separator))
}

// Parent returns the folder above the current path; the root is its own parent.
func (s *Session) Parent() string {
	return models.ParentFolder(s.CurrentPath())
}

// Breadcrumbs returns the root crumb followed by one crumb per path segment.
func (s *Session) Breadcrumbs() []Crumb {
	path := s.CurrentPath()
	crumbs := []Crumb{{Name: RootCrumbName, Path: ""}}
	if path == "" {
		return crumbs
	}
	acc := ""
	for _, part := range strings.Split(strings.TrimSuffix(path, models.Separator), models.Separator) {
		acc += part + models.Separator
		crumbs = append(crumbs, Crumb{Name: part, Path: acc})
	}
	return crumbs
}

// SetEntries records the keys of the listing most recently rendered.
func (s *Session) SetEntries(entries []models.Entry) {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	s.setRendered(keys)
}

func (s *Session) setRendered(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rendered = make(map[string]struct{}, len(keys))
	s.renderedOrder = make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := s.rendered[k]; dup {
			continue
		}
		s.rendered[k] = struct{}{}
		s.renderedOrder = append(s.renderedOrder, k)
	}
}

// Rendered returns the last rendered keys in listing order.
func (s *Session) Rendered() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.renderedOrder...)
}

// Select adds keys to the selection, keeping first-insertion order.
// It returns how many keys were newly added.
func (s *Session) Select(keys ...string) int {
	s.mu.Lock()
	added := 0
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := s.selected[k]; ok {
			continue
		}
		s.selected[k] = struct{}{}
		s.selection = append(s.selection, k)
		added++
	}
	snapshot := s.selectionLocked()
	s.mu.Unlock()

	if added > 0 {
		s.bus.PublishSelection(snapshot)
	}
	return added
}

// Deselect removes keys from the selection and returns how many were removed.
func (s *Session) Deselect(keys ...string) int {
	s.mu.Lock()
	removed := 0
	for _, k := range keys {
		if _, ok := s.selected[k]; !ok {
			continue
		}
		delete(s.selected, k)
		removed++
	}
	if removed > 0 {
		kept := s.selection[:0]
		for _, k := range s.selection {
			if _, ok := s.selected[k]; ok {
				kept = append(kept, k)
			}
		}
		s.selection = kept
	}
	snapshot := s.selectionLocked()
	s.mu.Unlock()

	if removed > 0 {
		s.bus.PublishSelection(snapshot)
	}
	return removed
}

// Toggle flips key's membership and reports whether it is now selected.
func (s *Session) Toggle(key string) bool {
	if s.IsSelected(key) {
		s.Deselect(key)
		return false
	}
	s.Select(key)
	return true
}

// SelectAll replaces the selection with every rendered key.
func (s *Session) SelectAll() int {
	s.mu.Lock()
	s.clearSelectionLocked()
	for _, k := range s.renderedOrder {
		s.selected[k] = struct{}{}
		s.selection = append(s.selection, k)
	}
	snapshot := s.selectionLocked()
	s.mu.Unlock()

	s.bus.PublishSelection(snapshot)
	return len(snapshot)
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	had := len(s.selection) > 0
	s.clearSelectionLocked()
	s.mu.Unlock()

	if had {
		s.bus.PublishSelection(nil)
	}
}

// Selected returns the selection in insertion order.
func (s *Session) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectionLocked()
}

// IsSelected reports whether key is selected.
func (s *Session) IsSelected(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[key]
	return ok
}

// StaleSelection returns selected keys missing from the last rendered
// listing, e.g. after the view was refreshed without clearing the selection.
func (s *Session) StaleSelection() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stale []string
	for _, k := range s.selection {
		if _, ok := s.rendered[k]; !ok {
			stale = append(stale, k)
		}
	}
	return stale
}

// PruneSelection drops stale keys and returns them.
func (s *Session) PruneSelection() []string {
	stale := s.StaleSelection()
	if len(stale) > 0 {
		s.Deselect(stale...)
	}
	return stale
}

// ViewMode returns the current layout mode.
func (s *Session) ViewMode() ViewMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewMode
}

// SetViewMode switches the layout mode.
func (s *Session) SetViewMode(mode ViewMode) error {
	if _, err := ParseViewMode(string(mode)); err != nil {
		return err
	}
	s.mu.Lock()
	changed := s.viewMode != mode
	s.viewMode = mode
	s.mu.Unlock()

	if changed {
		s.bus.PublishViewMode(string(mode))
	}
	return nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		CurrentPath: s.currentPath,
		Selection:   s.selectionLocked(),
		ViewMode:    s.viewMode,
	}
	if s.auth != nil {
		st.Authenticated = true
		st.Username = s.auth.User.Username
	}
	return st
}

func (s *Session) selectionLocked() []string {
	return append([]string(nil), s.selection...)
}

func (s *Session) clearSelectionLocked() {
	s.selection = nil
	s.selected = make(map[string]struct{})
}
