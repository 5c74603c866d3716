package session

import (
	"encoding/json"
	"fmt"
)

// keyView stores the browsing state between CLI invocations.
const keyView = "view_state"

type viewState struct {
	CurrentPath string   `json:"current_path"`
	Selection   []string `json:"selection,omitempty"`
	Rendered    []string `json:"rendered,omitempty"`
	ViewMode    ViewMode `json:"view_mode"`
}

// SaveView writes the current path, selection, rendered keys and layout
// mode to st.
func (s *Session) SaveView(st Store) error {
	s.mu.RLock()
	vs := viewState{
		CurrentPath: s.currentPath,
		Selection:   s.selectionLocked(),
		Rendered:    append([]string(nil), s.renderedOrder...),
		ViewMode:    s.viewMode,
	}
	s.mu.RUnlock()

	data, err := json.Marshal(vs)
	if err != nil {
		return fmt.Errorf("failed to encode view state: %w", err)
	}
	return st.Put(keyView, string(data))
}

// LoadView restores state written by SaveView. A missing record leaves
// the session unchanged; the default mode applies when none was saved.
func (s *Session) LoadView(st Store, defaultMode ViewMode) error {
	raw, ok, err := st.Get(keyView)
	if err != nil {
		return fmt.Errorf("failed to read view state: %w", err)
	}

	vs := viewState{ViewMode: defaultMode}
	if ok {
		if err := json.Unmarshal([]byte(raw), &vs); err != nil {
			return fmt.Errorf("failed to decode view state: %w", err)
		}
	}
	mode, err := ParseViewMode(string(vs.ViewMode))
	if err != nil {
		mode = ViewList
	}

	s.mu.Lock()
	s.currentPath = vs.CurrentPath
	s.viewMode = mode
	s.clearSelectionLocked()
	for _, k := range vs.Selection {
		if _, dup := s.selected[k]; !dup {
			s.selected[k] = struct{}{}
			s.selection = append(s.selection, k)
		}
	}
	s.mu.Unlock()

	s.setRendered(vs.Rendered)
	return nil
}
