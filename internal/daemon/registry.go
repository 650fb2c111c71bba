package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/runnerr0/dwell/internal/tracker"
)

// Message types accepted on POST /events.
const (
	TypeTabActivated       = "tab_activated"
	TypeTabUpdated         = "tab_updated"
	TypeTabRemoved         = "tab_removed"
	TypeWindowFocusChanged = "window_focus_changed"
	TypeTabSnapshot        = "tab_snapshot"
)

// Message is one browser notification as posted by the extension.
// WindowID -1 on window_focus_changed means no browser window has focus.
type Message struct {
	Type     string `json:"type"`
	TabID    *int   `json:"tabId,omitempty"`
	WindowID *int   `json:"windowId,omitempty"`
	URL      string `json:"url,omitempty"`
	Active   bool   `json:"active,omitempty"`
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// Registry mirrors the browser's tabs from the posted messages and answers
// the tracker's tab queries.
type Registry struct {
	mu      sync.RWMutex
	tabs    map[int]tracker.Tab
	active  map[int]int
	focused int
}

// NewRegistry creates an empty registry with no focused window.
func NewRegistry() *Registry {
	return &Registry{
		tabs:    make(map[int]tracker.Tab),
		active:  make(map[int]int),
		focused: tracker.NoTab,
	}
}

// Validate checks msg without touching the registry.
func (m Message) Validate() error {
	switch m.Type {
	case TypeTabSnapshot, TypeTabActivated, TypeTabUpdated, TypeTabRemoved:
		if intOr(m.TabID, tracker.NoTab) < 0 {
			return fmt.Errorf("%s requires tabId", m.Type)
		}
		return nil
	case TypeWindowFocusChanged:
		return nil
	}
	return fmt.Errorf("unknown message type %q", m.Type)
}

// Apply records msg and returns the tracker event it implies, if any.
// A tab first seen without a windowId is filed under the focused window.
func (r *Registry) Apply(msg Message) (tracker.Event, bool, error) {
	if err := msg.Validate(); err != nil {
		return tracker.Event{}, false, err
	}
	tabID := intOr(msg.TabID, tracker.NoTab)
	windowID := intOr(msg.WindowID, tracker.NoTab)

	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg.Type {
	case TypeTabSnapshot:
		r.upsert(tabID, windowID, msg.URL)
		if !msg.Active {
			return tracker.Event{}, false, nil
		}
		r.activate(tabID)
		if r.focused != tracker.NoTab && r.tabs[tabID].WindowID != r.focused {
			return tracker.Event{}, false, nil
		}
		return tracker.TabActivated(tabID), true, nil

	case TypeTabActivated:
		r.upsert(tabID, windowID, msg.URL)
		r.activate(tabID)
		return tracker.TabActivated(tabID), true, nil

	case TypeTabUpdated:
		r.upsert(tabID, windowID, msg.URL)
		if msg.Active {
			r.activate(tabID)
		}
		return tracker.TabUpdated(tabID, msg.URL), true, nil

	case TypeTabRemoved:
		tab, ok := r.tabs[tabID]
		delete(r.tabs, tabID)
		if ok && r.active[tab.WindowID] == tabID {
			delete(r.active, tab.WindowID)
		}
		return tracker.TabRemoved(tabID), true, nil

	default: // TypeWindowFocusChanged
		if windowID < 0 {
			r.focused = tracker.NoTab
			return tracker.FocusLost(), true, nil
		}
		r.focused = windowID
		return tracker.FocusGained(windowID), true, nil
	}
}

func (r *Registry) upsert(tabID, windowID int, url string) {
	tab, ok := r.tabs[tabID]
	if !ok {
		tab = tracker.Tab{ID: tabID, WindowID: r.focused}
	}
	if windowID != tracker.NoTab {
		tab.WindowID = windowID
	}
	if url != "" {
		tab.URL = url
	}
	r.tabs[tabID] = tab
}

func (r *Registry) activate(tabID int) {
	r.active[r.tabs[tabID].WindowID] = tabID
}

// TabURL returns the last known URL of tabID.
func (r *Registry) TabURL(_ context.Context, tabID int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tab, ok := r.tabs[tabID]
	if !ok {
		return "", tracker.ErrTabNotFound
	}
	return tab.URL, nil
}

// ActiveTab returns the active tab of windowID, or of the focused window
// when windowID is NoTab.
func (r *Registry) ActiveTab(_ context.Context, windowID int) (tracker.Tab, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if windowID == tracker.NoTab {
		windowID = r.focused
	}
	id, ok := r.active[windowID]
	if !ok {
		return tracker.Tab{}, tracker.ErrTabNotFound
	}
	tab, ok := r.tabs[id]
	if !ok {
		return tracker.Tab{}, tracker.ErrTabNotFound
	}
	return tab, nil
}

// Len reports how many tabs are known.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}
