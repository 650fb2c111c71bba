package tracker

import "fmt"

// Kind identifies a tracker event.
type Kind int

const (
	KindStart Kind = iota
	KindTabActivated
	KindTabUpdated
	KindTabRemoved
	KindFocusLost
	KindFocusGained
	KindTick
	KindStop
)

var kindNames = map[Kind]string{
	KindStart:        "start",
	KindTabActivated: "tab_activated",
	KindTabUpdated:   "tab_updated",
	KindTabRemoved:   "tab_removed",
	KindFocusLost:    "focus_lost",
	KindFocusGained:  "focus_gained",
	KindTick:         "tick",
	KindStop:         "stop",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps an event name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// NoTab marks the absence of a tab or window identifier.
const NoTab = -1

// Event is one input to the tracker state machine.
type Event struct {
	Kind     Kind
	TabID    int
	WindowID int
	URL      string
}

// Start is dispatched once when the process comes up.
func Start() Event { return Event{Kind: KindStart, TabID: NoTab, WindowID: NoTab} }

// TabActivated reports that tabID became the active tab.
func TabActivated(tabID int) Event {
	return Event{Kind: KindTabActivated, TabID: tabID, WindowID: NoTab}
}

// TabUpdated reports that tabID navigated to url.
func TabUpdated(tabID int, url string) Event {
	return Event{Kind: KindTabUpdated, TabID: tabID, WindowID: NoTab, URL: url}
}

// TabRemoved reports that tabID was closed.
func TabRemoved(tabID int) Event {
	return Event{Kind: KindTabRemoved, TabID: tabID, WindowID: NoTab}
}

// FocusLost reports that no browser window has focus.
func FocusLost() Event { return Event{Kind: KindFocusLost, TabID: NoTab, WindowID: NoTab} }

// FocusGained reports that windowID received focus.
func FocusGained(windowID int) Event {
	return Event{Kind: KindFocusGained, TabID: NoTab, WindowID: windowID}
}

// Tick is the periodic flush.
func Tick() Event { return Event{Kind: KindTick, TabID: NoTab, WindowID: NoTab} }

// Stop flushes the open session before shutdown.
func Stop() Event { return Event{Kind: KindStop, TabID: NoTab, WindowID: NoTab} }

func (e Event) String() string {
	switch e.Kind {
	case KindTabActivated, KindTabRemoved:
		return fmt.Sprintf("%s(tab=%d)", e.Kind, e.TabID)
	case KindTabUpdated:
		return fmt.Sprintf("%s(tab=%d url=%s)", e.Kind, e.TabID, e.URL)
	case KindFocusGained:
		return fmt.Sprintf("%s(window=%d)", e.Kind, e.WindowID)
	default:
		return e.Kind.String()
	}
}
