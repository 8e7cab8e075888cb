// Package monitor classifies host-environment events correlated with
// cheating. It is a deterrent, not a trust boundary: nothing downstream may
// assume its output is unforgeable.
package monitor

import (
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is the debounce window between accepted violations, so one
// physical action (alt-tab fires blur and visibility together) yields one
// warning.
const DefaultCooldown = time.Second

// EventKind names a category of host-environment signal.
type EventKind string

const (
	EventVisibilityHidden EventKind = "visibility_hidden"
	EventWindowBlur       EventKind = "window_blur"
	EventKeyDown          EventKind = "key_down"
	EventContextMenu      EventKind = "context_menu"
	EventHistoryPop       EventKind = "history_pop"
	EventUnloadAttempt    EventKind = "unload_attempt"
)

// Event is one normalized signal forwarded by the presentation layer.
type Event struct {
	Kind  EventKind `json:"kind"`
	Key   string    `json:"key,omitempty"`
	Ctrl  bool      `json:"ctrl,omitempty"`
	Shift bool      `json:"shift,omitempty"`
	Alt   bool      `json:"alt,omitempty"`
	Meta  bool      `json:"meta,omitempty"`
	// InEditable is true when the event target is a text input, where
	// backspace is typing rather than navigation.
	InEditable bool `json:"inEditable,omitempty"`
}

// Reaction tells the client what to do with the event's default behavior.
type Reaction struct {
	SuppressDefault bool `json:"suppressDefault"`
	RepushHistory   bool `json:"repushHistory"`
	ConfirmUnload   bool `json:"confirmUnload"`
}

// Monitor debounces violations and forwards accepted ones to a single
// callback. It performs no mutation itself; escalation lives in the session
// machine. It never returns errors: an event category the host cannot deliver
// simply goes undetected.
type Monitor struct {
	cooldown    time.Duration
	now         func() time.Time
	onViolation func()

	mu     sync.Mutex
	active bool
	last   time.Time
}

func New(cooldown time.Duration, onViolation func()) *Monitor {
	return NewWithClock(cooldown, onViolation, time.Now)
}

// NewWithClock is test-only for deterministic debounce timing.
func NewWithClock(cooldown time.Duration, onViolation func(), now func() time.Time) *Monitor {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Monitor{cooldown: cooldown, now: now, onViolation: onViolation}
}

// Activate starts observing. Reactivation resets only the debounce stamp.
func (m *Monitor) Activate() {
	m.mu.Lock()
	m.active = true
	m.last = time.Time{}
	m.mu.Unlock()
}

// Deactivate stops observing, e.g. while a warning dialog is up or the
// session is terminal.
func (m *Monitor) Deactivate() {
	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
}

// Active reports whether events are currently being observed.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// HandleEvent classifies one event and returns the reaction the client must
// apply. Violations inside the cooldown window are dropped.
func (m *Monitor) HandleEvent(ev Event) Reaction {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return Reaction{}
	}

	reaction, violation := classify(ev)

	if violation {
		now := m.now()
		if !m.last.IsZero() && now.Sub(m.last) < m.cooldown {
			violation = false
		} else {
			m.last = now
		}
	}
	m.mu.Unlock()

	if violation && m.onViolation != nil {
		m.onViolation()
	}
	return reaction
}

// classify decides the reaction and whether the event counts as a violation.
// The violation set matches the proctoring rules: leaving the page and
// devtools chords score a warning; view-source, backspace navigation, the
// context menu, history moves, and unload attempts are only neutralized.
func classify(ev Event) (Reaction, bool) {
	switch ev.Kind {
	case EventVisibilityHidden, EventWindowBlur:
		return Reaction{}, true
	case EventContextMenu:
		return Reaction{SuppressDefault: true}, false
	case EventHistoryPop:
		return Reaction{RepushHistory: true}, false
	case EventUnloadAttempt:
		return Reaction{ConfirmUnload: true}, false
	case EventKeyDown:
		return classifyKey(ev)
	}
	return Reaction{}, false
}

func classifyKey(ev Event) (Reaction, bool) {
	switch {
	case strings.EqualFold(ev.Key, "F12"):
		return Reaction{SuppressDefault: true}, true
	case ev.Ctrl && ev.Shift && strings.EqualFold(ev.Key, "I"):
		return Reaction{SuppressDefault: true}, true
	case ev.Ctrl && ev.Shift && strings.EqualFold(ev.Key, "J"):
		return Reaction{SuppressDefault: true}, true
	case ev.Ctrl && strings.EqualFold(ev.Key, "U"):
		return Reaction{SuppressDefault: true}, false
	case strings.EqualFold(ev.Key, "Backspace") && !ev.InEditable:
		return Reaction{SuppressDefault: true}, false
	}
	return Reaction{}, false
}
