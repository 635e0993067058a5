// Package diagnostics provides a bounded, chronologically ordered record of
// lifecycle and connection events for post-hoc debugging.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the number of events retained before FIFO eviction.
const DefaultCapacity = 100

// Event is a single recorded entry. Immutable once appended.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Name      string         `json:"name"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Recorder is an append-only capped event buffer. Appends are strictly
// chronological relative to the triggering call; the oldest entry is
// dropped once capacity is exceeded.
type Recorder struct {
	mu     sync.Mutex
	cap    int
	events []Event
	now    func() time.Time
}

// New creates a recorder with DefaultCapacity.
func New() *Recorder {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a recorder retaining at most capacity events.
func NewWithCapacity(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{cap: capacity, now: time.Now}
}

// Record appends an event, evicting the oldest entry when full.
func (r *Recorder) Record(name string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		Timestamp: r.now(),
		Name:      name,
		Payload:   payload,
	})
	if len(r.events) > r.cap {
		r.events = r.events[len(r.events)-r.cap:]
	}
}

// Recordf appends an event whose payload is a single formatted detail line.
func (r *Recorder) Recordf(name, format string, args ...any) {
	r.Record(name, map[string]any{"detail": fmt.Sprintf(format, args...)})
}

// Events returns a copy of the retained events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of retained events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Report renders a human-readable diagnostics report: runtime details, the
// caller-supplied visibility state, and the retained events.
func (r *Recorder) Report(visibility string) string {
	events := r.Events()

	var b strings.Builder
	b.WriteString("=== session diagnostics report ===\n")
	fmt.Fprintf(&b, "generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "visibility: %s\n", visibility)
	fmt.Fprintf(&b, "events (%d, newest last):\n", len(events))
	for _, ev := range events {
		fmt.Fprintf(&b, "  %s %s", ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.Name)
		if len(ev.Payload) > 0 {
			if raw, err := json.Marshal(ev.Payload); err == nil {
				b.WriteString(" ")
				b.Write(raw)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
