// Package mock provides a scripted conferencing widget for tests and local
// runs without a real conference backend. It simulates realistic widget
// behavior: an asynchronous join outcome, participant and chat traffic on
// demand, and command handling for hangup, keep-alive and liveness probes.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"meeting-session-service/internal/widget"
)

// JoinOutcome controls what a scripted instance does after construction.
type JoinOutcome int

const (
	// JoinSucceeds - the instance emits Joined shortly after construction.
	JoinSucceeds JoinOutcome = iota
	// JoinFails - the instance emits Left without ever joining.
	JoinFails
	// JoinDenied - the instance emits an access-denied error.
	JoinDenied
	// JoinSilent - the instance emits nothing until driven by Emit.
	JoinSilent
)

// ErrDisposed is returned by commands issued to a disposed instance.
var ErrDisposed = errors.New("widget instance disposed")

// ErrProbeFailed is returned by the probe command when the scripted
// connection has been marked dead.
var ErrProbeFailed = errors.New("widget probe failed: connection lost")

// Factory builds scripted instances. Outcomes are consumed in order; once
// the script is exhausted the last outcome repeats, so a single-element
// script behaves like a fixed policy.
type Factory struct {
	JoinWait time.Duration // delay before the join outcome fires (0 = synchronous)

	mu        sync.Mutex
	outcomes  []JoinOutcome
	created   int
	instances []*Instance
}

// NewFactory creates a factory whose instances all follow outcome.
func NewFactory(outcome JoinOutcome) *Factory {
	return &Factory{outcomes: []JoinOutcome{outcome}}
}

// NewScriptedFactory creates a factory that plays outcomes in order.
func NewScriptedFactory(outcomes ...JoinOutcome) *Factory {
	return &Factory{outcomes: outcomes}
}

// New constructs the next scripted instance.
func (f *Factory) New(_ context.Context, cfg widget.Config, l widget.Listener) (widget.Widget, error) {
	f.mu.Lock()
	outcome := JoinSilent
	if len(f.outcomes) > 0 {
		idx := f.created
		if idx >= len(f.outcomes) {
			idx = len(f.outcomes) - 1
		}
		outcome = f.outcomes[idx]
	}
	f.created++
	inst := &Instance{cfg: cfg, listener: l}
	f.instances = append(f.instances, inst)
	wait := f.JoinWait
	f.mu.Unlock()

	inst.scheduleOutcome(outcome, wait)
	return inst, nil
}

// Created returns how many instances the factory has built.
func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Instance returns the n-th created instance (0-based), or nil.
func (f *Factory) Instance(n int) *Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 || n >= len(f.instances) {
		return nil
	}
	return f.instances[n]
}

// Last returns the most recently created instance, or nil.
func (f *Factory) Last() *Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.instances) == 0 {
		return nil
	}
	return f.instances[len(f.instances)-1]
}

// Instance is a single scripted widget.
type Instance struct {
	cfg      widget.Config
	listener widget.Listener

	mu        sync.Mutex
	disposed  bool
	dead      bool // liveness probes fail
	commands  []string
	media     widget.MediaState
	emitTimer *time.Timer
}

func (i *Instance) scheduleOutcome(outcome JoinOutcome, wait time.Duration) {
	var ev widget.Event
	switch outcome {
	case JoinSucceeds:
		ev = widget.Event{Type: widget.EventJoined}
	case JoinFails:
		ev = widget.Event{Type: widget.EventLeft}
	case JoinDenied:
		ev = widget.Event{
			Type:    widget.EventError,
			Code:    widget.CodeAccessDenied,
			Message: "conference access denied",
		}
	default:
		return
	}
	if wait <= 0 {
		i.Emit(ev)
		return
	}
	i.mu.Lock()
	i.emitTimer = time.AfterFunc(wait, func() { i.Emit(ev) })
	i.mu.Unlock()
}

// ExecuteCommand records the command and simulates widget handling.
func (i *Instance) ExecuteCommand(_ context.Context, name string, _ ...string) error {
	i.mu.Lock()
	if i.disposed {
		i.mu.Unlock()
		return ErrDisposed
	}
	i.commands = append(i.commands, name)
	dead := i.dead
	i.mu.Unlock()

	switch name {
	case widget.CommandHangup:
		i.Emit(widget.Event{Type: widget.EventLeft})
		return nil
	case widget.CommandProbe:
		if dead {
			return ErrProbeFailed
		}
		return nil
	default:
		return nil
	}
}

// Commands returns the commands executed against this instance, in order.
func (i *Instance) Commands() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.commands))
	copy(out, i.commands)
	return out
}

// CommandCount returns how many times name was executed.
func (i *Instance) CommandCount(name string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, c := range i.commands {
		if c == name {
			n++
		}
	}
	return n
}

// Disposed reports whether Dispose has been called.
func (i *Instance) Disposed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.disposed
}

// MarkDead makes subsequent liveness probes fail.
func (i *Instance) MarkDead() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dead = true
}

// SetMedia sets the mute snapshot returned by Media.
func (i *Instance) SetMedia(m widget.MediaState) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.media = m
}

// Emit delivers an event to the listener as if the widget produced it.
// No-op after Dispose, matching the real instance contract.
func (i *Instance) Emit(ev widget.Event) {
	i.mu.Lock()
	disposed := i.disposed
	l := i.listener
	i.mu.Unlock()
	if disposed || l == nil {
		return
	}
	l(ev)
}

// Media returns the scripted mute state.
func (i *Instance) Media() widget.MediaState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.media
}

// Dispose marks the instance disposed and stops any pending scripted emit.
func (i *Instance) Dispose() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.disposed = true
	if i.emitTimer != nil {
		i.emitTimer.Stop()
		i.emitTimer = nil
	}
	return nil
}
