package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"meeting-session-service/internal/diagnostics"
	"meeting-session-service/internal/lifecycle"
	"meeting-session-service/internal/observability/metrics"
	"meeting-session-service/internal/recording"
	"meeting-session-service/internal/widget"
	"meeting-session-service/internal/widget/mock"
)

type sinkRecorder struct {
	mu       sync.Mutex
	states   []State
	messages []string
	cues     []Cue
}

func (s *sinkRecorder) StatusChanged(state State, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	s.messages = append(s.messages, message)
}

func (s *sinkRecorder) PlayCue(cue Cue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cues = append(s.cues, cue)
}

func (s *sinkRecorder) sawState(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st == state {
			return true
		}
	}
	return false
}

func (s *sinkRecorder) sawCue(cue Cue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cues {
		if c == cue {
			return true
		}
	}
	return false
}

func (s *sinkRecorder) lastMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestController(factory widget.Factory, sink StatusSink) *Controller {
	cfg := Config{
		Room:                 widget.Config{RoomID: "room-1", RoomName: "Standup", DisplayName: "Alice"},
		MaxReconnectAttempts: 3,
		ReconnectBackoff:     5 * time.Millisecond,
	}
	rec := diagnostics.New()
	pipe := recording.New(nil, nil, "Alice", rec, metrics.DefaultMetrics)
	return NewController(cfg, Deps{
		Factory:  factory,
		Pipeline: pipe,
		GuardCfg: lifecycle.DefaultConfig(),
		Recorder: rec,
		Metrics:  metrics.DefaultMetrics,
		Sink:     sink,
	})
}

func TestStartConnects(t *testing.T) {
	f := mock.NewFactory(mock.JoinSucceeds)
	f.JoinWait = 5 * time.Millisecond
	sink := &sinkRecorder{}
	c := newTestController(f, sink)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	waitFor(t, time.Second, "connected state", func() bool {
		return c.State() == StateConnected
	})
	if !sink.sawState(StateConnected) {
		t.Error("sink never saw connected status")
	}
	if !sink.sawCue(CueSuccess) {
		t.Error("no success cue on connect")
	}
	if f.Created() != 1 {
		t.Errorf("created %d instances, want 1", f.Created())
	}
}

func TestStartIsLatched(t *testing.T) {
	f := mock.NewFactory(mock.JoinSilent)
	c := newTestController(f, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer c.Close()

	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start err = %v, want ErrAlreadyStarted", err)
	}
	if f.Created() != 1 {
		t.Errorf("duplicate Start created an instance: %d", f.Created())
	}
}

func TestVisibleDisconnectReconnects(t *testing.T) {
	f := mock.NewFactory(mock.JoinSucceeds)
	f.JoinWait = 5 * time.Millisecond
	sink := &sinkRecorder{}
	c := newTestController(f, sink)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()
	waitFor(t, time.Second, "initial connect", func() bool {
		return c.State() == StateConnected
	})

	f.Instance(0).Emit(widget.Event{Type: widget.EventLeft})

	waitFor(t, time.Second, "reconnected", func() bool {
		return c.State() == StateConnected && f.Created() == 2
	})
	if !f.Instance(0).Disposed() {
		t.Error("old instance not disposed before replacement")
	}
	if !sink.sawState(StateDisconnected) {
		t.Error("sink never saw disconnected status")
	}
	if !sink.sawState(StateReconnecting) {
		t.Error("sink never saw reconnecting status")
	}
	if !sink.sawCue(CueFailure) {
		t.Error("no failure cue on disconnect")
	}
	if got := c.Attempts(); got != 0 {
		t.Errorf("attempts = %d after successful rejoin, want 0", got)
	}
}

func TestReconnectBudgetExhausted(t *testing.T) {
	f := mock.NewFactory(mock.JoinFails)
	f.JoinWait = 5 * time.Millisecond
	sink := &sinkRecorder{}
	c := newTestController(f, sink)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	waitFor(t, 2*time.Second, "terminal failure", func() bool {
		return c.State() == StateFailed
	})
	// Initial instance plus exactly three bounded retries.
	if got := f.Created(); got != 4 {
		t.Errorf("created %d instances, want 4", got)
	}
	if got := c.Attempts(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if !sink.sawState(StateFailed) {
		t.Error("sink never saw failed status")
	}

	// A spent controller stays failed; no further instances appear.
	time.Sleep(30 * time.Millisecond)
	if got := f.Created(); got != 4 {
		t.Errorf("instances created after terminal failure: %d", got)
	}
}

func TestHiddenDisconnectIsDeferred(t *testing.T) {
	f := mock.NewFactory(mock.JoinSucceeds)
	f.JoinWait = 5 * time.Millisecond
	sink := &sinkRecorder{}
	c := newTestController(f, sink)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()
	waitFor(t, time.Second, "initial connect", func() bool {
		return c.State() == StateConnected
	})

	c.Guard().HandlePageEvent(ctx, lifecycle.PageHidden)
	f.Instance(0).Emit(widget.Event{Type: widget.EventLeft})

	if c.State() != StateConnected {
		t.Fatalf("state = %v after hidden termination, want connected", c.State())
	}
	if !c.Guard().PendingReconnect() {
		t.Fatal("no pending reconnect recorded")
	}
	if sink.sawState(StateDisconnected) {
		t.Error("hidden termination surfaced as a disconnect")
	}

	c.Guard().HandlePageEvent(ctx, lifecycle.PageVisible)
	waitFor(t, time.Second, "deferred reconnect", func() bool {
		return c.State() == StateConnected && f.Created() == 2
	})
	// The collapse never exposes a disconnected state to the user.
	if sink.sawState(StateDisconnected) {
		t.Error("deferred reconnect exposed a disconnected status")
	}
	if !sink.sawState(StateReconnecting) {
		t.Error("sink never saw reconnecting status")
	}
}

func TestHiddenLeftDuringJoinStillReconnects(t *testing.T) {
	f := mock.NewScriptedFactory(mock.JoinSilent, mock.JoinSucceeds)
	f.JoinWait = 5 * time.Millisecond
	sink := &sinkRecorder{}
	c := newTestController(f, sink)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	// Tab backgrounded right after room entry, then the initial join dies
	// before ever connecting. Deferral only applies to an established
	// connection, so this must reconnect immediately.
	c.Guard().HandlePageEvent(ctx, lifecycle.PageHidden)
	f.Instance(0).Emit(widget.Event{Type: widget.EventLeft})

	if c.Guard().PendingReconnect() {
		t.Error("pre-connect termination was deferred")
	}
	waitFor(t, time.Second, "reconnect after failed initial join", func() bool {
		return c.State() == StateConnected && f.Created() == 2
	})
	if got := c.Attempts(); got != 0 {
		t.Errorf("attempts = %d after successful rejoin, want 0", got)
	}

	// The session must not wedge the restore handoff either.
	c.Guard().HandlePageEvent(ctx, lifecycle.PageVisible)
	if c.State() != StateConnected {
		t.Errorf("state = %v after restore, want connected", c.State())
	}
}

func TestConfigErrorSurfacesWithoutRetry(t *testing.T) {
	f := mock.NewFactory(mock.JoinDenied)
	f.JoinWait = 5 * time.Millisecond
	sink := &sinkRecorder{}
	c := newTestController(f, sink)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	waitFor(t, time.Second, "error surfaced", func() bool {
		return sink.lastMessage() == "conference access denied"
	})
	time.Sleep(30 * time.Millisecond)
	if got := f.Created(); got != 1 {
		t.Errorf("config error triggered reconnection: %d instances", got)
	}
	if c.State() != StateConnecting {
		t.Errorf("state = %v, want connecting", c.State())
	}
}

func TestProbeFailureTriggersReconnect(t *testing.T) {
	f := mock.NewFactory(mock.JoinSucceeds)
	f.JoinWait = 5 * time.Millisecond
	c := newTestController(f, nil)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()
	waitFor(t, time.Second, "initial connect", func() bool {
		return c.State() == StateConnected
	})

	// Connection silently died while hidden; nothing terminated, so the
	// restore probe is what detects it.
	f.Instance(0).MarkDead()
	c.Guard().HandlePageEvent(ctx, lifecycle.PageHidden)
	c.Guard().HandlePageEvent(ctx, lifecycle.PageVisible)

	waitFor(t, time.Second, "probe-driven reconnect", func() bool {
		return c.State() == StateConnected && f.Created() == 2
	})
}

func TestEndCall(t *testing.T) {
	f := mock.NewFactory(mock.JoinSucceeds)
	f.JoinWait = 5 * time.Millisecond
	c := newTestController(f, nil)
	ctx := context.Background()

	var mu sync.Mutex
	ended := 0
	c.SetEndHandler(func() {
		mu.Lock()
		ended++
		mu.Unlock()
	})

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, time.Second, "initial connect", func() bool {
		return c.State() == StateConnected
	})

	c.EndCall(ctx)
	c.EndCall(ctx)

	if c.State() != StateEnded {
		t.Errorf("state = %v, want ended", c.State())
	}
	if !c.TerminationRequested() {
		t.Error("termination not flagged as user-requested")
	}
	inst := f.Instance(0)
	if inst.CommandCount(widget.CommandHangup) == 0 {
		t.Error("hangup command never sent")
	}
	if !inst.Disposed() {
		t.Error("instance not disposed on end")
	}
	mu.Lock()
	if ended != 1 {
		t.Errorf("end handler ran %d times, want 1", ended)
	}
	mu.Unlock()
	if f.Created() != 1 {
		t.Errorf("end of call created new instances: %d", f.Created())
	}
}

func TestRoomTrafficFeedsRecording(t *testing.T) {
	f := mock.NewFactory(mock.JoinSucceeds)
	f.JoinWait = 5 * time.Millisecond
	c := newTestController(f, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()
	waitFor(t, time.Second, "initial connect", func() bool {
		return c.State() == StateConnected
	})

	inst := f.Instance(0)
	inst.Emit(widget.Event{Type: widget.EventParticipantJoined, Participant: "Bob"})
	inst.Emit(widget.Event{Type: widget.EventChatMessage, Sender: "Bob", Text: "hello"})
	inst.Emit(widget.Event{Type: widget.EventCaptionChunk, Sender: "Bob", Text: "good morning"})

	// Pipeline is shared with the controller in newTestController; reach it
	// through a fresh read of the transcript.
	pipe := c.pipeline
	participants := pipe.Participants()
	found := false
	for _, p := range participants {
		if p == "Bob" {
			found = true
		}
	}
	if !found {
		t.Errorf("participants = %v, missing Bob", participants)
	}
	transcript := pipe.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("transcript has %d lines, want 2", len(transcript))
	}
	if transcript[0] != "Bob: hello" {
		t.Errorf("transcript[0] = %q", transcript[0])
	}
}
