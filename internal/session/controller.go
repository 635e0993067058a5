package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meeting-session-service/internal/diagnostics"
	"meeting-session-service/internal/lifecycle"
	"meeting-session-service/internal/models"
	"meeting-session-service/internal/observability/logging"
	"meeting-session-service/internal/observability/metrics"
	"meeting-session-service/internal/recording"
	"meeting-session-service/internal/widget"
)

// ErrAlreadyStarted is returned by Start when the controller was already
// initialized for this room+identity pair.
var ErrAlreadyStarted = errors.New("session already started")

// Cue is an audible feedback kind surfaced alongside status changes.
type Cue int

const (
	// CueNone - no sound.
	CueNone Cue = iota
	// CueSuccess - connection established.
	CueSuccess
	// CueFailure - connection lost.
	CueFailure
)

// StatusSink receives connection status for the UI. Implementations must
// not block.
type StatusSink interface {
	StatusChanged(state State, message string)
	PlayCue(cue Cue)
}

// NoopSink discards status updates.
type NoopSink struct{}

// StatusChanged is a no-op.
func (NoopSink) StatusChanged(State, string) {}

// PlayCue is a no-op.
func (NoopSink) PlayCue(Cue) {}

// TransitionPublisher fans connection transitions out to downstream
// consumers. Optional.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, ev models.SessionTransition) error
}

// Config holds the connection policy for one room session.
type Config struct {
	Room widget.Config
	// MaxReconnectAttempts bounds a single continuous disconnection streak.
	MaxReconnectAttempts int
	// ReconnectBackoff is the fixed wait between disposal and the new
	// instance.
	ReconnectBackoff time.Duration
}

// DefaultConfig returns the default reconnect policy.
func DefaultConfig(room widget.Config) Config {
	return Config{
		Room:                 room,
		MaxReconnectAttempts: 3,
		ReconnectBackoff:     2 * time.Second,
	}
}

// Deps are the controller's collaborators.
type Deps struct {
	Factory   widget.Factory
	Pipeline  *recording.Pipeline
	WakeLock  lifecycle.WakeLock
	Audio     lifecycle.AudioKeeper
	GuardCfg  lifecycle.Config
	Recorder  *diagnostics.Recorder
	Metrics   *metrics.Metrics
	Publisher TransitionPublisher
	Sink      StatusSink
}

// Controller maintains exactly one live widget instance and tracks its
// connection health. One controller exists per active room session; it is
// constructed on room entry and closed on room exit. A controller whose
// machine reached FAILED is spent: recovery is a hard reset, i.e. the
// caller builds a fresh controller.
type Controller struct {
	cfg       Config
	factory   widget.Factory
	machine   *Machine
	guard     *lifecycle.Guard
	pipeline  *recording.Pipeline
	recorder  *diagnostics.Recorder
	metrics   *metrics.Metrics
	publisher TransitionPublisher
	sink      StatusSink
	sessionID string
	log       zerolog.Logger

	ctx     context.Context
	endOnce sync.Once
	onEnded func()

	mu           sync.Mutex
	widget       widget.Widget
	attempts     int
	userEnded    bool
	reconnecting bool
	started      bool
}

// NewController creates a controller for one room session.
func NewController(cfg Config, deps Deps) *Controller {
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 3
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 2 * time.Second
	}
	if deps.Sink == nil {
		deps.Sink = NoopSink{}
	}
	sessionID := uuid.NewString()

	c := &Controller{
		cfg:       cfg,
		factory:   deps.Factory,
		machine:   NewMachine(),
		pipeline:  deps.Pipeline,
		recorder:  deps.Recorder,
		metrics:   deps.Metrics,
		publisher: deps.Publisher,
		sink:      deps.Sink,
		sessionID: sessionID,
		log:       logging.WithSession(cfg.Room.RoomID, sessionID),
	}
	c.guard = lifecycle.New(deps.GuardCfg, deps.WakeLock, deps.Audio, lifecycle.Hooks{
		KeepAlive:     c.keepAlive,
		Probe:         c.probe,
		Reconnect:     c.reconnectFromPending,
		MediaSnapshot: c.media,
	}, deps.Recorder, deps.Metrics)
	return c
}

// SetEndHandler registers the end-of-call handler, invoked exactly once
// when the session terminates by user action.
func (c *Controller) SetEndHandler(fn func()) {
	c.mu.Lock()
	c.onEnded = fn
	c.mu.Unlock()
}

// Guard exposes the lifecycle guard so the caller can feed platform page
// events into it.
func (c *Controller) Guard() *lifecycle.Guard { return c.guard }

// SessionID returns the controller's session identifier.
func (c *Controller) SessionID() string { return c.sessionID }

// State returns the current connection state.
func (c *Controller) State() State { return c.machine.State() }

// Attempts returns the reconnect attempts used in the current streak.
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// TerminationRequested reports whether the user asked to end the call.
func (c *Controller) TerminationRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userEnded
}

// Start initializes the session: starts the lifecycle guard and creates
// the first widget instance. The boolean latch makes re-initialization
// for the same room+identity pair a rejected duplicate.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx = ctx
	c.mu.Unlock()

	c.recorder.Record("session-start", map[string]any{
		"roomId":    c.cfg.Room.RoomID,
		"sessionId": c.sessionID,
	})
	c.guard.Start(ctx)
	return c.createWidget(ctx)
}

// createWidget builds a new widget instance. The caller guarantees no
// other live instance exists.
func (c *Controller) createWidget(ctx context.Context) error {
	w, err := c.factory.New(ctx, c.cfg.Room, c.handleEvent)
	if err != nil {
		c.recorder.Recordf("widget-create-failed", "%v", err)
		return err
	}
	c.metrics.RecordWidgetCreated()
	c.mu.Lock()
	old := c.widget
	c.widget = w
	c.mu.Unlock()
	// At most one live instance at a time; dispose anything displaced.
	if old != nil {
		_ = old.Dispose()
	}
	return nil
}

// disposeWidget tears down the current instance, if any. Disposal always
// completes before a new instance is constructed.
func (c *Controller) disposeWidget() {
	c.mu.Lock()
	w := c.widget
	c.widget = nil
	c.mu.Unlock()
	if w == nil {
		return
	}
	if err := w.Dispose(); err != nil {
		c.log.Debug().Err(err).Msg("widget dispose failed")
	}
}

// handleEvent consumes widget events. Unknown event types never reach
// here: the widget port is a closed set.
func (c *Controller) handleEvent(ev widget.Event) {
	switch ev.Type {
	case widget.EventJoined:
		c.onJoined()
	case widget.EventLeft:
		c.onLeft()
	case widget.EventError:
		c.onError(ev)
	case widget.EventParticipantJoined:
		c.pipeline.AddParticipant(ev.Participant)
	case widget.EventChatMessage:
		c.pipeline.AppendChat(ev.Sender, ev.Text)
	case widget.EventCaptionChunk:
		c.pipeline.AppendCaption(ev.Sender, ev.Text)
	}
}

func (c *Controller) onJoined() {
	from := c.machine.State()
	if err := c.machine.MarkConnected(); err != nil {
		c.log.Debug().Err(err).Msg("joined event ignored")
		return
	}
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()

	c.transition(from, StateConnected, CueSuccess, "connected")
}

func (c *Controller) onLeft() {
	c.mu.Lock()
	userEnded := c.userEnded
	c.mu.Unlock()

	if userEnded {
		c.finishEnd()
		return
	}
	if c.machine.IsTerminal() {
		return
	}

	// Termination of an established connection while hidden is never a
	// user-visible failure: record the fact and let the next visibility
	// restore collapse disconnect and reconnect into one transition. Only
	// CONNECTED can be deferred; a join that dies while hidden takes the
	// normal path so the attempt budget keeps draining.
	if c.guard.Hidden() && c.machine.State() == StateConnected {
		c.recorder.Record("left-while-hidden", nil)
		c.guard.DeferReconnect()
		return
	}

	from := c.machine.State()
	if err := c.machine.MarkDisconnected(); err != nil {
		c.log.Debug().Err(err).Msg("left event ignored")
		return
	}
	c.transition(from, StateDisconnected, CueFailure, "disconnected")
	c.scheduleReconnect()
}

// onError surfaces configuration/permission errors immediately without
// reconnection; they are not connectivity failures and retrying without
// fixing the cause is pointless.
func (c *Controller) onError(ev widget.Event) {
	if widget.IsConfigError(ev.Code) {
		c.metrics.RecordConfigError(ev.Code)
		c.recorder.Record("widget-config-error", map[string]any{
			"code":    ev.Code,
			"message": ev.Message,
		})
		c.sink.StatusChanged(c.machine.State(), ev.Message)
		return
	}
	c.log.Warn().Str("code", ev.Code).Str("message", ev.Message).Msg("widget error")
	c.recorder.Record("widget-error", map[string]any{"code": ev.Code})
}

// scheduleReconnect starts one serialized reconnect attempt, or fails the
// session when the budget is spent.
func (c *Controller) scheduleReconnect() {
	c.mu.Lock()
	if c.reconnecting || c.userEnded {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.mu.Unlock()
		c.exhausted()
		return
	}
	c.attempts++
	attempt := c.attempts
	c.reconnecting = true
	ctx := c.ctx
	c.mu.Unlock()

	from := c.machine.State()
	if err := c.machine.MarkReconnecting(); err != nil {
		// Rejected attempts do not drain the budget.
		c.mu.Lock()
		c.attempts--
		c.reconnecting = false
		c.mu.Unlock()
		c.log.Debug().Err(err).Msg("reconnect not started")
		return
	}
	c.metrics.RecordReconnectAttempt()
	c.transition(from, StateReconnecting, CueNone, "reconnecting")
	c.recorder.Record("reconnect-attempt", map[string]any{"attempt": attempt})

	go c.runReconnect(ctx)
}

// runReconnect executes one attempt: dispose, fixed backoff, new
// instance. The new instance's own join outcome decides the next state.
func (c *Controller) runReconnect(ctx context.Context) {
	c.disposeWidget()

	timer := time.NewTimer(c.cfg.ReconnectBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
		return
	}

	if c.machine.IsTerminal() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
		return
	}

	err := c.createWidget(ctx)
	c.mu.Lock()
	c.reconnecting = false
	c.mu.Unlock()

	if err != nil {
		// Instance construction failed outright; treat it like a failed
		// join outcome.
		from := c.machine.State()
		if merr := c.machine.MarkDisconnected(); merr == nil {
			c.transition(from, StateDisconnected, CueFailure, "disconnected")
		}
		c.scheduleReconnect()
		return
	}
	// A join outcome delivered during construction may have already marked
	// the session disconnected; the attempt flag was still set then, so
	// reschedule here.
	if c.machine.State() == StateDisconnected {
		c.scheduleReconnect()
	}
}

// reconnectFromPending is the guard's visibility-restore handoff: the
// deferred disconnect and the reconnect collapse into a single observable
// transition.
func (c *Controller) reconnectFromPending(context.Context) {
	c.scheduleReconnect()
}

// probe checks instance liveness after a restore with no pending
// reconnect. A failed probe is handled like a visible disconnect.
func (c *Controller) probe(ctx context.Context) {
	c.mu.Lock()
	w := c.widget
	c.mu.Unlock()
	if w == nil || c.machine.State() != StateConnected {
		return
	}
	if err := w.ExecuteCommand(ctx, widget.CommandProbe); err != nil {
		c.recorder.Recordf("probe-failed", "%v", err)
		c.onLeft()
	}
}

// keepAlive sends the inert ping through the widget data channel.
func (c *Controller) keepAlive(ctx context.Context) error {
	c.mu.Lock()
	w := c.widget
	c.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.ExecuteCommand(ctx, widget.CommandKeepAlive)
}

// media reads the widget's mute state for the guard's hidden snapshot.
func (c *Controller) media() widget.MediaState {
	c.mu.Lock()
	w := c.widget
	c.mu.Unlock()
	if w == nil {
		return widget.MediaState{}
	}
	return w.Media()
}

// exhausted marks the session terminally failed. The only recovery is a
// hard reset by the caller.
func (c *Controller) exhausted() {
	from := c.machine.State()
	if !c.machine.Fail() {
		return
	}
	c.metrics.RecordReconnectExhausted()
	c.transition(from, StateFailed, CueFailure, "reconnect attempts exhausted")
	c.sink.StatusChanged(StateFailed, "connection lost; restart the session to rejoin")
	c.guard.Stop()
	c.disposeWidget()
}

// EndCall terminates the session by user request: hangup command, widget
// disposal, guard shutdown, then the registered end-of-call handler. Safe
// to call more than once.
func (c *Controller) EndCall(ctx context.Context) {
	c.mu.Lock()
	c.userEnded = true
	w := c.widget
	c.mu.Unlock()

	if w != nil {
		if err := w.ExecuteCommand(ctx, widget.CommandHangup); err != nil {
			c.log.Debug().Err(err).Msg("hangup command failed")
		}
	}
	c.finishEnd()
}

func (c *Controller) finishEnd() {
	c.endOnce.Do(func() {
		from := c.machine.State()
		c.machine.End()
		c.transition(from, StateEnded, CueNone, "ended")
		c.guard.Stop()
		c.disposeWidget()

		c.mu.Lock()
		fn := c.onEnded
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// Close releases resources without running the end-of-call path. Used on
// process shutdown when the end path already ran or must not run.
func (c *Controller) Close() {
	c.guard.Stop()
	c.disposeWidget()
}

func (c *Controller) transition(from, to State, cue Cue, message string) {
	c.mu.Lock()
	attempt := c.attempts
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	c.recorder.Record("state-"+to.String(), map[string]any{"from": from.String()})
	c.metrics.RecordTransition(from.String(), to.String(), int(to))
	c.log.Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Int("attempt", attempt).
		Msg("connection state changed")

	c.sink.StatusChanged(to, message)
	if cue != CueNone {
		c.sink.PlayCue(cue)
	}

	if c.publisher != nil {
		ev := models.SessionTransition{
			EventType: "session.transition",
			RoomID:    c.cfg.Room.RoomID,
			SessionID: c.sessionID,
			From:      from.String(),
			To:        to.String(),
			Attempt:   attempt,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := c.publisher.PublishTransition(ctx, ev); err != nil {
			c.log.Debug().Err(err).Msg("transition publish failed")
		}
	}
}
