package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"meeting-session-service/internal/diagnostics"
	"meeting-session-service/internal/observability/logging"
	"meeting-session-service/internal/observability/metrics"
	"meeting-session-service/internal/widget"
)

// Config holds guard timing policy.
type Config struct {
	// PingInterval is the period of the inert keep-alive ping sent through
	// the widget data channel.
	PingInterval time.Duration
	// AudioResumeInterval is the period of the defensive audio resume.
	AudioResumeInterval time.Duration
}

// DefaultConfig returns the guard's default timing policy.
func DefaultConfig() Config {
	return Config{
		PingInterval:        25 * time.Second,
		AudioResumeInterval: 30 * time.Second,
	}
}

// Hooks are the guard's handoffs into the connection controller. The guard
// never mutates controller state directly.
type Hooks struct {
	// KeepAlive sends an inert message through the widget data channel.
	KeepAlive func(ctx context.Context) error
	// Probe checks widget liveness after a restore event with no pending
	// reconnect.
	Probe func(ctx context.Context)
	// Reconnect drives the controller into a reconnect attempt. Only ever
	// invoked from a visibility/focus restore, never while hidden.
	Reconnect func(ctx context.Context)
	// MediaSnapshot reads the widget's current mute state.
	MediaSnapshot func() widget.MediaState
}

// Guard owns the platform keep-alive primitives and the pending-reconnect
// flag. All platform capabilities are best-effort and independently
// failure-tolerant: a missing or failing capability is logged and skipped,
// never propagated.
type Guard struct {
	cfg      Config
	wakeLock WakeLock
	audio    AudioKeeper
	hooks    Hooks
	recorder *diagnostics.Recorder
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu               sync.Mutex
	hidden           bool
	pendingReconnect bool
	ended            bool
	started          bool
	snapshot         widget.MediaState
	snapshotValid    bool
	stopCh           chan struct{}
}

// New creates a guard. Nil wakeLock/audio degrade to no-ops.
func New(cfg Config, wakeLock WakeLock, audio AudioKeeper, hooks Hooks, recorder *diagnostics.Recorder, m *metrics.Metrics) *Guard {
	if wakeLock == nil {
		wakeLock = NoopWakeLock{}
	}
	if audio == nil {
		audio = NoopAudioKeeper{}
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.AudioResumeInterval <= 0 {
		cfg.AudioResumeInterval = DefaultConfig().AudioResumeInterval
	}
	return &Guard{
		cfg:      cfg,
		wakeLock: wakeLock,
		audio:    audio,
		hooks:    hooks,
		recorder: recorder,
		metrics:  m,
		log:      logging.WithComponent("lifecycle-guard"),
		stopCh:   make(chan struct{}),
	}
}

// Start acquires the keep-alive primitives and begins the periodic pings.
// Safe to call once; subsequent calls are no-ops.
func (g *Guard) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	g.try(ctx, "wake-lock", func(ctx context.Context) error {
		if err := g.wakeLock.Acquire(ctx); err != nil {
			return err
		}
		g.metrics.WakeLockReacquisitions.Inc()
		return nil
	})
	g.wakeLock.OnRelease(func() { g.onWakeLockRevoked(ctx) })
	g.try(ctx, "audio-keeper", g.audio.Start)
	g.recorder.Record("guard-started", nil)

	go g.loop(ctx)
}

// onWakeLockRevoked re-requests the lock immediately when the platform
// releases it mid-session. Revocation while hidden waits for the next
// restore, which re-acquires anyway.
func (g *Guard) onWakeLockRevoked(ctx context.Context) {
	g.mu.Lock()
	ended := g.ended
	hidden := g.hidden
	g.mu.Unlock()
	if ended || hidden {
		return
	}

	g.recorder.Record("wake-lock-revoked", nil)
	g.try(ctx, "wake-lock", func(ctx context.Context) error {
		if err := g.wakeLock.Acquire(ctx); err != nil {
			return err
		}
		g.metrics.WakeLockReacquisitions.Inc()
		return nil
	})
}

// Stop releases the keep-alive primitives. Called on user-initiated call
// end; after Stop the guard never re-acquires the wake lock.
func (g *Guard) Stop() {
	g.mu.Lock()
	if g.ended {
		g.mu.Unlock()
		return
	}
	g.ended = true
	close(g.stopCh)
	g.mu.Unlock()

	if err := g.wakeLock.Release(); err != nil {
		g.log.Debug().Err(err).Msg("wake lock release failed")
	}
	if err := g.audio.Stop(); err != nil {
		g.log.Debug().Err(err).Msg("audio keeper stop failed")
	}
	g.recorder.Record("guard-stopped", nil)
}

func (g *Guard) loop(ctx context.Context) {
	ping := time.NewTicker(g.cfg.PingInterval)
	resume := time.NewTicker(g.cfg.AudioResumeInterval)
	defer ping.Stop()
	defer resume.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			g.sendKeepAlive(ctx)
		case <-resume.C:
			g.try(ctx, "audio-resume", func(ctx context.Context) error {
				if err := g.audio.Resume(ctx); err != nil {
					return err
				}
				g.metrics.AudioResumes.Inc()
				return nil
			})
		}
	}
}

// HandlePageEvent processes a platform lifecycle event.
func (g *Guard) HandlePageEvent(ctx context.Context, ev PageEvent) {
	g.metrics.RecordPageEvent(ev.String())

	switch ev {
	case PageHidden:
		g.onHidden(ctx)
	case PageVisible, PageFocus, PageResume, PageOnline:
		g.onRestore(ctx, ev)
	case PageBlur, PageFreeze, PageOffline:
		g.recorder.Record("page-event", map[string]any{"event": ev.String()})
	}
}

// onHidden snapshots the mute state for diagnostics and sends one last
// keep-alive. Media is never proactively muted here.
func (g *Guard) onHidden(ctx context.Context) {
	g.mu.Lock()
	g.hidden = true
	if g.hooks.MediaSnapshot != nil {
		g.snapshot = g.hooks.MediaSnapshot()
		g.snapshotValid = true
	}
	snap := g.snapshot
	g.mu.Unlock()

	g.recorder.Record("page-hidden", map[string]any{
		"audioMuted": snap.AudioMuted,
		"videoMuted": snap.VideoMuted,
	})
	g.sendKeepAlive(ctx)
}

// onRestore resumes audio, re-acquires the wake lock, and resolves a
// pending reconnect. This is the only place a deferred reconnect fires, so
// reconnection never happens while still hidden.
func (g *Guard) onRestore(ctx context.Context, ev PageEvent) {
	g.mu.Lock()
	g.hidden = false
	pending := g.pendingReconnect
	g.pendingReconnect = false
	ended := g.ended
	g.mu.Unlock()

	g.recorder.Record("page-restore", map[string]any{
		"event":            ev.String(),
		"pendingReconnect": pending,
	})

	g.try(ctx, "audio-resume", g.audio.Resume)
	if !ended {
		g.try(ctx, "wake-lock", func(ctx context.Context) error {
			if err := g.wakeLock.Acquire(ctx); err != nil {
				return err
			}
			g.metrics.WakeLockReacquisitions.Inc()
			return nil
		})
	}

	if ended {
		return
	}
	if pending {
		if g.hooks.Reconnect != nil {
			g.hooks.Reconnect(ctx)
		}
		return
	}
	if g.hooks.Probe != nil {
		g.hooks.Probe(ctx)
	}
}

// DeferReconnect records that the widget terminated while hidden. The
// actual reconnect waits for the next restore event.
func (g *Guard) DeferReconnect() {
	g.mu.Lock()
	g.pendingReconnect = true
	g.mu.Unlock()

	g.metrics.RecordDeferredReconnect()
	g.recorder.Record("reconnect-deferred", nil)
	g.log.Info().Msg("widget lost while hidden, reconnect deferred until visibility returns")
}

// PendingReconnect reports whether a deferred reconnect is outstanding.
func (g *Guard) PendingReconnect() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingReconnect
}

// Hidden reports whether the page is currently hidden.
func (g *Guard) Hidden() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hidden
}

// Snapshot returns the last mute snapshot taken on hide, if any.
func (g *Guard) Snapshot() (widget.MediaState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot, g.snapshotValid
}

func (g *Guard) sendKeepAlive(ctx context.Context) {
	if g.hooks.KeepAlive == nil {
		return
	}
	g.try(ctx, "keepalive", func(ctx context.Context) error {
		if err := g.hooks.KeepAlive(ctx); err != nil {
			return err
		}
		g.metrics.RecordKeepAlive()
		return nil
	})
}

// try runs a best-effort capability call: failure is logged and counted,
// never propagated.
func (g *Guard) try(ctx context.Context, capability string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		g.metrics.RecordCapabilityFailure(capability)
		g.log.Debug().Err(err).Str("capability", capability).Msg("best-effort capability failed")
	}
}
