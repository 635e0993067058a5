// Package app wires the service's components together for one room
// session: widget, connection controller, lifecycle guard, recording
// pipeline, save orchestrator and the serving surfaces.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"meeting-session-service/internal/config"
	"meeting-session-service/internal/diagnostics"
	"meeting-session-service/internal/events"
	apihttp "meeting-session-service/internal/http"
	"meeting-session-service/internal/lifecycle"
	"meeting-session-service/internal/navigation"
	"meeting-session-service/internal/observability"
	"meeting-session-service/internal/observability/logging"
	"meeting-session-service/internal/observability/metrics"
	"meeting-session-service/internal/recording"
	"meeting-session-service/internal/save"
	"meeting-session-service/internal/session"
	"meeting-session-service/internal/transcribe"
	transcribegoogle "meeting-session-service/internal/transcribe/google"
	transcribemock "meeting-session-service/internal/transcribe/mock"
	"meeting-session-service/internal/widget"
	widgetmock "meeting-session-service/internal/widget/mock"
	"meeting-session-service/internal/widget/wsbridge"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Cfg         *config.Config

	Store        *save.BadgerStore
	Publisher    *events.Publisher
	Recorder     *diagnostics.Recorder
	Pipeline     *recording.Pipeline
	Controller   *session.Controller
	NavGuard     *navigation.Guard
	Orchestrator *save.Orchestrator

	obsServer *observability.Server
	apiServer *http.Server
	log       zerolog.Logger
}

// New constructs the application from configuration. Nothing is serving or
// connected until Start.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})
	log := logging.WithComponent("application")

	store, err := save.OpenBadgerStore(cfg.Save.StoreDir)
	if err != nil {
		return nil, err
	}

	publisher := events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicSessions: cfg.Kafka.TopicSessions,
		TopicMeetings: cfg.Kafka.TopicMeetings,
		Principal:     cfg.Kafka.Principal,
	})

	recorder := diagnostics.New()
	m := metrics.DefaultMetrics

	transcriber, err := newTranscriber(ctx, cfg.Transcription, m)
	if err != nil {
		store.Close()
		return nil, err
	}
	capture := &recording.FileCapture{Path: cfg.Recording.AudioSource}
	pipeline := recording.New(capture, transcriber, cfg.Widget.DisplayName, recorder, m)

	persister := save.NewHTTPPersister(cfg.Save.Endpoint, cfg.Save.Timeout)
	identity := save.StaticIdentity{UserID: cfg.Save.UserID}
	orchestrator := save.New(store, persister, identity, publisher, recorder, m)

	factory, err := newWidgetFactory(cfg.Widget)
	if err != nil {
		store.Close()
		return nil, err
	}

	controller := session.NewController(
		session.Config{
			Room: widget.Config{
				RoomID:      cfg.Widget.RoomID,
				RoomName:    cfg.Widget.RoomName,
				DisplayName: cfg.Widget.DisplayName,
			},
			MaxReconnectAttempts: cfg.Reconnect.MaxAttempts,
			ReconnectBackoff:     cfg.Reconnect.Backoff,
		},
		session.Deps{
			Factory:  factory,
			Pipeline: pipeline,
			WakeLock: lifecycle.NoopWakeLock{},
			Audio:    lifecycle.NoopAudioKeeper{},
			GuardCfg: lifecycle.Config{
				PingInterval:        cfg.Keepalive.PingInterval,
				AudioResumeInterval: cfg.Keepalive.AudioResumeInterval,
			},
			Recorder:  recorder,
			Metrics:   m,
			Publisher: publisher,
		},
	)
	navGuard := navigation.New(controller, cfg.Widget.RoomName, nil, recorder)

	a := &Application{
		Cfg:          cfg,
		Store:        store,
		Publisher:    publisher,
		Recorder:     recorder,
		Pipeline:     pipeline,
		Controller:   controller,
		NavGuard:     navGuard,
		Orchestrator: orchestrator,
		log:          log,
	}

	controller.SetEndHandler(a.onCallEnded)

	a.obsServer = observability.NewServer(cfg.Observability.MetricsAddr)
	a.apiServer = &http.Server{
		Addr: cfg.Observability.APIAddr,
		Handler: apihttp.NewRouter(apihttp.Deps{
			Controller:   controller,
			NavGuard:     navGuard,
			Orchestrator: orchestrator,
			Recorder:     recorder,
			Pipeline:     pipeline,
			Captures:     store,
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("room", cfg.Widget.RoomID).Msg("application created")
	return a, nil
}

// Start recovers leftover local state, starts the serving surfaces and
// joins the room.
func (a *Application) Start(ctx context.Context) error {
	a.StartupTime = time.Now().UTC()

	// A capture journaled by a crashed run is transcribed before anything
	// else so its lines end up in a pending save rather than lost.
	if text, ok, err := a.Pipeline.RecoverCapture(ctx, a.Store); err != nil {
		a.log.Warn().Err(err).Msg("capture recovery failed; journal kept")
	} else if ok {
		a.log.Info().Int("chars", len(text)).Msg("recovered journaled capture")
	}

	// A pending save left by a previous run is submitted as soon as an
	// authenticated user is available.
	if status, ok := a.Orchestrator.SubmitPending(ctx); ok {
		a.log.Info().Str("state", status.State.String()).Msg("pending save submitted on startup")
	}

	a.obsServer.Start()
	go func() {
		a.log.Info().Str("addr", a.apiServer.Addr).Msg("starting session API server")
		if err := a.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error().Err(err).Msg("session API server error")
		}
	}()

	return a.Controller.Start(ctx)
}

// onCallEnded runs the end-of-call save with whatever the pipeline
// collected.
func (a *Application) onCallEnded() {
	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.Save.Timeout+5*time.Second)
	defer cancel()

	if err := a.Pipeline.StopRecording(ctx, a.Store); err != nil {
		a.log.Warn().Err(err).Msg("recording stop failed; capture journaled")
	}
	status := a.Orchestrator.SaveOnEnd(ctx,
		a.Cfg.Widget.RoomID,
		a.Cfg.Widget.RoomName,
		a.Pipeline.TranscriptOrPlaceholder(),
		a.Pipeline.Participants(),
		a.Pipeline.EverStarted(),
	)
	a.log.Info().Str("state", status.State.String()).Msg("end-of-call save finished")
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown(ctx context.Context) {
	a.log.Info().Msg("shutting down")

	a.Controller.Close()
	if err := a.apiServer.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("session API server shutdown error")
	}
	if err := a.obsServer.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("observability server shutdown error")
	}
	if err := a.Publisher.Close(); err != nil {
		a.log.Error().Err(err).Msg("publisher close error")
	}
	if err := a.Store.Close(); err != nil {
		a.log.Error().Err(err).Msg("store close error")
	}
}

func newTranscriber(ctx context.Context, cfg config.TranscriptionConfig, m *metrics.Metrics) (transcribe.Client, error) {
	switch cfg.Provider {
	case "google":
		return transcribegoogle.New(ctx, transcribegoogle.Config{
			LanguageCode: cfg.LanguageCode,
			SampleRateHz: cfg.SampleRateHz,
			Timeout:      cfg.Timeout,
		}, m)
	case "mock":
		return transcribemock.New("mock transcript line"), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}

func newWidgetFactory(cfg config.WidgetConfig) (widget.Factory, error) {
	switch cfg.Provider {
	case "ws":
		return wsbridge.NewFactory(cfg.BridgeURL), nil
	case "mock":
		f := widgetmock.NewFactory(widgetmock.JoinSucceeds)
		f.JoinWait = 200 * time.Millisecond
		return f, nil
	default:
		return nil, fmt.Errorf("unknown widget provider %q", cfg.Provider)
	}
}
