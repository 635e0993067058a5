package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"meeting-session-service/internal/app"
	"meeting-session-service/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("application setup failed")
	}

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application start failed")
	}
	log.Info().
		Str("room", cfg.Widget.RoomID).
		Str("api", cfg.Observability.APIAddr).
		Str("metrics", cfg.Observability.MetricsAddr).
		Msg("meeting session service started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	application.Shutdown(shutdownCtx)
}
