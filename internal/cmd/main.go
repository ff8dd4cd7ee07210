package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Edwardtks/tap-war/internal/bus"
	"github.com/Edwardtks/tap-war/internal/notify"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, dbCfg, err := setupDatabase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up database")
	}
	defer pool.Close()

	msgBus, err := bus.Connect(cfg.NATS.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer msgBus.Close()

	services := setupServices(pool, msgBus, cfg)

	// Make sure the canonical round row exists and seed the in-memory
	// view from it.
	if err := services.RoundRepo.Ensure(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure round row")
	}
	current, err := services.RoundRepo.Get(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load round row")
	}
	services.Game.HandleRoundChange(*current)

	// Round change feed: store commits fan out to every client.
	listenerCfg := notify.DefaultListenerConfig()
	listenerCfg.DatabaseURL = dbCfg.DSN()
	listener, err := notify.NewListener(listenerCfg, services.Game.HandleRoundChange)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start round listener")
	}

	go services.Gateway.Start(ctx)
	go func() {
		if err := listener.Start(ctx); err != nil {
			log.Error().Err(err).Msg("round listener stopped")
		}
	}()
	go func() {
		if err := services.Game.Run(ctx); err != nil {
			log.Error().Err(err).Msg("game service stopped")
		}
	}()

	server := setupServer(services, cfg)
	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Str("addr", server.Addr).Msg("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}
