package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/Edwardtks/tap-war/internal/bus"
	"github.com/Edwardtks/tap-war/internal/game"
	"github.com/Edwardtks/tap-war/internal/gateway"
	"github.com/Edwardtks/tap-war/internal/round"
	"github.com/Edwardtks/tap-war/internal/roster"
	"github.com/Edwardtks/tap-war/internal/score"
)

type Services struct {
	Game      *game.Service
	Gateway   *gateway.ConnectionManager
	RoundRepo *round.Repository
}

func setupServices(pool *pgxpool.Pool, msgBus *bus.Bus, cfg *Config) *Services {
	// Database layer → repository layer → app/controller layer →
	// service layer, gateway last since it implements the event sink.
	clock := clockwork.NewRealClock()

	rosterRepo := roster.NewRepository(pool)
	rosterApp := roster.NewApp(rosterRepo)

	checkpoint := score.NewCheckpoint(cfg.Game.CheckpointPath)
	reducer := score.NewReducer(checkpoint)

	roundRepo := round.NewRepository(pool)
	controller := round.NewController(roundRepo, rosterApp, reducer, clock)

	gwConfig := gateway.DefaultConnectionConfig()
	gwConfig.FlushInterval = cfg.flushInterval()
	gwConfig.HostToken = cfg.Game.HostToken
	connectionManager := gateway.NewConnectionManager(gwConfig, msgBus, clock)

	gameService := game.NewService(controller, reducer, rosterApp, msgBus, connectionManager)
	connectionManager.SetService(gameService)

	return &Services{
		Game:      gameService,
		Gateway:   connectionManager,
		RoundRepo: roundRepo,
	}
}
