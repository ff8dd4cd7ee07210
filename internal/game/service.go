package game

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/Edwardtks/tap-war/internal/models"
	"github.com/Edwardtks/tap-war/internal/round"
	"github.com/Edwardtks/tap-war/internal/roster"
	"github.com/Edwardtks/tap-war/internal/score"
)

// TopPlayers is how many leaderboard entries the end-of-round display shows.
const TopPlayers = 3

// ScoreUpdate is pushed to the host view after every folded batch.
type ScoreUpdate struct {
	Tally       models.ScoreTally         `json:"tally"`
	Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
}

// Sink receives game events for fan-out to connected clients. The
// gateway implements it.
type Sink interface {
	BroadcastRound(round models.Round)
	BroadcastScore(update ScoreUpdate)
}

// ClicksSubscriber is the consuming side of the click channel.
type ClicksSubscriber interface {
	SubscribeClicks(handler func(models.ClickBatch)) (*nats.Subscription, error)
}

// Service is the host side of the game: it owns the round controller
// and score reducer, consumes click batches from the bus, and emits
// round and score events to the sink.
type Service struct {
	controller *round.Controller
	reducer    *score.Reducer
	roster     *roster.App
	clicks     ClicksSubscriber
	sink       Sink
}

// NewService wires the host service.
func NewService(controller *round.Controller, reducer *score.Reducer, rosterApp *roster.App, clicks ClicksSubscriber, sink Sink) *Service {
	return &Service{
		controller: controller,
		reducer:    reducer,
		roster:     rosterApp,
		clicks:     clicks,
		sink:       sink,
	}
}

// Run subscribes to the click channel and drives the countdown sampler
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	sub, err := s.clicks.SubscribeClicks(s.HandleClicks)
	if err != nil {
		return fmt.Errorf("failed to subscribe to clicks: %w", err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe from clicks")
		}
	}()

	s.controller.RunCountdown(ctx)
	return nil
}

// HandleClicks folds one batch into the reducer and pushes the new
// totals to the host view. Arrival order only affects intermediate
// displays; the sums are commutative.
func (s *Service) HandleClicks(batch models.ClickBatch) {
	s.reducer.Apply(batch)
	s.sink.BroadcastScore(ScoreUpdate{
		Tally:       s.reducer.Tally(),
		Leaderboard: s.reducer.Top(TopPlayers),
	})
}

// HandleRoundChange applies a change-feed notification: the controller
// refreshes its view and the snapshot is fanned out to every client.
func (s *Service) HandleRoundChange(rnd models.Round) {
	s.controller.Observe(rnd)
	s.sink.BroadcastRound(rnd)
}

// CurrentRound returns the last observed round snapshot.
func (s *Service) CurrentRound() models.Round {
	return s.controller.Current()
}

// Scores returns the current totals and top leaderboard.
func (s *Service) Scores() ScoreUpdate {
	return ScoreUpdate{
		Tally:       s.reducer.Tally(),
		Leaderboard: s.reducer.Top(TopPlayers),
	}
}

// StartRound, FinishRound and ResetRound are the host-only commands.
// The gateway verifies host identity before calling them.

func (s *Service) StartRound(ctx context.Context) (*models.Round, error) {
	return s.controller.Start(ctx)
}

func (s *Service) FinishRound(ctx context.Context) (*models.Round, error) {
	return s.controller.Finish(ctx)
}

func (s *Service) ResetRound(ctx context.Context) (*models.Round, error) {
	return s.controller.Reset(ctx)
}

// Join adds a player to the roster with balanced team assignment.
func (s *Service) Join(ctx context.Context, nickname string) (*models.Player, error) {
	return s.roster.Join(ctx, nickname)
}

// Leave removes a player from the roster.
func (s *Service) Leave(ctx context.Context, id uuid.UUID) error {
	return s.roster.Leave(ctx, id)
}
