package round

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Edwardtks/tap-war/internal/models"
)

var (
	ErrNotInLobby  = errors.New("round can only start from the lobby")
	ErrNotPlaying  = errors.New("round is not in progress")
	ErrEmptyRoster = errors.New("cannot start a round with no players")
)

// SamplePeriod is how often the countdown is re-evaluated. The check is
// level-triggered: every sample recomputes remaining time from the
// shared start timestamp, so a missed tick only delays the finish by
// one period, it never loses it.
const SamplePeriod = 100 * time.Millisecond

// RoundRepository defines what the controller needs from the round row.
type RoundRepository interface {
	Get(ctx context.Context) (*models.Round, error)
	SetPlaying(ctx context.Context, startedAt time.Time) (*models.Round, error)
	SetFinished(ctx context.Context, winner models.Winner) (*models.Round, error)
	SetLobby(ctx context.Context) (*models.Round, error)
}

// RosterSizer reports the current roster size.
type RosterSizer interface {
	Size(ctx context.Context) (int, error)
}

// TallySource provides the score snapshot used to decide the winner,
// and is cleared at round boundaries.
type TallySource interface {
	Tally() models.ScoreTally
	Reset()
}

// Controller owns the canonical round state machine,
// LOBBY → PLAYING → FINISHED → LOBBY. All transitions are host-only;
// player clients observe phase via the change feed and never mutate it.
type Controller struct {
	repo   RoundRepository
	roster RosterSizer
	tally  TallySource
	clock  clockwork.Clock

	mu      sync.Mutex
	current models.Round
}

// NewController creates a controller around the given collaborators.
func NewController(repo RoundRepository, roster RosterSizer, tally TallySource, clock clockwork.Clock) *Controller {
	return &Controller{
		repo:   repo,
		roster: roster,
		tally:  tally,
		clock:  clock,
		current: models.Round{
			ID:    1,
			Phase: models.PhaseLobby,
		},
	}
}

// Observe updates the controller's view of the round row. Called with
// the initial fetch and with every change notification.
func (c *Controller) Observe(round models.Round) {
	c.mu.Lock()
	c.current = round
	c.mu.Unlock()
}

// Current returns the last observed round state.
func (c *Controller) Current() models.Round {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Start begins a round. Valid only from LOBBY with a non-empty roster.
// Resets the tally, sets phase=PLAYING with the current time, and
// clears any previous winner.
func (c *Controller) Start(ctx context.Context) (*models.Round, error) {
	cur, err := c.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cur.Phase != models.PhaseLobby {
		return nil, ErrNotInLobby
	}

	size, err := c.roster.Size(ctx)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, ErrEmptyRoster
	}

	c.tally.Reset()

	round, err := c.repo.SetPlaying(ctx, c.clock.Now())
	if err != nil {
		return nil, err
	}
	c.Observe(*round)
	log.Info().Time("started_at", *round.StartedAt).Int("players", size).Msg("round started")
	return round, nil
}

// Finish ends the round, computing the winner from the current tally.
// Valid from PLAYING; the host may force it before the clock runs out.
func (c *Controller) Finish(ctx context.Context) (*models.Round, error) {
	cur, err := c.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cur.Phase != models.PhasePlaying {
		return nil, ErrNotPlaying
	}

	winner := DecideWinner(c.tally.Tally())
	round, err := c.repo.SetFinished(ctx, winner)
	if err != nil {
		return nil, err
	}
	c.Observe(*round)
	log.Info().Str("winner", string(winner)).Msg("round finished")
	return round, nil
}

// Reset clears the tally and returns the round to LOBBY. Valid from
// FINISHED, and from any state as a host override.
func (c *Controller) Reset(ctx context.Context) (*models.Round, error) {
	c.tally.Reset()

	round, err := c.repo.SetLobby(ctx)
	if err != nil {
		return nil, err
	}
	c.Observe(*round)
	log.Info().Msg("round reset to lobby")
	return round, nil
}

// DecideWinner picks the winning team from a tally snapshot.
func DecideWinner(tally models.ScoreTally) models.Winner {
	switch {
	case tally.Red > tally.Blue:
		return models.WinnerRed
	case tally.Blue > tally.Red:
		return models.WinnerBlue
	default:
		return models.WinnerDraw
	}
}

// RunCountdown samples the countdown at SamplePeriod until ctx is
// cancelled. When a sample observes remaining == 0 while the round is
// PLAYING, it finishes the round. Only this host-side evaluation is
// authoritative; other clients computing the same deadline from the
// shared start timestamp affect display only.
func (c *Controller) RunCountdown(ctx context.Context) {
	ticker := c.clock.NewTicker(SamplePeriod)
	defer ticker.Stop()

	log.Info().Dur("period", SamplePeriod).Msg("countdown sampler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("countdown sampler stopped")
			return
		case <-ticker.Chan():
			cur := c.Current()
			if cur.Phase != models.PhasePlaying {
				continue
			}
			if cur.Remaining(c.clock.Now()) > 0 {
				continue
			}
			if _, err := c.Finish(ctx); err != nil {
				// Another writer may have finished it first.
				if errors.Is(err, ErrNotPlaying) {
					continue
				}
				log.Error().Err(err).Msg("failed to finish round on timeout")
			}
		}
	}
}
