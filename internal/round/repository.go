package round

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Edwardtks/tap-war/internal/models"
	"github.com/Edwardtks/tap-war/internal/notify"
)

// canonicalRoundID is the id of the single shared round row.
const canonicalRoundID = 1

// Repository implements round row access on Postgres. The round row is
// host-exclusive-write, multi-reader; every write commits a pg_notify
// carrying the new snapshot so subscribers see changes in commit order.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new round repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ensure inserts the canonical LOBBY row if it does not exist yet.
func (r *Repository) Ensure(ctx context.Context) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO rounds (id, phase, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (id) DO NOTHING`,
		canonicalRoundID, models.PhaseLobby)
	if err != nil {
		return fmt.Errorf("failed to ensure round row: %w", err)
	}
	return nil
}

// Get fetches the canonical round row.
func (r *Repository) Get(ctx context.Context) (*models.Round, error) {
	var round models.Round
	err := r.pool.QueryRow(ctx,
		`SELECT id, phase, started_at, winner, updated_at FROM rounds WHERE id = $1`,
		canonicalRoundID,
	).Scan(&round.ID, &round.Phase, &round.StartedAt, &round.Winner, &round.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return &round, nil
}

// SetPlaying writes phase=PLAYING with the given start time and clears
// the winner. Concurrent hosts are not arbitrated: last write wins.
func (r *Repository) SetPlaying(ctx context.Context, startedAt time.Time) (*models.Round, error) {
	return r.update(ctx,
		`UPDATE rounds SET phase = $2, started_at = $3, winner = NULL, updated_at = now()
		 WHERE id = $1
		 RETURNING id, phase, started_at, winner, updated_at`,
		canonicalRoundID, models.PhasePlaying, startedAt)
}

// SetFinished writes phase=FINISHED with the computed winner.
func (r *Repository) SetFinished(ctx context.Context, winner models.Winner) (*models.Round, error) {
	return r.update(ctx,
		`UPDATE rounds SET phase = $2, started_at = NULL, winner = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING id, phase, started_at, winner, updated_at`,
		canonicalRoundID, models.PhaseFinished, winner)
}

// SetLobby returns the row to LOBBY with no start time and no winner.
func (r *Repository) SetLobby(ctx context.Context) (*models.Round, error) {
	return r.update(ctx,
		`UPDATE rounds SET phase = $2, started_at = NULL, winner = NULL, updated_at = now()
		 WHERE id = $1
		 RETURNING id, phase, started_at, winner, updated_at`,
		canonicalRoundID, models.PhaseLobby)
}

// update runs the row mutation and the change notification in one
// transaction, so notifications are delivered in commit order.
func (r *Repository) update(ctx context.Context, sql string, args ...any) (*models.Round, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin round update: %w", err)
	}
	defer tx.Rollback(ctx)

	var round models.Round
	err = tx.QueryRow(ctx, sql, args...).
		Scan(&round.ID, &round.Phase, &round.StartedAt, &round.Winner, &round.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update round: %w", err)
	}

	payload, err := json.Marshal(&round)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal round notification: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notify.RoundChannel, string(payload)); err != nil {
		return nil, fmt.Errorf("failed to notify round change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit round update: %w", err)
	}
	return &round, nil
}
