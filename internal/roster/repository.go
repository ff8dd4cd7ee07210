package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Edwardtks/tap-war/internal/models"
)

// Repository implements player roster data access on Postgres.
// Multi-writer: any joining client inserts, any leaving client deletes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new roster repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreatePlayerRequest holds the fields for a roster insert.
type CreatePlayerRequest struct {
	ID       uuid.UUID   `json:"id"`
	Nickname string      `json:"nickname"`
	Team     models.Team `json:"team"`
}

// CreatePlayer inserts a player into the roster.
func (r *Repository) CreatePlayer(ctx context.Context, req CreatePlayerRequest) (*models.Player, error) {
	var player models.Player
	err := r.pool.QueryRow(ctx,
		`INSERT INTO players (id, nickname, team, joined_at)
		 VALUES ($1, $2, $3, now())
		 RETURNING id, nickname, team, joined_at`,
		req.ID, req.Nickname, req.Team,
	).Scan(&player.ID, &player.Nickname, &player.Team, &player.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return &player, nil
}

// DeletePlayer removes a player from the roster.
func (r *Repository) DeletePlayer(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return nil
}

// ListPlayers returns the current roster.
func (r *Repository) ListPlayers(ctx context.Context) ([]models.Player, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, nickname, team, joined_at FROM players ORDER BY joined_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.Nickname, &p.Team, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read players: %w", err)
	}
	return players, nil
}

// TeamCounts returns the current number of players on each team.
func (r *Repository) TeamCounts(ctx context.Context) (red int, blue int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
		   count(*) FILTER (WHERE team = $1),
		   count(*) FILTER (WHERE team = $2)
		 FROM players`,
		models.TeamRed, models.TeamBlue,
	).Scan(&red, &blue)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count teams: %w", err)
	}
	return red, blue, nil
}

// CountPlayers returns the roster size.
func (r *Repository) CountPlayers(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM players`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return count, nil
}
