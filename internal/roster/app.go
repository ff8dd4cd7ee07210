package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Edwardtks/tap-war/internal/models"
)

var (
	ErrEmptyNickname   = errors.New("nickname is required")
	ErrNicknameTooLong = fmt.Errorf("nickname exceeds %d characters", models.MaxNicknameLen)
)

// RosterRepository defines what the app needs from the roster repository.
type RosterRepository interface {
	CreatePlayer(ctx context.Context, req CreatePlayerRequest) (*models.Player, error)
	DeletePlayer(ctx context.Context, id uuid.UUID) error
	ListPlayers(ctx context.Context) ([]models.Player, error)
	TeamCounts(ctx context.Context) (red int, blue int, err error)
	CountPlayers(ctx context.Context) (int, error)
}

// App implements roster business logic: joining with balanced team
// assignment, and leaving.
type App struct {
	repo RosterRepository
}

// NewApp creates a new roster app.
func NewApp(repo RosterRepository) *App {
	return &App{repo: repo}
}

// AssignTeam returns the least-populated team given current counts.
// Ties favor RED. Best-effort only: two concurrent joins can read the
// same pre-join counts and transiently imbalance the teams, which
// self-corrects over the session, so no lock is taken.
func AssignTeam(redCount, blueCount int) models.Team {
	if redCount <= blueCount {
		return models.TeamRed
	}
	return models.TeamBlue
}

// Join validates the nickname, assigns a team from current counts, and
// inserts the player. A store error is returned to the caller as-is;
// retrying simply re-attempts the insert.
func (a *App) Join(ctx context.Context, nickname string) (*models.Player, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, ErrEmptyNickname
	}
	if len(nickname) > models.MaxNicknameLen {
		return nil, ErrNicknameTooLong
	}

	red, blue, err := a.repo.TeamCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to assign team: %w", err)
	}
	team := AssignTeam(red, blue)

	player, err := a.repo.CreatePlayer(ctx, CreatePlayerRequest{
		ID:       uuid.New(),
		Nickname: nickname,
		Team:     team,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("player_id", player.ID.String()).
		Str("nickname", player.Nickname).
		Str("team", string(player.Team)).
		Msg("player joined")
	return player, nil
}

// Leave removes a player from the roster.
func (a *App) Leave(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.DeletePlayer(ctx, id); err != nil {
		return err
	}
	log.Info().Str("player_id", id.String()).Msg("player left")
	return nil
}

// Players returns the current roster.
func (a *App) Players(ctx context.Context) ([]models.Player, error) {
	return a.repo.ListPlayers(ctx)
}

// Size returns the roster size.
func (a *App) Size(ctx context.Context) (int, error) {
	return a.repo.CountPlayers(ctx)
}
