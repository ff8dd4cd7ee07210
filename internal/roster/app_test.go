package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Edwardtks/tap-war/internal/models"
)

type fakeRepo struct {
	red, blue int
	created   []CreatePlayerRequest
	createErr error
}

func (f *fakeRepo) CreatePlayer(ctx context.Context, req CreatePlayerRequest) (*models.Player, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &models.Player{ID: req.ID, Nickname: req.Nickname, Team: req.Team}, nil
}

func (f *fakeRepo) DeletePlayer(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeRepo) ListPlayers(ctx context.Context) ([]models.Player, error) { return nil, nil }

func (f *fakeRepo) TeamCounts(ctx context.Context) (int, int, error) { return f.red, f.blue, nil }

func (f *fakeRepo) CountPlayers(ctx context.Context) (int, error) { return f.red + f.blue, nil }

func TestAssignTeam(t *testing.T) {
	cases := []struct {
		red, blue int
		want      models.Team
	}{
		{0, 0, models.TeamRed},
		{3, 3, models.TeamRed},
		{2, 5, models.TeamRed},
		{5, 2, models.TeamBlue},
		{4, 3, models.TeamBlue},
	}
	for _, tc := range cases {
		if got := AssignTeam(tc.red, tc.blue); got != tc.want {
			t.Fatalf("AssignTeam(%d, %d) = %s, want %s", tc.red, tc.blue, got, tc.want)
		}
	}
}

func TestJoin_AssignsLeastPopulatedTeam(t *testing.T) {
	repo := &fakeRepo{red: 1, blue: 0}
	app := NewApp(repo)

	player, err := app.Join(context.Background(), "bob")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if player.Team != models.TeamBlue {
		t.Fatalf("expected BLUE for counts (1, 0), got %s", player.Team)
	}
}

func TestJoin_ValidatesNickname(t *testing.T) {
	app := NewApp(&fakeRepo{})

	if _, err := app.Join(context.Background(), "   "); !errors.Is(err, ErrEmptyNickname) {
		t.Fatalf("expected ErrEmptyNickname, got %v", err)
	}
	if _, err := app.Join(context.Background(), "thirteenchars"); !errors.Is(err, ErrNicknameTooLong) {
		t.Fatalf("expected ErrNicknameTooLong, got %v", err)
	}

	player, err := app.Join(context.Background(), "  twelvechars ")
	if err != nil {
		t.Fatalf("expected trimmed nickname to pass, got %v", err)
	}
	if player.Nickname != "twelvechars" {
		t.Fatalf("expected trimmed nickname, got %q", player.Nickname)
	}
}

func TestJoin_SurfacesStoreError(t *testing.T) {
	storeErr := errors.New("insert failed")
	app := NewApp(&fakeRepo{createErr: storeErr})

	if _, err := app.Join(context.Background(), "ann"); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error surfaced, got %v", err)
	}
}
