package score

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Edwardtks/tap-war/internal/models"
)

func TestReducer_Apply_SumsByTeam(t *testing.T) {
	r := NewReducer(nil)

	r.Apply(models.ClickBatch{Team: models.TeamRed, Count: 5, From: "ann"})
	r.Apply(models.ClickBatch{Team: models.TeamBlue, Count: 3, From: "bob"})
	r.Apply(models.ClickBatch{Team: models.TeamRed, Count: 2, From: "ann"})

	tally := r.Tally()
	if tally.Red != 7 || tally.Blue != 3 {
		t.Fatalf("expected tally {7 3}, got %+v", tally)
	}

	snap := r.Snapshot()
	if snap.Leaderboard["ann"] != 7 || snap.Leaderboard["bob"] != 3 {
		t.Fatalf("unexpected leaderboard %v", snap.Leaderboard)
	}
}

func TestReducer_Apply_OrderIndependent(t *testing.T) {
	batches := []models.ClickBatch{
		{Team: models.TeamRed, Count: 4, From: "ann"},
		{Team: models.TeamBlue, Count: 9, From: "bob"},
		{Team: models.TeamRed, Count: 1, From: "cat"},
		{Team: models.TeamBlue, Count: 2, From: "bob"},
		{Team: models.TeamRed, Count: 6, From: "ann"},
		{Team: models.TeamBlue, Count: 3, From: "dan"},
	}

	reference := NewReducer(nil)
	for _, b := range batches {
		reference.Apply(b)
	}
	want := reference.Snapshot()

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]models.ClickBatch, len(batches))
		copy(shuffled, batches)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		r := NewReducer(nil)
		for _, b := range shuffled {
			r.Apply(b)
		}
		if diff := cmp.Diff(want, r.Snapshot()); diff != "" {
			t.Fatalf("trial %d: snapshot differs under reordering (-want +got):\n%s", trial, diff)
		}
	}
}

func TestReducer_Apply_IgnoresInvalid(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(models.ClickBatch{Team: models.TeamRed, Count: 0, From: "ann"})
	r.Apply(models.ClickBatch{Team: models.TeamRed, Count: -3, From: "ann"})
	r.Apply(models.ClickBatch{Team: "GREEN", Count: 4, From: "eve"})

	if tally := r.Tally(); tally.Red != 0 || tally.Blue != 0 {
		t.Fatalf("expected empty tally, got %+v", tally)
	}
	if snap := r.Snapshot(); len(snap.Leaderboard) != 0 {
		t.Fatalf("expected empty leaderboard, got %v", snap.Leaderboard)
	}
}

func TestReducer_Top_TiesUnordered(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(models.ClickBatch{Team: models.TeamRed, Count: 10, From: "A"})
	r.Apply(models.ClickBatch{Team: models.TeamBlue, Count: 25, From: "B"})
	r.Apply(models.ClickBatch{Team: models.TeamRed, Count: 5, From: "C"})
	r.Apply(models.ClickBatch{Team: models.TeamBlue, Count: 25, From: "D"})

	top := r.Top(3)
	if len(top) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(top))
	}

	// B and D (25 each) occupy the top two slots in either order.
	firstTwo := map[string]bool{top[0].Nickname: true, top[1].Nickname: true}
	if !firstTwo["B"] || !firstTwo["D"] {
		t.Fatalf("expected B and D in the top two, got %v", top)
	}
	if top[0].Score != 25 || top[1].Score != 25 {
		t.Fatalf("expected top two scores of 25, got %v", top)
	}
	if top[2].Nickname != "A" || top[2].Score != 10 {
		t.Fatalf("expected A with 10 in third, got %v", top[2])
	}
}

func TestReducer_Reset_ClearsEverything(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(models.ClickBatch{Team: models.TeamRed, Count: 8, From: "ann"})
	r.Reset()

	if tally := r.Tally(); tally.Red != 0 || tally.Blue != 0 {
		t.Fatalf("expected zero tally after reset, got %+v", tally)
	}
	if top := r.Top(3); len(top) != 0 {
		t.Fatalf("expected empty leaderboard after reset, got %v", top)
	}
}

func TestCheckpoint_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")

	r := NewReducer(NewCheckpoint(path))
	r.Apply(models.ClickBatch{Team: models.TeamRed, Count: 12, From: "ann"})
	r.Apply(models.ClickBatch{Team: models.TeamBlue, Count: 4, From: "bob"})

	// Simulate a host restart mid-round.
	restarted := NewReducer(NewCheckpoint(path))
	if diff := cmp.Diff(r.Snapshot(), restarted.Snapshot()); diff != "" {
		t.Fatalf("restarted reducer differs (-want +got):\n%s", diff)
	}
}

func TestCheckpoint_InvalidatedOnReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")

	r := NewReducer(NewCheckpoint(path))
	r.Apply(models.ClickBatch{Team: models.TeamRed, Count: 12, From: "ann"})
	r.Reset()

	restarted := NewReducer(NewCheckpoint(path))
	if tally := restarted.Tally(); tally.Red != 0 {
		t.Fatalf("expected checkpoint invalidated on reset, got %+v", tally)
	}
}
