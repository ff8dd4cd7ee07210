package score

import (
	"sort"
	"sync"

	"github.com/Edwardtks/tap-war/internal/models"
)

// Reducer folds incoming ClickBatch messages into running team totals
// and a per-player leaderboard. Addition is commutative, so the final
// totals are independent of message arrival order. Single logical
// writer (the host service); the mutex only guards snapshot reads from
// other goroutines.
type Reducer struct {
	mu          sync.Mutex
	tally       models.ScoreTally
	leaderboard map[string]int
	checkpoint  *Checkpoint
}

// Snapshot is a point-in-time copy of the reducer state.
type Snapshot struct {
	Tally       models.ScoreTally `json:"tally"`
	Leaderboard map[string]int    `json:"leaderboard"`
}

// NewReducer creates an empty reducer. checkpoint may be nil to disable
// durable checkpointing.
func NewReducer(checkpoint *Checkpoint) *Reducer {
	r := &Reducer{
		leaderboard: make(map[string]int),
		checkpoint:  checkpoint,
	}
	if checkpoint != nil {
		if snap, ok := checkpoint.Load(); ok {
			r.tally = snap.Tally
			for nick, score := range snap.Leaderboard {
				r.leaderboard[nick] = score
			}
		}
	}
	return r
}

// Apply adds a batch to the matching team total and to the sender's
// leaderboard entry, creating it at zero first if absent.
func (r *Reducer) Apply(batch models.ClickBatch) {
	if batch.Count <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch batch.Team {
	case models.TeamRed:
		r.tally.Red += batch.Count
	case models.TeamBlue:
		r.tally.Blue += batch.Count
	default:
		return
	}
	r.leaderboard[batch.From] += batch.Count

	if r.checkpoint != nil {
		r.checkpoint.Store(r.snapshotLocked())
	}
}

// Reset zeroes the tally and leaderboard and invalidates the durable
// checkpoint. Called at round start and on admin reset.
func (r *Reducer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tally = models.ScoreTally{}
	r.leaderboard = make(map[string]int)
	if r.checkpoint != nil {
		r.checkpoint.Invalidate()
	}
}

// Tally returns the current team totals.
func (r *Reducer) Tally() models.ScoreTally {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tally
}

// Snapshot returns a copy of the full reducer state.
func (r *Reducer) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reducer) snapshotLocked() Snapshot {
	board := make(map[string]int, len(r.leaderboard))
	for nick, score := range r.leaderboard {
		board[nick] = score
	}
	return Snapshot{Tally: r.tally, Leaderboard: board}
}

// Top returns the n highest-scoring players, sorted by score
// descending. Order among equal scores is unspecified.
func (r *Reducer) Top(n int) []models.LeaderboardEntry {
	r.mu.Lock()
	entries := make([]models.LeaderboardEntry, 0, len(r.leaderboard))
	for nick, score := range r.leaderboard {
		entries = append(entries, models.LeaderboardEntry{Nickname: nick, Score: score})
	}
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
