package models

// ClickBatch is the ephemeral message a player publishes once per flush
// interval: the taps accumulated since the last flush. At-most-once
// delivery; a lost batch is permanently lost.
type ClickBatch struct {
	Team  Team   `json:"team"`
	Count int    `json:"count"`
	From  string `json:"from"`
}

// ScoreTally holds the running team totals on the host side.
type ScoreTally struct {
	Red  int `json:"red"`
	Blue int `json:"blue"`
}

// LeaderboardEntry is one row of the per-player leaderboard.
type LeaderboardEntry struct {
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}
