package models

import (
	"time"
)

// Phase defines the state of the round state machine.
type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhasePlaying  Phase = "PLAYING"
	PhaseFinished Phase = "FINISHED"
)

// Winner defines the outcome of a finished round.
type Winner string

const (
	WinnerRed  Winner = "RED"
	WinnerBlue Winner = "BLUE"
	WinnerDraw Winner = "DRAW"
)

// Round is the canonical round row shared by every client.
// StartedAt is non-nil iff Phase == PLAYING; Winner is non-nil iff
// Phase == FINISHED. Only the host mutates it; everyone else observes
// it through the change feed.
type Round struct {
	ID        int        `json:"id"`
	Phase     Phase      `json:"phase"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Winner    *Winner    `json:"winner,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RoundDuration is the fixed length of one round.
const RoundDuration = 30 * time.Second

// Remaining computes the time left in the round at now, derived purely
// from the shared start timestamp. Never negative, zero outside PLAYING.
func (r *Round) Remaining(now time.Time) time.Duration {
	if r.Phase != PhasePlaying || r.StartedAt == nil {
		return 0
	}
	rem := RoundDuration - now.Sub(*r.StartedAt)
	if rem < 0 {
		return 0
	}
	return rem
}
