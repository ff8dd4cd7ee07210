package models

import (
	"time"

	"github.com/google/uuid"
)

// Team defines which side a player clicks for.
type Team string

const (
	TeamRed  Team = "RED"
	TeamBlue Team = "BLUE"
)

// MaxNicknameLen caps nickname length at join time.
const MaxNicknameLen = 12

// Player represents one joined participant in the roster.
type Player struct {
	ID       uuid.UUID `json:"id"`
	Nickname string    `json:"nickname"`
	Team     Team      `json:"team"`
	JoinedAt time.Time `json:"joined_at"`
}
