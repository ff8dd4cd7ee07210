package gateway

import (
	"github.com/Edwardtks/tap-war/internal/game"
	"github.com/Edwardtks/tap-war/internal/models"
)

// Client -> server message types.
const (
	MsgJoin  = "join"
	MsgTap   = "tap"
	MsgLeave = "leave"

	// Host-only commands.
	MsgStart  = "start"
	MsgFinish = "finish"
	MsgReset  = "reset"
)

// Server -> client message types.
const (
	MsgRound  = "round"
	MsgScore  = "score"
	MsgJoined = "joined"
	MsgError  = "error"
)

// ClientMessage is what players and the host send over the websocket.
// Count lets a client batch taps between frames; zero means one tap.
type ClientMessage struct {
	Type     string `json:"type"`
	Nickname string `json:"nickname,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// ServerMessage is the envelope pushed to clients. Clients derive the
// countdown locally from Round.StartedAt; the server sends no ticks.
type ServerMessage struct {
	Type   string            `json:"type"`
	Round  *models.Round     `json:"round,omitempty"`
	Score  *game.ScoreUpdate `json:"score,omitempty"`
	Player *models.Player    `json:"player,omitempty"`
	Error  string            `json:"error,omitempty"`
}
