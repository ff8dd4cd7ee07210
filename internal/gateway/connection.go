package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Edwardtks/tap-war/internal/clicks"
	"github.com/Edwardtks/tap-war/internal/models"
	"github.com/Edwardtks/tap-war/internal/round"
	"github.com/Edwardtks/tap-war/internal/roster"
)

// writePump sends queued frames and pings to the websocket.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump reads client frames and dispatches them.
func (c *Connection) readPump() {
	defer func() {
		c.manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			break
		}
		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

// handleClientMessage dispatches one client frame.
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("bad json")
		return
	}

	ctx := context.Background()

	switch msg.Type {
	case MsgJoin:
		c.handleJoin(ctx, msg.Nickname)

	case MsgTap:
		c.handleTap(msg.Count)

	case MsgLeave:
		c.teardownPlayer(ctx)

	case MsgStart, MsgFinish, MsgReset:
		c.handleHostCommand(ctx, msg.Type)

	default:
		c.sendError("unknown message type")
	}
}

func (c *Connection) handleJoin(ctx context.Context, nickname string) {
	if c.IsHost {
		c.sendError("host does not join the roster")
		return
	}

	c.mu.Lock()
	joined := c.player != nil
	c.mu.Unlock()
	if joined {
		c.sendError("already joined")
		return
	}

	player, err := c.manager.service.Join(ctx, nickname)
	if err != nil {
		// Join failure is a blocking notice to the user; no automatic
		// retry, the insert is idempotent to re-attempt.
		if errors.Is(err, roster.ErrEmptyNickname) || errors.Is(err, roster.ErrNicknameTooLong) {
			c.sendError(err.Error())
		} else {
			log.Error().Err(err).Str("connection_id", c.ID).Msg("join failed")
			c.sendError("join failed")
		}
		return
	}

	c.mu.Lock()
	c.player = player
	c.mu.Unlock()

	c.sendMessage(ServerMessage{Type: MsgJoined, Player: player})

	// Joining mid-round: start counting taps immediately.
	if c.manager.currentPhase() == models.PhasePlaying {
		c.startAggregator()
	}
}

func (c *Connection) handleTap(count int) {
	if count <= 0 {
		count = 1
	}
	if c.manager.currentPhase() != models.PhasePlaying {
		return
	}

	c.mu.Lock()
	agg := c.aggregator
	c.mu.Unlock()
	if agg == nil {
		return
	}
	agg.Tap(count)
}

func (c *Connection) handleHostCommand(ctx context.Context, cmd string) {
	if !c.IsHost {
		c.sendError("not authorized")
		return
	}

	var err error
	switch cmd {
	case MsgStart:
		_, err = c.manager.service.StartRound(ctx)
	case MsgFinish:
		_, err = c.manager.service.FinishRound(ctx)
	case MsgReset:
		_, err = c.manager.service.ResetRound(ctx)
	}
	if err != nil {
		if errors.Is(err, round.ErrNotInLobby) || errors.Is(err, round.ErrNotPlaying) || errors.Is(err, round.ErrEmptyRoster) {
			c.sendError(err.Error())
			return
		}
		log.Error().Err(err).Str("command", cmd).Msg("host command failed")
		c.sendError("command failed")
	}
}

// startAggregator creates a fresh per-round aggregator for a joined
// player. The flush loop is scoped to the connection; its context is
// cancelled on stop so no timer outlives the round or the connection.
func (c *Connection) startAggregator() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.player == nil || c.aggregator != nil {
		return
	}

	agg := clicks.NewAggregator(
		c.manager.publisher,
		c.manager.clock,
		c.player.Team,
		c.player.Nickname,
		c.manager.config.FlushInterval,
	)
	ctx, cancel := context.WithCancel(context.Background())
	c.aggregator = agg
	c.aggCancel = cancel
	go agg.Run(ctx)
}

// stopAggregator performs the final flush and cancels the flush loop.
func (c *Connection) stopAggregator() {
	c.mu.Lock()
	agg := c.aggregator
	cancel := c.aggCancel
	c.aggregator = nil
	c.aggCancel = nil
	c.mu.Unlock()

	if agg == nil {
		return
	}
	agg.FinalFlush()
	if cancel != nil {
		cancel()
	}
}

// teardownPlayer flushes, stops the aggregator, and frees the roster
// slot. Safe to call twice; the second call is a no-op.
func (c *Connection) teardownPlayer(ctx context.Context) {
	c.stopAggregator()

	c.mu.Lock()
	player := c.player
	c.player = nil
	c.mu.Unlock()

	if player == nil {
		return
	}
	if err := c.manager.service.Leave(ctx, player.ID); err != nil {
		log.Error().Err(err).Str("player_id", player.ID.String()).Msg("failed to remove player")
	}
}

func (c *Connection) sendMessage(msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal server message")
		return
	}

	// Guard against a send racing the unregister close.
	c.manager.mu.RLock()
	defer c.manager.mu.RUnlock()
	if !c.manager.connections[c] {
		return
	}
	select {
	case c.Send <- payload:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full, dropping frame")
	}
}

func (c *Connection) sendError(text string) {
	c.sendMessage(ServerMessage{Type: MsgError, Error: text})
}
