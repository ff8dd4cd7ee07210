package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Edwardtks/tap-war/internal/clicks"
	"github.com/Edwardtks/tap-war/internal/game"
	"github.com/Edwardtks/tap-war/internal/models"
)

// ConnectionManager owns all websocket connections and fans game
// events out to them. It implements game.Sink.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	service   *game.Service
	publisher clicks.Publisher
	clock     clockwork.Clock

	// phase is the last broadcast round phase; tap handling and
	// aggregator lifecycles key off its transitions.
	phase   models.Phase
	phaseMu sync.RWMutex

	broadcastCh chan broadcastMessage
}

type broadcastMessage struct {
	payload  []byte
	hostOnly bool
}

// Connection represents one websocket client, host or player.
type Connection struct {
	ID     string
	IsHost bool
	Conn   *websocket.Conn
	Send   chan []byte

	manager *ConnectionManager

	// Player state, set on join. aggCancel scopes the aggregator's
	// flush loop to this connection.
	mu         sync.Mutex
	player     *models.Player
	aggregator *clicks.Aggregator
	aggCancel  context.CancelFunc

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds websocket and protocol settings.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool

	// FlushInterval is the click aggregator flush period.
	FlushInterval time.Duration

	// HostToken authorizes round mutations. The mode=host query flag
	// alone is never trusted.
	HostToken string
}

// DefaultConnectionConfig returns the default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		FlushInterval: clicks.FlushInterval,
	}
}

// NewConnectionManager creates a connection manager.
func NewConnectionManager(config ConnectionConfig, publisher clicks.Publisher, clock clockwork.Clock) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		publisher:   publisher,
		clock:       clock,
		phase:       models.PhaseLobby,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetService injects the game service. Separate from construction
// because the service's sink is the manager itself.
func (cm *ConnectionManager) SetService(svc *game.Service) {
	cm.service = svc
}

// Start processes broadcast messages until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket client.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, isHost bool) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		IsHost:      isHost,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	// Current round snapshot straight away, so a reconnecting client
	// resynchronizes without waiting for the next change.
	connection.sendMessage(ServerMessage{Type: MsgRound, Round: roundPtr(cm.service.CurrentRound())})
	if isHost {
		update := cm.service.Scores()
		connection.sendMessage(ServerMessage{Type: MsgScore, Score: &update})
	}

	log.Info().
		Str("connection_id", connection.ID).
		Bool("host", isHost).
		Msg("websocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn] = true
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	registered := cm.connections[conn]
	if registered {
		delete(cm.connections, conn)
		close(conn.Send)
	}
	cm.mu.Unlock()

	if !registered {
		return
	}

	// Teardown: flush residual taps, stop the flush loop, free the
	// roster slot.
	conn.teardownPlayer(context.Background())

	log.Info().Str("connection_id", conn.ID).Msg("connection unregistered")
}

// BroadcastRound implements game.Sink: fan the snapshot out to every
// client and drive aggregator lifecycles off the phase transition.
func (cm *ConnectionManager) BroadcastRound(rnd models.Round) {
	cm.handlePhaseTransition(rnd.Phase)

	payload, err := json.Marshal(ServerMessage{Type: MsgRound, Round: &rnd})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal round broadcast")
		return
	}
	cm.enqueueBroadcast(broadcastMessage{payload: payload})
}

// BroadcastScore implements game.Sink: score updates go to the host
// view only.
func (cm *ConnectionManager) BroadcastScore(update game.ScoreUpdate) {
	payload, err := json.Marshal(ServerMessage{Type: MsgScore, Score: &update})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal score broadcast")
		return
	}
	cm.enqueueBroadcast(broadcastMessage{payload: payload, hostOnly: true})
}

func (cm *ConnectionManager) enqueueBroadcast(message broadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	// Send while holding the read lock: unregister closes Send under
	// the write lock, so a frame can never hit a closed channel.
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for conn := range cm.connections {
		if message.hostOnly && !conn.IsHost {
			continue
		}
		select {
		case conn.Send <- message.payload:
		default:
			// Slow client; drop the frame rather than block fan-out.
			log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, dropping frame")
		}
	}
}

// handlePhaseTransition starts per-player aggregators when a round
// begins and performs the single final flush when it leaves PLAYING.
func (cm *ConnectionManager) handlePhaseTransition(next models.Phase) {
	cm.phaseMu.Lock()
	prev := cm.phase
	cm.phase = next
	cm.phaseMu.Unlock()

	if prev == next {
		return
	}

	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	switch {
	case next == models.PhasePlaying:
		for _, conn := range conns {
			conn.startAggregator()
		}
	case prev == models.PhasePlaying:
		for _, conn := range conns {
			conn.stopAggregator()
		}
	}
}

func (cm *ConnectionManager) currentPhase() models.Phase {
	cm.phaseMu.RLock()
	defer cm.phaseMu.RUnlock()
	return cm.phase
}

// GetConnectionStats returns counts of active connections.
func (cm *ConnectionManager) GetConnectionStats() (total int, hosts int, players int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for conn := range cm.connections {
		total++
		if conn.IsHost {
			hosts++
		} else {
			players++
		}
	}
	return total, hosts, players
}

func roundPtr(r models.Round) *models.Round {
	return &r
}
