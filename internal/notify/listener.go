package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Edwardtks/tap-war/internal/models"
)

// RoundChannel is the Postgres NOTIFY channel round-row writes commit to.
const RoundChannel = "tapwar_round_changed"

// ListenerConfig holds LISTEN/NOTIFY connection settings.
type ListenerConfig struct {
	DatabaseURL        string
	Channel            string
	MinReconnectDelay  time.Duration
	MaxReconnectDelay  time.Duration
	PingInterval       time.Duration
}

// DefaultListenerConfig returns the defaults used by the server.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Channel:           RoundChannel,
		MinReconnectDelay: 10 * time.Second,
		MaxReconnectDelay: time.Minute,
		PingInterval:      90 * time.Second,
	}
}

// Listener subscribes to round-row change notifications. Notifications
// arrive in commit order per row, which is the ordering guarantee all
// clients rely on for phase transitions.
type Listener struct {
	listener *pq.Listener
	handler  func(models.Round)
	cfg      ListenerConfig
}

// NewListener opens a LISTEN connection and registers the handler to be
// invoked with each round snapshot.
func NewListener(cfg ListenerConfig, handler func(models.Round)) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnectDelay,
		cfg.MaxReconnectDelay,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.Channel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", cfg.Channel).Msg("listening for round changes")

	return &Listener{
		listener: l,
		handler:  handler,
		cfg:      cfg,
	}, nil
}

// Start delivers notifications until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("round listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// nil notification means the connection was lost and
				// is being re-established
				continue
			}
			l.handleNotification(note.Extra)
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Stop closes the LISTEN connection.
func (l *Listener) Stop() error {
	return l.listener.Close()
}

// handleNotification decodes a round snapshot payload and hands it to
// the handler.
func (l *Listener) handleNotification(payload string) {
	var round models.Round
	if err := json.Unmarshal([]byte(payload), &round); err != nil {
		log.Error().Err(err).Str("payload", payload).Msg("malformed round notification")
		return
	}

	log.Debug().
		Str("phase", string(round.Phase)).
		Msg("round change notification")
	l.handler(round)
}
