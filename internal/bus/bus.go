package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/Edwardtks/tap-war/internal/models"
)

// ClicksSubject is the shared channel click batches are published on.
const ClicksSubject = "tapwar.clicks"

const (
	maxReconnects = -1 // infinite
	reconnectWait = 2 * time.Second
)

// Bus is the ephemeral pub/sub leg of the realtime store, backed by
// core NATS. Delivery is best-effort while subscribed, at most once;
// that is exactly the ClickBatch contract, so plain subjects are used
// rather than a persistent stream.
type Bus struct {
	nc *nats.Conn
}

// Connect dials NATS with reconnect handling.
func Connect(url string) (*Bus, error) {
	opts := []nats.Option{
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Bus{nc: nc}, nil
}

// PublishClicks sends one ClickBatch to the shared subject.
func (b *Bus) PublishClicks(batch models.ClickBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal click batch: %w", err)
	}
	if err := b.nc.Publish(ClicksSubject, data); err != nil {
		return fmt.Errorf("publish click batch: %w", err)
	}
	return nil
}

// SubscribeClicks delivers incoming ClickBatch messages to handler.
// Messages that fail to decode are dropped.
func (b *Bus) SubscribeClicks(handler func(models.ClickBatch)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(ClicksSubject, func(msg *nats.Msg) {
		var batch models.ClickBatch
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			log.Warn().Err(err).Msg("dropping malformed click batch")
			return
		}
		handler(batch)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe clicks: %w", err)
	}
	return sub, nil
}

// Close drains and closes the connection.
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}
