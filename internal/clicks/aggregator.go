package clicks

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Edwardtks/tap-war/internal/models"
)

// FlushInterval is the fixed period at which a player's tap counter is
// drained and published. Batching turns O(taps) messages into O(time),
// at the cost of up to one interval of score-reporting latency.
const FlushInterval = 1000 * time.Millisecond

// Publisher sends a ClickBatch to the shared channel. Fire-and-forget:
// the aggregator never retries and nothing downstream acknowledges.
type Publisher interface {
	PublishClicks(batch models.ClickBatch) error
}

// Aggregator buffers one player's taps and flushes them as batched
// count messages. At most one batch per interval; on teardown a single
// final flush drains any residual counter so the last sub-interval of
// taps is not lost.
type Aggregator struct {
	publisher Publisher
	clock     clockwork.Clock
	team      models.Team
	from      string
	interval  time.Duration

	mu      sync.Mutex
	count   int
	stopped bool

	finalOnce sync.Once
}

// NewAggregator creates an aggregator for one player.
func NewAggregator(publisher Publisher, clock clockwork.Clock, team models.Team, from string, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = FlushInterval
	}
	return &Aggregator{
		publisher: publisher,
		clock:     clock,
		team:      team,
		from:      from,
		interval:  interval,
	}
}

// Tap records n taps. Taps arriving after the final flush are dropped.
func (a *Aggregator) Tap(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	if !a.stopped {
		a.count += n
	}
	a.mu.Unlock()
}

// Run flushes once per interval until ctx is cancelled. Cancellation
// stops the ticker without flushing; callers that need the residual
// taps delivered call FinalFlush before or instead of cancelling.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			a.flush()
		}
	}
}

// FinalFlush performs the one unconditional teardown flush and stops
// the aggregator. Called on the PLAYING→FINISHED transition (and on
// disconnect); safe to call from both paths, the residual counter is
// published exactly once.
func (a *Aggregator) FinalFlush() {
	a.finalOnce.Do(func() {
		a.mu.Lock()
		a.stopped = true
		a.mu.Unlock()
		a.publish(a.drain())
	})
}

// flush drains the counter and publishes one batch if it was non-zero.
func (a *Aggregator) flush() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.publish(a.drain())
}

// drain atomically reads and zeroes the counter.
func (a *Aggregator) drain() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.count
	a.count = 0
	return n
}

func (a *Aggregator) publish(n int) {
	if n <= 0 {
		return
	}
	batch := models.ClickBatch{Team: a.team, Count: n, From: a.from}
	if err := a.publisher.PublishClicks(batch); err != nil {
		// Lossy by design: those clicks are gone, nobody is told.
		log.Debug().Err(err).Str("from", a.from).Int("count", n).Msg("dropped click batch")
	}
}
