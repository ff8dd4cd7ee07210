package clicks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Edwardtks/tap-war/internal/models"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches []models.ClickBatch
	signal  chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{signal: make(chan struct{}, 16)}
}

func (p *recordingPublisher) PublishClicks(batch models.ClickBatch) error {
	p.mu.Lock()
	p.batches = append(p.batches, batch)
	p.mu.Unlock()
	p.signal <- struct{}{}
	return nil
}

func (p *recordingPublisher) published() []models.ClickBatch {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ClickBatch, len(p.batches))
	copy(out, p.batches)
	return out
}

func (p *recordingPublisher) waitForBatch(t *testing.T) {
	t.Helper()
	select {
	case <-p.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("no batch published")
	}
}

func TestAggregator_FlushesOncePerInterval(t *testing.T) {
	pub := newRecordingPublisher()
	clock := clockwork.NewFakeClock()
	agg := NewAggregator(pub, clock, models.TeamRed, "ann", FlushInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)

	agg.Tap(1)
	agg.Tap(1)
	agg.Tap(3)

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("flusher never slept: %v", err)
	}
	clock.Advance(FlushInterval)
	pub.waitForBatch(t)

	got := pub.published()
	if len(got) != 1 {
		t.Fatalf("expected exactly one batch, got %d", len(got))
	}
	want := models.ClickBatch{Team: models.TeamRed, Count: 5, From: "ann"}
	if got[0] != want {
		t.Fatalf("expected %+v, got %+v", want, got[0])
	}
}

func TestAggregator_NoBatchWhenIdle(t *testing.T) {
	pub := newRecordingPublisher()
	clock := clockwork.NewFakeClock()
	agg := NewAggregator(pub, clock, models.TeamBlue, "bob", FlushInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)

	// Two empty intervals: the counter is zero, nothing is sent.
	for i := 0; i < 2; i++ {
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatalf("flusher never slept: %v", err)
		}
		clock.Advance(FlushInterval)
	}

	if got := pub.published(); len(got) != 0 {
		t.Fatalf("expected no batches while idle, got %v", got)
	}
}

func TestAggregator_DrainsCounterOnFlush(t *testing.T) {
	pub := newRecordingPublisher()
	clock := clockwork.NewFakeClock()
	agg := NewAggregator(pub, clock, models.TeamRed, "ann", FlushInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)

	agg.Tap(4)
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("flusher never slept: %v", err)
	}
	clock.Advance(FlushInterval)
	pub.waitForBatch(t)

	agg.Tap(2)
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("flusher never slept: %v", err)
	}
	clock.Advance(FlushInterval)
	pub.waitForBatch(t)

	got := pub.published()
	if len(got) != 2 || got[0].Count != 4 || got[1].Count != 2 {
		t.Fatalf("expected batches of 4 then 2, got %v", got)
	}
}

func TestAggregator_FinalFlushExactlyOnce(t *testing.T) {
	pub := newRecordingPublisher()
	clock := clockwork.NewFakeClock()
	agg := NewAggregator(pub, clock, models.TeamBlue, "bob", FlushInterval)

	agg.Tap(7)

	// Phase exit and disconnect can both reach the final flush; the
	// residual counter goes out exactly once.
	agg.FinalFlush()
	agg.FinalFlush()

	got := pub.published()
	if len(got) != 1 {
		t.Fatalf("expected exactly one final batch, got %d", len(got))
	}
	if got[0].Count != 7 {
		t.Fatalf("expected residual count 7, got %d", got[0].Count)
	}
}

func TestAggregator_NoTapsAfterFinalFlush(t *testing.T) {
	pub := newRecordingPublisher()
	clock := clockwork.NewFakeClock()
	agg := NewAggregator(pub, clock, models.TeamBlue, "bob", FlushInterval)

	agg.FinalFlush()
	agg.Tap(3)

	if got := pub.published(); len(got) != 0 {
		t.Fatalf("expected no batches after teardown, got %v", got)
	}
}
