package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/infrastructure/eventpublisher"
	"github.com/vendora/payouts/tests/testutil"
)

type collectingPublisher struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent
}

func (p *collectingPublisher) Publish(_ context.Context, event *domain.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *collectingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestOutboxDrainedByPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	s := newStack(t, testDB)
	payment := disburse(t, ctx, testDB, s, 50_00)

	events, err := s.outbox.GetUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("failed to read outbox: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected unpublished events after a payout")
	}

	sink := &collectingPublisher{}
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: s.outbox,
		Publisher:  sink,
		BatchSize:  10,
		Interval:   10 * time.Millisecond,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- publisher.Start(runCtx)
	}()

	deadline := time.After(5 * time.Second)
	for sink.count() < len(events) {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("publisher drained only %d of %d events", sink.count(), len(events))
		case <-time.After(20 * time.Millisecond):
		}
	}
	cancel()
	<-done

	remaining, err := s.outbox.GetUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("failed to re-read outbox: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected outbox drained, %d events left", len(remaining))
	}

	var sawInitiated bool
	for _, e := range sink.events {
		if e.EventType == domain.EventTypePayoutInitiated && e.AggregateID == payment.ID {
			sawInitiated = true
		}
	}
	if !sawInitiated {
		t.Error("payout.initiated event was not delivered")
	}
}
