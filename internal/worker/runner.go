package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vendora/payouts/internal/infrastructure/metrics"
	"github.com/vendora/payouts/internal/usecase"
)

// PayoutService runs the payout pipeline for a single payee.
type PayoutService interface {
	ProcessPayout(ctx context.Context, input usecase.ProcessPayoutInput) (*usecase.PayoutResult, error)
}

// PayoutRunner drives the scheduled daily payout run. Once a day, at a fixed
// UTC hour, it lists every payee holding payable balances and fans the payout
// pipeline out across a bounded worker pool. One payee failing never stops
// the run: each payee is its own unit of work.
type PayoutRunner struct {
	payees  usecase.PayeeRepository
	payouts PayoutService
	retrier usecase.Retrier
	logger  zerolog.Logger
	metrics *metrics.Metrics
	workers int
	hourUTC int
}

// RunnerConfig for PayoutRunner.
type RunnerConfig struct {
	Payees  usecase.PayeeRepository
	Payouts PayoutService
	Retrier usecase.Retrier // Optional; retries transient database errors
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Workers int // Pool size; defaults to 4
	HourUTC int // Hour of day, UTC, at which the run starts
}

// RunStats summarizes one payout run.
type RunStats struct {
	Candidates int
	Processed  int
	Skipped    int
	Failed     int
}

// NewPayoutRunner creates a new PayoutRunner.
func NewPayoutRunner(cfg RunnerConfig) *PayoutRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return &PayoutRunner{
		payees:  cfg.Payees,
		payouts: cfg.Payouts,
		retrier: cfg.Retrier,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		workers: cfg.Workers,
		hourUTC: cfg.HourUTC,
	}
}

// Start blocks until the context is cancelled, kicking off one run per day
// at the configured hour.
func (r *PayoutRunner) Start(ctx context.Context) error {
	r.logger.Info().
		Int("hour_utc", r.hourUTC).
		Int("workers", r.workers).
		Msg("payout runner started")

	for {
		next := nextRunAt(time.Now().UTC(), r.hourUTC)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info().Msg("payout runner shutting down")
			return ctx.Err()
		case <-timer.C:
		}

		cutoff := runCutoff(next)
		stats, err := r.RunOnce(ctx, cutoff)
		if err != nil {
			r.logger.Error().Err(err).Msg("payout run aborted")
			continue
		}

		r.logger.Info().
			Time("cutoff", cutoff).
			Int("candidates", stats.Candidates).
			Int("processed", stats.Processed).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Msg("payout run finished")
	}
}

// RunOnce executes a single payout run for the given cutoff date.
func (r *PayoutRunner) RunOnce(ctx context.Context, cutoff time.Time) (RunStats, error) {
	start := time.Now()

	ids, err := r.payees.ListPayoutCandidateIDs(ctx, cutoff)
	if err != nil {
		return RunStats{}, err
	}

	stats := RunStats{Candidates: len(ids)}
	if len(ids) == 0 {
		return stats, nil
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				outcome := r.processOne(ctx, id, cutoff)
				mu.Lock()
				switch outcome {
				case outcomeProcessed:
					stats.Processed++
				case outcomeSkipped:
					stats.Skipped++
				case outcomeFailed:
					stats.Failed++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, id := range ids {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	if r.metrics != nil {
		r.metrics.PayoutRunDuration.Observe(time.Since(start).Seconds())
	}

	return stats, ctx.Err()
}

type runOutcome int

const (
	outcomeProcessed runOutcome = iota
	outcomeSkipped
	outcomeFailed
)

func (r *PayoutRunner) processOne(ctx context.Context, payeeID string, cutoff time.Time) runOutcome {
	var result *usecase.PayoutResult
	op := func() error {
		var err error
		result, err = r.payouts.ProcessPayout(ctx, usecase.ProcessPayoutInput{
			PayeeID:    payeeID,
			CutoffDate: cutoff,
		})
		return err
	}

	var err error
	if r.retrier != nil {
		err = r.retrier.Retry(ctx, op)
	} else {
		err = op()
	}
	if err != nil {
		if r.metrics != nil {
			r.metrics.PayoutsFailed.Inc()
		}
		r.logger.Error().Err(err).Str("payee_id", payeeID).Msg("scheduled payout failed")
		return outcomeFailed
	}

	if result.Skipped {
		if r.metrics != nil {
			r.metrics.PayoutsSkipped.Inc()
		}
		return outcomeSkipped
	}

	if r.metrics != nil {
		r.metrics.PayoutsProcessed.Inc()
		if result.Payment != nil {
			r.metrics.PayoutAmountCents.Observe(float64(result.Payment.AmountCents))
		}
	}
	return outcomeProcessed
}

// runCutoff returns the cutoff date for a run starting at runAt: the day
// before the run day. Balances settling on the run day itself wait for the
// next run.
func runCutoff(runAt time.Time) time.Time {
	return runAt.AddDate(0, 0, -1).Truncate(24 * time.Hour)
}

// nextRunAt returns the next occurrence of the given UTC hour strictly after
// now.
func nextRunAt(now time.Time, hourUTC int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
