package email

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/outbox"
)

// SweeperConfig contains retry sweeper configuration.
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultSweeperConfig returns default sweeper configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  10 * time.Second,
		BatchSize: 50,
	}
}

// SweepStore is the outbox access the sweeper needs.
type SweepStore interface {
	RequeueDue(ctx context.Context, channel domain.Channel, now time.Time, limit int) (int64, error)
	FetchPending(ctx context.Context, channel domain.Channel, now time.Time, limit int) ([]*outbox.Record, error)
}

// Sweeper periodically requeues due failed email records and drives pending
// ones through the deliverer. A single goroutine runs the loop, so one sweep
// never overlaps the next; a slow sweep runs back-to-back with the following
// tick instead.
type Sweeper struct {
	config    SweeperConfig
	store     SweepStore
	deliverer *Deliverer

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSweeper creates a new retry sweeper.
func NewSweeper(config SweeperConfig, store SweepStore, deliverer *Deliverer) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSweeperConfig().BatchSize
	}
	return &Sweeper{
		config:    config,
		store:     store,
		deliverer: deliverer,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("starting retry sweeper",
		"interval", s.config.Interval,
		"batch_size", s.config.BatchSize,
	)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("retry sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass: requeue due failed records, then attempt delivery
// for a bounded batch of pending ones.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	requeued, err := s.store.RequeueDue(ctx, domain.ChannelEmail, now, s.config.BatchSize)
	if err != nil {
		slog.Error("failed to requeue due records", "error", err)
	} else if requeued > 0 {
		recordRequeued(requeued)
		slog.Debug("requeued failed email records", "count", requeued)
	}

	pending, err := s.store.FetchPending(ctx, domain.ChannelEmail, now, s.config.BatchSize)
	if err != nil {
		slog.Error("failed to fetch pending records", "error", err)
		return
	}

	for _, rec := range pending {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		if err := s.deliverer.Deliver(ctx, rec); err != nil {
			// Outcome already recorded on the row; keep draining the batch.
			continue
		}
	}
}
