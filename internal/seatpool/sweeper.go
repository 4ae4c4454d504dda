package seatpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const DefaultSweepInterval = 5 * time.Second

// Sweeper periodically reclaims expired leases in every pool of a Registry.
// Pools also reclaim lazily, so the sweeper only shortens how long an
// abandoned seat shows as Locked.
type Sweeper struct {
	registry  *Registry
	interval  time.Duration
	logger    *slog.Logger
	reclaimed metric.Int64Counter

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	totalReclaimed atomic.Int64
}

func NewSweeper(registry *Registry, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	counter, err := otel.Meter("seatpool").Int64Counter(
		"seat_leases_reclaimed_total",
		metric.WithDescription("Seat locks returned to available after their lease expired"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lease reclaim counter: %w", err)
	}

	return &Sweeper{
		registry:  registry,
		interval:  interval,
		logger:    logger,
		reclaimed: counter,
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("lease sweeper already running")
	}

	s.running = true
	s.stopCh = make(chan struct{})

	s.logger.Info("starting lease sweeper", "interval", s.interval)

	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)

	return nil
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("lease sweeper stopped", "total_reclaimed", s.totalReclaimed.Load())
}

func (s *Sweeper) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one pass over all pools and returns the number of seats
// reclaimed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	total := 0

	for _, pool := range s.registry.Pools() {
		n, err := pool.Sweep(ctx)
		if err != nil {
			s.logger.Error("failed to sweep seat pool", "showtime_id", pool.ShowtimeID(), "error", err)
			continue
		}

		if n == 0 {
			continue
		}

		total += n
		s.reclaimed.Add(ctx, int64(n), metric.WithAttributes(attribute.Int("showtime_id", pool.ShowtimeID())))
		s.logger.Info("reclaimed expired seat locks", "showtime_id", pool.ShowtimeID(), "count", n)
	}

	s.totalReclaimed.Add(int64(total))

	return total
}

func (s *Sweeper) TotalReclaimed() int64 {
	return s.totalReclaimed.Load()
}
