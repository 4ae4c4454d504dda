package seatpool

import (
	"context"
	"strconv"
	"sync"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Loader builds the pool of a showtime. It is called at most once per
// showtime for the lifetime of a Registry, unless it fails.
type Loader func(ctx context.Context, showtimeID int) (domain.SeatPool, error)

// Registry hands out one SeatPool per showtime, creating it on first use.
type Registry struct {
	load  Loader
	group singleflight.Group

	mu    sync.RWMutex
	pools map[int]domain.SeatPool
}

func NewRegistry(load Loader) *Registry {
	return &Registry{
		load:  load,
		pools: make(map[int]domain.SeatPool),
	}
}

func (r *Registry) cached(showtimeID int) (domain.SeatPool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pool, ok := r.pools[showtimeID]
	return pool, ok
}

func (r *Registry) Get(ctx context.Context, showtimeID int) (domain.SeatPool, error) {
	if pool, ok := r.cached(showtimeID); ok {
		return pool, nil
	}

	v, err, _ := r.group.Do(strconv.Itoa(showtimeID), func() (any, error) {
		if pool, ok := r.cached(showtimeID); ok {
			return pool, nil
		}

		pool, err := r.load(ctx, showtimeID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.pools[showtimeID] = pool
		r.mu.Unlock()

		return pool, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(domain.SeatPool), nil
}

// Pools returns the pools built so far.
func (r *Registry) Pools() []domain.SeatPool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pools := make([]domain.SeatPool, 0, len(r.pools))
	for _, pool := range r.pools {
		pools = append(pools, pool)
	}

	return pools
}
