package seatpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisPoolTestSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
}

func TestRedisPoolSuite(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}
	suite.Run(t, new(RedisPoolTestSuite))
}

func (s *RedisPoolTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7")
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	opts, err := redis.ParseURL(connStr)
	s.Require().NoError(err)

	s.client = redis.NewClient(opts)
}

func (s *RedisPoolTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
	if s.container != nil {
		s.Require().NoError(testcontainers.TerminateContainer(s.container))
	}
}

func (s *RedisPoolTestSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RedisPoolTestSuite) newPool(booked []int, cfg Config) *RedisPool {
	pool, err := NewRedisPool(context.Background(), s.client, testShowtimeID, testSeats(5), booked, cfg)
	s.Require().NoError(err)

	return pool
}

func (s *RedisPoolTestSuite) status(pool *RedisPool, seatID int) domain.SeatStatus {
	status, err := pool.Status(context.Background(), seatID)
	s.Require().NoError(err)

	return status
}

func (s *RedisPoolTestSuite) TestRestoresBookedSeats() {
	pool := s.newPool([]int{2, 4}, Config{})

	s.Equal(domain.SeatAvailable, s.status(pool, 1))
	s.Equal(domain.SeatBooked, s.status(pool, 2))
	s.Equal(domain.SeatBooked, s.status(pool, 4))

	_, ok, err := pool.TryLock(context.Background(), 2)
	s.Require().NoError(err)
	s.False(ok, "booked seat must not be lockable")
}

func (s *RedisPoolTestSuite) TestStaleBookedListDoesNotUndoCancel() {
	ctx := context.Background()
	first := s.newPool([]int{2}, Config{})

	// another instance read the booked list before the cancel below
	stale := []int{2}

	s.Require().NoError(first.Cancel(ctx, 2))

	second := s.newPool(stale, Config{})

	s.Equal(domain.SeatAvailable, s.status(second, 2))
	s.Equal(domain.SeatAvailable, s.status(first, 2))
}

func (s *RedisPoolTestSuite) TestSeedsOnceEvenWithoutBookings() {
	first := s.newPool(nil, Config{})
	second := s.newPool([]int{3}, Config{})

	s.Equal(domain.SeatAvailable, s.status(first, 3))
	s.Equal(domain.SeatAvailable, s.status(second, 3))

	seeded, err := s.client.Exists(context.Background(), seatSeededKey(testShowtimeID)).Result()
	s.Require().NoError(err)
	s.Equal(int64(1), seeded)
}

func (s *RedisPoolTestSuite) TestRejectsUnknownBookedSeat() {
	_, err := NewRedisPool(context.Background(), s.client, testShowtimeID, testSeats(2), []int{9}, Config{})
	s.ErrorIs(err, domain.ErrSeatNotFound)
}

func (s *RedisPoolTestSuite) TestLockConfirmCancel() {
	ctx := context.Background()
	pool := s.newPool(nil, Config{LeaseTTL: time.Minute})

	lease, ok, err := pool.TryLock(ctx, 1)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(domain.SeatLocked, s.status(pool, 1))

	_, ok, err = pool.TryLock(ctx, 1)
	s.Require().NoError(err)
	s.False(ok, "locked seat must not be lockable twice")

	s.Require().NoError(pool.Confirm(ctx, lease))
	s.Equal(domain.SeatBooked, s.status(pool, 1))

	err = pool.Confirm(ctx, lease)
	s.ErrorIs(err, domain.ErrInvalidSeatTransition)

	s.Require().NoError(pool.Cancel(ctx, 1))
	s.Equal(domain.SeatAvailable, s.status(pool, 1))

	err = pool.Cancel(ctx, 1)
	s.ErrorIs(err, domain.ErrInvalidSeatTransition)
}

func (s *RedisPoolTestSuite) TestReleaseOnlyWithOwnLease() {
	ctx := context.Background()
	pool := s.newPool(nil, Config{LeaseTTL: time.Minute})

	lease, ok, err := pool.TryLock(ctx, 3)
	s.Require().NoError(err)
	s.Require().True(ok)

	stale := lease
	stale.Token = "someone-else"

	s.Require().NoError(pool.Release(ctx, stale))
	s.Equal(domain.SeatLocked, s.status(pool, 3))

	s.Require().NoError(pool.Release(ctx, lease))
	s.Equal(domain.SeatAvailable, s.status(pool, 3))

	// releasing twice is harmless
	s.Require().NoError(pool.Release(ctx, lease))
}

func (s *RedisPoolTestSuite) TestLeaseExpiry() {
	ctx := context.Background()
	pool := s.newPool(nil, Config{LeaseTTL: 100 * time.Millisecond})

	lease, ok, err := pool.TryLock(ctx, 1)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Eventually(func() bool {
		return s.status(pool, 1) == domain.SeatAvailable
	}, 2*time.Second, 20*time.Millisecond)

	err = pool.Confirm(ctx, lease)
	s.ErrorIs(err, domain.ErrLeaseExpired)

	reclaimed, err := pool.Sweep(ctx)
	s.Require().NoError(err)
	s.Equal(1, reclaimed)

	_, ok, err = pool.TryLock(ctx, 1)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *RedisPoolTestSuite) TestSnapshot() {
	ctx := context.Background()
	pool := s.newPool([]int{5}, Config{LeaseTTL: time.Minute})

	_, ok, err := pool.TryLock(ctx, 2)
	s.Require().NoError(err)
	s.Require().True(ok)

	states, err := pool.Snapshot(ctx)
	s.Require().NoError(err)
	s.Require().Len(states, 5)

	want := []domain.SeatStatus{domain.SeatAvailable, domain.SeatLocked, domain.SeatAvailable, domain.SeatAvailable, domain.SeatBooked}
	for i, state := range states {
		s.Equal(i+1, state.ID)
		s.Equal(want[i], state.Status, "seat %d", state.ID)
	}
}

func (s *RedisPoolTestSuite) TestPoolsShareState() {
	ctx := context.Background()
	first := s.newPool(nil, Config{LeaseTTL: time.Minute})
	second := s.newPool(nil, Config{LeaseTTL: time.Minute})

	const attempts = 32

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)

	for i := range attempts {
		pool := first
		if i%2 == 1 {
			pool = second
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			_, ok, err := pool.TryLock(ctx, 4)
			s.NoError(err)
			if ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), won.Load())
	s.Equal(domain.SeatLocked, s.status(second, 4))
}
