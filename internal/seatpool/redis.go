package seatpool

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// KEYS = [seat lock key, lock index set, booked set]
// ARGV = [seatID, token, ttl in milliseconds]
var lockSeatScript = redis.NewScript(`
	if redis.call("SISMEMBER", KEYS[3], ARGV[1]) == 1 then
		return 0
	end

	if not redis.call("SET", KEYS[1], ARGV[2], "NX", "PX", ARGV[3]) then
		return 0
	end

	redis.call("SADD", KEYS[2], ARGV[1])
	return 1
`)

// KEYS = [seat lock key, lock index set]
// ARGV = [seatID, token]
var releaseSeatScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[2] then
		redis.call("DEL", KEYS[1])
		redis.call("SREM", KEYS[2], ARGV[1])
		return 1
	end

	return 0
`)

// KEYS = [seat lock key, lock index set, booked set]
// ARGV = [seatID, token]
var confirmSeatScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[2] then
		redis.call("DEL", KEYS[1])
		redis.call("SREM", KEYS[2], ARGV[1])
		redis.call("SADD", KEYS[3], ARGV[1])
		return 1
	end

	if redis.call("SISMEMBER", KEYS[3], ARGV[1]) == 1 then
		return -1
	end

	return 0
`)

// Seeds the booked set once per showtime. Later loads find the marker and
// leave the set alone, so a stale booked list read from the database cannot
// undo a cancellation another instance already applied.
// KEYS = [booked set, seeded marker]
// ARGV = booked seat IDs
var seedBookedScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[2]) == 1 then
		return 0
	end

	if #ARGV > 0 then
		redis.call("SADD", KEYS[1], unpack(ARGV))
	end

	redis.call("SET", KEYS[2], 1)
	return 1
`)

// Removes index entries whose lock key has expired and returns
// {expired count, currently locked seat IDs}.
var filterValidLockSeats = redis.NewScript(`
	local setKey = KEYS[1]
	local showtimeId = ARGV[1]
	local cursor = "0"
	local batchSize = 100
	local expiredSeats = {}
	local validSeats = {}

	repeat
		local result = redis.call("SSCAN", setKey, cursor, "COUNT", batchSize)
		cursor = result[1]
		local seatIds = result[2]

		for _, seatId in ipairs(seatIds) do
			local lockKey = "seat_lock:" .. showtimeId .. ":" .. seatId
			if redis.call("EXISTS", lockKey) == 0 then
				table.insert(expiredSeats, seatId)
			else
				table.insert(validSeats, seatId)
			end
		end
	until cursor == "0"

	if #expiredSeats > 0 then
		redis.call("SREM", setKey, unpack(expiredSeats))
	end

	return {#expiredSeats, validSeats}
`)

// RedisPool is a SeatPool whose seat state lives in Redis, so several API
// instances can sell the same showtime. Lease expiry is the lock key's TTL.
// Seat descriptors are immutable and kept in memory.
type RedisPool struct {
	showtimeID int
	client     redis.UniversalClient
	seats      map[int]domain.Seat
	order      []domain.Seat
	leaseTTL   time.Duration
	now        func() time.Time
	newToken   func() string
}

var _ domain.SeatPool = (*RedisPool)(nil)

func NewRedisPool(
	ctx context.Context,
	client redis.UniversalClient,
	showtimeID int,
	seats []domain.Seat,
	booked []int,
	cfg Config) (*RedisPool, error) {

	cfg = cfg.withDefaults()

	p := &RedisPool{
		showtimeID: showtimeID,
		client:     client,
		seats:      make(map[int]domain.Seat, len(seats)),
		order:      slices.Clone(seats),
		leaseTTL:   cfg.LeaseTTL,
		now:        cfg.Now,
		newToken:   cfg.NewToken,
	}

	for _, seat := range seats {
		if _, exists := p.seats[seat.ID]; exists {
			return nil, fmt.Errorf("showtime %d: duplicate seat id %d in catalog", showtimeID, seat.ID)
		}
		p.seats[seat.ID] = seat
	}

	slices.SortFunc(p.order, func(a, b domain.Seat) int {
		if c := cmp.Compare(a.Row, b.Row); c != 0 {
			return c
		}
		return cmp.Compare(a.Col, b.Col)
	})

	members := make([]interface{}, len(booked))
	for i, seatID := range booked {
		if _, ok := p.seats[seatID]; !ok {
			return nil, fmt.Errorf("showtime %d: booked %w", showtimeID, domain.NewSeatError(seatID, domain.ErrSeatNotFound))
		}
		members[i] = seatID
	}

	keys := []string{seatBookedKey(showtimeID), seatSeededKey(showtimeID)}

	err := seedBookedScript.Run(ctx, client, keys, members...).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to restore booked seats: %w", err)
	}

	return p, nil
}

func seatLockKey(showtimeID, seatID int) string {
	return fmt.Sprintf("seat_lock:%d:%d", showtimeID, seatID)
}

func seatSetKey(showtimeID int) string {
	return fmt.Sprintf("seat_locks:%d", showtimeID)
}

func seatBookedKey(showtimeID int) string {
	return fmt.Sprintf("seats_booked:%d", showtimeID)
}

func seatSeededKey(showtimeID int) string {
	return fmt.Sprintf("seats_seeded:%d", showtimeID)
}

func (p *RedisPool) ShowtimeID() int {
	return p.showtimeID
}

func (p *RedisPool) ensureSeat(seatID int) error {
	if _, ok := p.seats[seatID]; !ok {
		return domain.NewSeatError(seatID, domain.ErrSeatNotFound)
	}

	return nil
}

func (p *RedisPool) Seats(_ context.Context, seatIDs []int) ([]domain.Seat, error) {
	seats := make([]domain.Seat, len(seatIDs))

	for i, seatID := range seatIDs {
		seat, ok := p.seats[seatID]
		if !ok {
			return nil, domain.NewSeatError(seatID, domain.ErrSeatNotFound)
		}
		seats[i] = seat
	}

	return seats, nil
}

func (p *RedisPool) TryLock(ctx context.Context, seatID int) (domain.Lease, bool, error) {
	if err := p.ensureSeat(seatID); err != nil {
		return domain.Lease{}, false, err
	}

	lease := domain.Lease{
		SeatID:    seatID,
		Token:     p.newToken(),
		ExpiresAt: p.now().Add(p.leaseTTL),
	}

	keys := []string{seatLockKey(p.showtimeID, seatID), seatSetKey(p.showtimeID), seatBookedKey(p.showtimeID)}

	locked, err := lockSeatScript.Run(ctx, p.client, keys, seatID, lease.Token, p.leaseTTL.Milliseconds()).Int()
	if err != nil {
		return domain.Lease{}, false, fmt.Errorf("failed to lock seat %d: %w", seatID, err)
	}

	if locked != 1 {
		return domain.Lease{}, false, nil
	}

	return lease, true, nil
}

func (p *RedisPool) Release(ctx context.Context, lease domain.Lease) error {
	if err := p.ensureSeat(lease.SeatID); err != nil {
		return err
	}

	keys := []string{seatLockKey(p.showtimeID, lease.SeatID), seatSetKey(p.showtimeID)}

	err := releaseSeatScript.Run(ctx, p.client, keys, lease.SeatID, lease.Token).Err()
	if err != nil {
		return fmt.Errorf("failed to release seat %d: %w", lease.SeatID, err)
	}

	return nil
}

func (p *RedisPool) Confirm(ctx context.Context, lease domain.Lease) error {
	if err := p.ensureSeat(lease.SeatID); err != nil {
		return err
	}

	// Redis and this process may disagree slightly on time; the lease deadline
	// we handed out is authoritative.
	if lease.Expired(p.now()) {
		if err := p.Release(ctx, lease); err != nil {
			return err
		}
		return domain.NewSeatError(lease.SeatID, domain.ErrLeaseExpired)
	}

	keys := []string{seatLockKey(p.showtimeID, lease.SeatID), seatSetKey(p.showtimeID), seatBookedKey(p.showtimeID)}

	res, err := confirmSeatScript.Run(ctx, p.client, keys, lease.SeatID, lease.Token).Int()
	if err != nil {
		return fmt.Errorf("failed to confirm seat %d: %w", lease.SeatID, err)
	}

	switch res {
	case 1:
		return nil
	case -1:
		return &domain.SeatError{
			SeatID: lease.SeatID,
			Kind:   domain.ErrInvalidSeatTransition,
			Cause:  fmt.Errorf("confirm on %s seat", domain.SeatBooked),
		}
	default:
		return domain.NewSeatError(lease.SeatID, domain.ErrLeaseExpired)
	}
}

func (p *RedisPool) Cancel(ctx context.Context, seatID int) error {
	if err := p.ensureSeat(seatID); err != nil {
		return err
	}

	removed, err := p.client.SRem(ctx, seatBookedKey(p.showtimeID), seatID).Result()
	if err != nil {
		return fmt.Errorf("failed to cancel seat %d: %w", seatID, err)
	}

	if removed == 0 {
		return &domain.SeatError{
			SeatID: seatID,
			Kind:   domain.ErrInvalidSeatTransition,
			Cause:  fmt.Errorf("cancel on seat that is not %s", domain.SeatBooked),
		}
	}

	return nil
}

func (p *RedisPool) Status(ctx context.Context, seatID int) (domain.SeatStatus, error) {
	if err := p.ensureSeat(seatID); err != nil {
		return 0, err
	}

	pipe := p.client.Pipeline()
	bookedCmd := pipe.SIsMember(ctx, seatBookedKey(p.showtimeID), seatID)
	lockedCmd := pipe.Exists(ctx, seatLockKey(p.showtimeID, seatID))

	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read status of seat %d: %w", seatID, err)
	}

	switch {
	case bookedCmd.Val():
		return domain.SeatBooked, nil
	case lockedCmd.Val() == 1:
		return domain.SeatLocked, nil
	default:
		return domain.SeatAvailable, nil
	}
}

func (p *RedisPool) Snapshot(ctx context.Context) ([]domain.SeatState, error) {
	_, lockedSeatIDs, err := p.filterLocks(ctx)
	if err != nil {
		return nil, err
	}

	bookedSeatIDs, err := p.client.SMembers(ctx, seatBookedKey(p.showtimeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read booked seats: %w", err)
	}

	statuses := make(map[int]domain.SeatStatus, len(lockedSeatIDs)+len(bookedSeatIDs))

	for _, seatID := range lockedSeatIDs {
		statuses[seatID] = domain.SeatLocked
	}

	for _, member := range bookedSeatIDs {
		seatID, err := strconv.Atoi(member)
		if err != nil {
			return nil, fmt.Errorf("malformed booked seat id %q: %w", member, err)
		}
		statuses[seatID] = domain.SeatBooked
	}

	states := make([]domain.SeatState, len(p.order))
	for i, seat := range p.order {
		states[i] = domain.SeatState{Seat: seat, Status: statuses[seat.ID]}
	}

	return states, nil
}

// Sweep drops index entries of expired locks. The locks themselves are already
// gone once their TTL passes.
func (p *RedisPool) Sweep(ctx context.Context) (int, error) {
	expired, _, err := p.filterLocks(ctx)
	return expired, err
}

func (p *RedisPool) filterLocks(ctx context.Context) (int, []int, error) {
	res, err := filterValidLockSeats.Run(ctx, p.client, []string{seatSetKey(p.showtimeID)}, p.showtimeID).Slice()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to run filterValidLockSeats script: %w", err)
	}

	if len(res) != 2 {
		return 0, nil, fmt.Errorf("unexpected filterValidLockSeats reply of length %d", len(res))
	}

	expired, ok := res[0].(int64)
	if !ok {
		return 0, nil, fmt.Errorf("unexpected expired count type %T", res[0])
	}

	members, _ := res[1].([]interface{})
	locked := make([]int, 0, len(members))

	for _, m := range members {
		s, ok := m.(string)
		if !ok {
			return 0, nil, fmt.Errorf("unexpected seat id type %T", m)
		}

		seatID, err := strconv.Atoi(s)
		if err != nil {
			return 0, nil, fmt.Errorf("malformed locked seat id %q: %w", s, err)
		}

		locked = append(locked, seatID)
	}

	return int(expired), locked, nil
}
