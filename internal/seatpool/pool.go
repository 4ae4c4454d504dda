package seatpool

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

// Pool is the in-process SeatPool. Every seat has its own mutex; there is no
// pool-wide lock. The slots map is populated once in New and never modified
// afterwards, so lookups are safe without synchronisation.
type Pool struct {
	showtimeID int
	slots      map[int]*slot
	order      []*slot
	leaseTTL   time.Duration
	now        func() time.Time
	newToken   func() string
}

var _ domain.SeatPool = (*Pool)(nil)

// New builds the pool of a showtime from its catalog seats. Seats listed in
// booked start out Booked, which restores confirmed bookings after a restart.
func New(showtimeID int, seats []domain.Seat, booked []int, cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()

	p := &Pool{
		showtimeID: showtimeID,
		slots:      make(map[int]*slot, len(seats)),
		order:      make([]*slot, 0, len(seats)),
		leaseTTL:   cfg.LeaseTTL,
		now:        cfg.Now,
		newToken:   cfg.NewToken,
	}

	for _, seat := range seats {
		if _, exists := p.slots[seat.ID]; exists {
			return nil, fmt.Errorf("showtime %d: duplicate seat id %d in catalog", showtimeID, seat.ID)
		}

		s := &slot{seat: seat, status: domain.SeatAvailable}
		p.slots[seat.ID] = s
		p.order = append(p.order, s)
	}

	for _, seatID := range booked {
		s, ok := p.slots[seatID]
		if !ok {
			return nil, fmt.Errorf("showtime %d: booked %w", showtimeID, domain.NewSeatError(seatID, domain.ErrSeatNotFound))
		}

		s.status = domain.SeatBooked
	}

	slices.SortFunc(p.order, func(a, b *slot) int {
		if c := cmp.Compare(a.seat.Row, b.seat.Row); c != 0 {
			return c
		}
		return cmp.Compare(a.seat.Col, b.seat.Col)
	})

	return p, nil
}

func (p *Pool) ShowtimeID() int {
	return p.showtimeID
}

func (p *Pool) lookup(seatID int) (*slot, error) {
	s, ok := p.slots[seatID]
	if !ok {
		return nil, domain.NewSeatError(seatID, domain.ErrSeatNotFound)
	}

	return s, nil
}

func (p *Pool) Seats(_ context.Context, seatIDs []int) ([]domain.Seat, error) {
	seats := make([]domain.Seat, len(seatIDs))

	for i, seatID := range seatIDs {
		s, err := p.lookup(seatID)
		if err != nil {
			return nil, err
		}

		seats[i] = s.seat
	}

	return seats, nil
}

// TryLock never blocks waiting for another holder: it either takes the seat
// immediately or reports false.
func (p *Pool) TryLock(_ context.Context, seatID int) (domain.Lease, bool, error) {
	s, err := p.lookup(seatID)
	if err != nil {
		return domain.Lease{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := p.now()
	s.reclaim(now)

	if s.status != domain.SeatAvailable {
		return domain.Lease{}, false, nil
	}

	s.status = domain.SeatLocked
	s.lease = domain.Lease{
		SeatID:    seatID,
		Token:     p.newToken(),
		ExpiresAt: now.Add(p.leaseTTL),
	}

	return s.lease, true, nil
}

// Release is a no-op unless the seat is still locked under lease, so it can be
// called unconditionally during rollback.
func (p *Pool) Release(_ context.Context, lease domain.Lease) error {
	s, err := p.lookup(lease.SeatID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.heldBy(lease) {
		s.status = domain.SeatAvailable
		s.lease = domain.Lease{}
	}

	return nil
}

func (p *Pool) Confirm(_ context.Context, lease domain.Lease) error {
	s, err := p.lookup(lease.SeatID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := p.now()

	if s.heldBy(lease) {
		if s.reclaim(now) {
			return domain.NewSeatError(lease.SeatID, domain.ErrLeaseExpired)
		}

		s.status = domain.SeatBooked
		s.lease = domain.Lease{}

		return nil
	}

	// The seat was reclaimed, and possibly handed to someone else, after our
	// lease ran out.
	if lease.Expired(now) {
		return domain.NewSeatError(lease.SeatID, domain.ErrLeaseExpired)
	}

	return &domain.SeatError{
		SeatID: lease.SeatID,
		Kind:   domain.ErrInvalidSeatTransition,
		Cause:  fmt.Errorf("confirm on %s seat", s.status),
	}
}

func (p *Pool) Cancel(_ context.Context, seatID int) error {
	s, err := p.lookup(seatID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SeatBooked {
		return &domain.SeatError{
			SeatID: seatID,
			Kind:   domain.ErrInvalidSeatTransition,
			Cause:  fmt.Errorf("cancel on %s seat", s.status),
		}
	}

	s.status = domain.SeatAvailable

	return nil
}

func (p *Pool) Status(_ context.Context, seatID int) (domain.SeatStatus, error) {
	s, err := p.lookup(seatID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reclaim(p.now())

	return s.status, nil
}

// Snapshot returns every seat ordered by row and column. Each seat is read
// under its own lock, so the result is not a consistent cut across seats.
func (p *Pool) Snapshot(_ context.Context) ([]domain.SeatState, error) {
	states := make([]domain.SeatState, len(p.order))

	for i, s := range p.order {
		s.mu.Lock()
		s.reclaim(p.now())
		states[i] = domain.SeatState{Seat: s.seat, Status: s.status}
		s.mu.Unlock()
	}

	return states, nil
}

// Sweep reclaims every expired lease and reports how many seats it freed.
func (p *Pool) Sweep(_ context.Context) (int, error) {
	reclaimed := 0

	for _, s := range p.order {
		s.mu.Lock()
		if s.reclaim(p.now()) {
			reclaimed++
		}
		s.mu.Unlock()
	}

	return reclaimed, nil
}
