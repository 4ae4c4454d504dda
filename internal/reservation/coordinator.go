package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// Pools resolves the seat pool of a showtime.
type Pools interface {
	Get(ctx context.Context, showtimeID int) (domain.SeatPool, error)
}

type ReserveRequest struct {
	UserID     string
	ShowtimeID int
	SeatIDs    []int
}

// Coordinator turns locking, payment and commit of several seats into one
// all-or-nothing operation. It keeps no seat state between calls.
type Coordinator struct {
	pools   Pools
	ids     IDs
	logger  *slog.Logger
	metrics *metrics
	now     func() time.Time
}

func NewCoordinator(pools Pools, ids IDs, logger *slog.Logger) (*Coordinator, error) {
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	if ids == nil {
		ids = NewIDSequence(0)
	}

	return &Coordinator{
		pools:   pools,
		ids:     ids,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}, nil
}

// Reserve locks the requested seats in ascending id order, charges their total
// price through provider and books them. On any failure every seat this call
// locked is back to Available before Reserve returns.
func (c *Coordinator) Reserve(
	ctx context.Context,
	req ReserveRequest,
	provider domain.PaymentProvider) (domain.Booking, error) {

	start := time.Now()

	booking, err := c.reserve(ctx, req, provider)
	c.metrics.recordAttempt(ctx, req.ShowtimeID, start, err)

	return booking, err
}

func (c *Coordinator) reserve(
	ctx context.Context,
	req ReserveRequest,
	provider domain.PaymentProvider) (domain.Booking, error) {

	logger := c.logger.With("user_id", req.UserID, "showtime_id", req.ShowtimeID)

	seatIDs, err := canonicalSeatIDs(req.SeatIDs)
	if err != nil {
		return domain.Booking{}, err
	}

	pool, err := c.pools.Get(ctx, req.ShowtimeID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("failed to get seat pool of showtime %d: %w", req.ShowtimeID, err)
	}

	// Unknown seats are rejected before anything is locked.
	seats, err := pool.Seats(ctx, seatIDs)
	if err != nil {
		return domain.Booking{}, err
	}

	att := &attempt{pool: pool, leases: make([]domain.Lease, 0, len(seatIDs))}
	defer func() {
		if err := att.rollback(ctx); err != nil {
			logger.Error("failed to roll back seat locks", "seat_ids", seatIDs, "error", err)
		}
	}()

	for _, seatID := range seatIDs {
		lease, ok, err := pool.TryLock(ctx, seatID)
		if err != nil {
			return domain.Booking{}, fmt.Errorf("failed to lock seat %d: %w", seatID, err)
		}

		if !ok {
			logger.Warn("reservation lost seat contention", "seat_id", seatID)
			return domain.Booking{}, domain.NewSeatError(seatID, domain.ErrSeatUnavailable)
		}

		att.leases = append(att.leases, lease)
	}

	total := totalPrice(seats)

	err = att.pay(ctx, provider, total)
	if err != nil {
		logger.Warn("reservation payment failed", "amount", total.String(), "error", err)

		if !errors.Is(err, domain.ErrPaymentDeclined) {
			err = fmt.Errorf("%w: %w", domain.ErrPaymentDeclined, err)
		}

		return domain.Booking{}, err
	}

	id, err := c.ids.NextID(ctx)
	if err != nil {
		logger.Error("payment captured but no booking id could be assigned, refund required",
			"amount", total.String(), "seat_ids", seatIDs, "error", err)
		return domain.Booking{}, fmt.Errorf("failed to assign booking id: %w", err)
	}

	err = att.confirm(ctx)
	if err != nil {
		logger.Error("payment captured but seats could not be booked, refund required",
			"amount", total.String(), "seat_ids", seatIDs, "error", err)
		return domain.Booking{}, err
	}

	booking := domain.Booking{
		ID:         id,
		UserID:     req.UserID,
		ShowtimeID: req.ShowtimeID,
		SeatIDs:    seatIDs,
		TotalPrice: total,
		Status:     domain.BookingStatusConfirmed,
		CreatedAt:  c.now(),
	}

	logger.Info("booking confirmed", "booking_id", booking.ID, "seat_ids", seatIDs, "total", total.String())

	return booking, nil
}

// Cancel returns every seat of a confirmed booking to Available.
func (c *Coordinator) Cancel(ctx context.Context, booking domain.Booking) error {
	if booking.Status != domain.BookingStatusConfirmed {
		return fmt.Errorf("booking %d is %s: %w", booking.ID, booking.Status, domain.ErrBookingNotCancellable)
	}

	pool, err := c.pools.Get(ctx, booking.ShowtimeID)
	if err != nil {
		return fmt.Errorf("failed to get seat pool of showtime %d: %w", booking.ShowtimeID, err)
	}

	var errs []error
	for _, seatID := range booking.SeatIDs {
		if err := pool.Cancel(ctx, seatID); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to cancel booking %d: %w", booking.ID, err)
	}

	c.metrics.cancellations.Add(ctx, 1)
	c.logger.Info("booking cancelled", "booking_id", booking.ID, "user_id", booking.UserID)

	return nil
}

// canonicalSeatIDs validates the request and returns a sorted copy. Every
// attempt locking in the same global order is what rules out circular waits.
func canonicalSeatIDs(seatIDs []int) ([]int, error) {
	if len(seatIDs) == 0 {
		return nil, domain.ErrEmptyRequest
	}

	sorted := slices.Clone(seatIDs)
	slices.Sort(sorted)

	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, domain.NewSeatError(sorted[i], domain.ErrDuplicateSeat)
		}
	}

	return sorted, nil
}

func totalPrice(seats []domain.Seat) decimal.Decimal {
	total := decimal.Zero

	for _, seat := range seats {
		total = total.Add(seat.Price)
	}

	return total
}
