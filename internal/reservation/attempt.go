package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// attempt tracks the leases one Reserve call holds. leases[:confirmed] are
// Booked, the rest are Locked.
type attempt struct {
	pool      domain.SeatPool
	leases    []domain.Lease
	confirmed int
	committed bool
}

// pay charges amount with a deadline no later than the first lease expiry, so
// a hanging gateway gives up before the seats it is paying for are reclaimed.
func (a *attempt) pay(ctx context.Context, provider domain.PaymentProvider, amount decimal.Decimal) error {
	deadline := a.leases[0].ExpiresAt
	for _, lease := range a.leases[1:] {
		if lease.ExpiresAt.Before(deadline) {
			deadline = lease.ExpiresAt
		}
	}

	payCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	return provider.Pay(payCtx, amount)
}

func (a *attempt) confirm(ctx context.Context) error {
	for _, lease := range a.leases {
		err := a.pool.Confirm(ctx, lease)
		if err != nil {
			if errors.Is(err, domain.ErrLeaseExpired) {
				return &domain.SeatError{
					SeatID: lease.SeatID,
					Kind:   domain.ErrSeatUnavailable,
					Cause:  domain.ErrLeaseExpired,
				}
			}

			return fmt.Errorf("failed to confirm seat %d: %w", lease.SeatID, err)
		}

		a.confirmed++
	}

	a.committed = true

	return nil
}

// rollback undoes everything the attempt did unless it committed. It is run
// deferred, so it also executes when a payment provider panics, and it ignores
// cancellation of ctx so that releases are never skipped.
func (a *attempt) rollback(ctx context.Context) error {
	if a.committed {
		return nil
	}

	ctx = context.WithoutCancel(ctx)

	var errs []error

	for _, lease := range a.leases[:a.confirmed] {
		if err := a.pool.Cancel(ctx, lease.SeatID); err != nil {
			errs = append(errs, err)
		}
	}

	for _, lease := range a.leases[a.confirmed:] {
		if err := a.pool.Release(ctx, lease); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
