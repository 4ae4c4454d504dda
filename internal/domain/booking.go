package domain

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusFailed    BookingStatus = "failed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID         int64
	UserID     string
	ShowtimeID int
	SeatIDs    []int
	TotalPrice decimal.Decimal
	Status     BookingStatus
	CreatedAt  time.Time
}

// Clone returns a copy that shares no memory with b.
func (b Booking) Clone() Booking {
	b.SeatIDs = slices.Clone(b.SeatIDs)
	return b
}

type BookingRepository interface {
	Create(ctx context.Context, booking Booking, payment Payment) error
	GetByID(ctx context.Context, id int64) (*Booking, error)
	GetPayment(ctx context.Context, bookingID int64) (*Payment, error)
	ListByUser(ctx context.Context, userID string, pagination Pagination) ([]Booking, *Metadata, error)
	Cancel(ctx context.Context, id int64) error
	GetBookedSeatIDs(ctx context.Context, showtimeID int) ([]int, error)
	NextID(ctx context.Context) (int64, error)
}
