package domain

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type SeatType string

const (
	SeatTypeStandard SeatType = "Standard"
	SeatTypeVIP      SeatType = "VIP"
	SeatTypeRecliner SeatType = "Recliner"
)

type SeatStatus int

const (
	SeatAvailable SeatStatus = iota
	SeatLocked
	SeatBooked
)

func (s SeatStatus) String() string {
	switch s {
	case SeatAvailable:
		return "available"
	case SeatLocked:
		return "locked"
	case SeatBooked:
		return "booked"
	default:
		return "unknown"
	}
}

// Seat is the immutable description of a bookable seat. Its mutable status
// lives only inside a SeatPool.
type Seat struct {
	ID    int
	Row   int
	Col   int
	Type  SeatType
	Price decimal.Decimal
}

// Label renders the seat the way it is printed on a ticket, e.g. "A1" for the
// first column of the first row. Rows are 1-based.
func (s Seat) Label() string {
	if s.Row < 1 || s.Row > 26 {
		return strconv.Itoa(s.Row) + "-" + strconv.Itoa(s.Col)
	}

	return string(rune('A'+s.Row-1)) + strconv.Itoa(s.Col)
}

type SeatState struct {
	Seat
	Status SeatStatus
}

// Lease is the transient claim a reservation attempt holds on a locked seat.
// Only the holder of Token may confirm or release the seat, and only until
// ExpiresAt.
type Lease struct {
	SeatID    int
	Token     string
	ExpiresAt time.Time
}

func (l Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// SeatPool owns the mutable state of every seat of one showtime.
type SeatPool interface {
	ShowtimeID() int
	Seats(ctx context.Context, seatIDs []int) ([]Seat, error)
	TryLock(ctx context.Context, seatID int) (Lease, bool, error)
	Release(ctx context.Context, lease Lease) error
	Confirm(ctx context.Context, lease Lease) error
	Cancel(ctx context.Context, seatID int) error
	Status(ctx context.Context, seatID int) (SeatStatus, error)
	Snapshot(ctx context.Context) ([]SeatState, error)
	Sweep(ctx context.Context) (int, error)
}
