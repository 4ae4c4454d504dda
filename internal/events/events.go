package events

import (
	"context"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	BookingConfirmedQueue = "booking.confirmed"
	BookingCancelledQueue = "booking.cancelled"
)

type BookingConfirmed struct {
	EventType  string          `json:"eventType"`
	BookingID  int64           `json:"bookingId"`
	UserID     string          `json:"userId"`
	ShowtimeID int             `json:"showtimeId"`
	SeatIDs    []int           `json:"seatIds"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Timestamp  time.Time       `json:"timestamp"`
}

type BookingCancelled struct {
	EventType  string    `json:"eventType"`
	BookingID  int64     `json:"bookingId"`
	UserID     string    `json:"userId"`
	ShowtimeID int       `json:"showtimeId"`
	SeatIDs    []int     `json:"seatIds"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher announces booking lifecycle changes to downstream consumers.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, booking domain.Booking) error
	PublishBookingCancelled(ctx context.Context, booking domain.Booking) error
}
