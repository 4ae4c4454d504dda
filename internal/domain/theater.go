package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ShowtimeSeats is the seat layout of one showtime as supplied by the catalog.
// Seat prices already include the showtime's base price.
type ShowtimeSeats struct {
	ShowtimeID  int
	TheaterID   int
	TheaterName string
	HallID      int
	HallName    string
	MovieName   string
	Date        time.Time
	BasePrice   decimal.Decimal
	Seats       []Seat
}

type Catalog interface {
	GetSeatsByShowtime(ctx context.Context, showtimeID int) (*ShowtimeSeats, error)
}
