package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound        = errors.New("record not found")
	ErrEmptyRequest          = errors.New("at least one seat must be selected")
	ErrDuplicateSeat         = errors.New("seat is selected more than once")
	ErrSeatNotFound          = errors.New("seat does not exist for the showtime")
	ErrSeatUnavailable       = errors.New("seat is not available")
	ErrLeaseExpired          = errors.New("seat hold has expired")
	ErrInvalidSeatTransition = errors.New("invalid seat status transition")
	ErrPaymentDeclined       = errors.New("payment was declined")
	ErrPaymentGateway        = errors.New("payment gateway error")
	ErrBookingNotCancellable = errors.New("booking cannot be cancelled")
	ErrDuplicateBooking      = errors.New("booking id is already taken")
)

// SeatError reports a failure tied to one seat. Kind is one of the seat
// sentinels above; Cause optionally carries a more specific reason, so that
// errors.Is matches both.
type SeatError struct {
	SeatID int
	Kind   error
	Cause  error
}

func NewSeatError(seatID int, kind error) *SeatError {
	return &SeatError{SeatID: seatID, Kind: kind}
}

func (e *SeatError) Error() string {
	if e.Cause != nil && e.Cause != e.Kind {
		return fmt.Sprintf("seat %d: %v: %v", e.SeatID, e.Kind, e.Cause)
	}

	return fmt.Sprintf("seat %d: %v", e.SeatID, e.Kind)
}

func (e *SeatError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Cause}
}
