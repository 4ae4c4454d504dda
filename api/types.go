// Package api holds the request and response bodies of the HTTP API.
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	RequestId        string            `json:"requestId"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type SeatType string

const (
	Standard SeatType = "Standard"
	VIP      SeatType = "VIP"
	Recliner SeatType = "Recliner"
)

type SeatStatus string

const (
	Available SeatStatus = "available"
	Locked    SeatStatus = "locked"
	Booked    SeatStatus = "booked"
)

type Seat struct {
	Id     int             `json:"id"`
	Label  string          `json:"label"`
	Row    int             `json:"row"`
	Column int             `json:"column"`
	Type   SeatType        `json:"type"`
	Price  decimal.Decimal `json:"price"`
	Status SeatStatus      `json:"status"`
}

type SeatRow struct {
	Row   int    `json:"row"`
	Seats []Seat `json:"seats"`
}

type SeatMapResponse struct {
	ShowtimeId  int       `json:"showtimeId"`
	TheaterId   int       `json:"theaterId"`
	TheaterName string    `json:"theaterName"`
	HallId      int       `json:"hallId"`
	HallName    string    `json:"hallName"`
	MovieTitle  string    `json:"movieTitle"`
	Date        time.Time `json:"date"`
	SeatRows    []SeatRow `json:"seatRows"`
}

type PaymentMethod string

const (
	Card   PaymentMethod = "card"
	Wallet PaymentMethod = "wallet"
)

type CreateBookingRequest struct {
	SeatIds         []int                `json:"seatIds" validate:"max=10,dive,gt=0"`
	PaymentMethod   PaymentMethod        `json:"paymentMethod" validate:"required,oneof=card wallet"`
	PaymentMethodId *string              `json:"paymentMethodId,omitempty" validate:"omitempty,min=1"`
	Email           *openapi_types.Email `json:"email,omitempty" validate:"omitempty,email"`
}

type BookingStatus string

type BookingResponse struct {
	Id         int64           `json:"id"`
	ShowtimeId int             `json:"showtimeId"`
	SeatIds    []int           `json:"seatIds"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     BookingStatus   `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type PaymentResponse struct {
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

type BookingDetailsResponse struct {
	BookingResponse
	Payment *PaymentResponse `json:"payment,omitempty"`
}

type Metadata struct {
	CurrentPage  int `json:"currentPage"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
}

type UserBookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Metadata Metadata          `json:"metadata"`
}

type GetUserBookingsParams struct {
	Page     *int `validate:"omitempty,min=1,max=10000"`
	PageSize *int `validate:"omitempty,min=1,max=50"`
}

type WalletDepositRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0,lte=10000"`
}

type WalletResponse struct {
	Balance decimal.Decimal `json:"balance"`
}
