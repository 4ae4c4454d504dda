package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/metinatakli/seat-reservation-engine/api"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/metinatakli/seat-reservation-engine/internal/mailer"
	"github.com/metinatakli/seat-reservation-engine/internal/payment"
	"github.com/metinatakli/seat-reservation-engine/internal/reservation"
)

func (app *Application) CreateBooking(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showtimeID, err := readIDParam(r, "showtimeId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input api.CreateBookingRequest

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	userId := app.contextGetUserId(r)
	method := domain.PaymentMethod(input.PaymentMethod)

	var paymentMethodId string
	if input.PaymentMethodId != nil {
		paymentMethodId = *input.PaymentMethodId
	}

	provider, err := app.payments.Resolve(method, userId, paymentMethodId)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrPaymentMethodRequired), errors.Is(err, payment.ErrUnsupportedPaymentMethod):
			app.badRequestResponse(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	booking, err := app.coordinator.Reserve(r.Context(), reservation.ReserveRequest{
		UserID:     userId,
		ShowtimeID: int(showtimeID),
		SeatIDs:    input.SeatIds,
	}, provider)
	if err != nil {
		app.reservationErrorResponse(w, r, err)
		return
	}

	record := domain.Payment{
		BookingID: booking.ID,
		Method:    method,
		Amount:    booking.TotalPrice,
		Currency:  app.config.Currency,
		Status:    domain.PaymentStatusCompleted,
	}

	err = app.bookingRepo.Create(r.Context(), booking, record)
	if err != nil {
		logger.Error("booking could not be saved, refund required",
			"booking_id", booking.ID, "amount", booking.TotalPrice.String(), "method", method, "error", err)

		// the seats were sold in memory only, give them back
		cancelErr := app.coordinator.Cancel(context.WithoutCancel(r.Context()), booking)
		if cancelErr != nil {
			logger.Error("failed to release seats of unsaved booking", "booking_id", booking.ID, "error", cancelErr)
		}

		switch {
		case errors.Is(err, domain.ErrSeatUnavailable), errors.Is(err, domain.ErrDuplicateBooking):
			app.editConflictResponseWithErr(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	email := ""
	if input.Email != nil {
		email = string(*input.Email)
		app.sessionManager.Put(r.Context(), SessionKeyEmail.String(), email)
	}

	app.announce(r, booking, email, mailer.BookingConfirmedTemplate, app.publisher.PublishBookingConfirmed)

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/users/me/bookings/%d", booking.ID))

	err = app.writeJSON(w, http.StatusCreated, toBookingResponse(booking), headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// reservationErrorResponse maps a failed reservation attempt to a response.
func (app *Application) reservationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyRequest), errors.Is(err, domain.ErrDuplicateSeat):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, domain.ErrRecordNotFound):
		app.notFoundResponse(w, r)
	case errors.Is(err, domain.ErrSeatNotFound):
		app.errorResponse(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSeatUnavailable):
		app.editConflictResponseWithErr(w, r, err)
	case errors.Is(err, domain.ErrPaymentDeclined):
		app.paymentRequiredResponse(w, r, err)
	default:
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	var (
		params api.GetUserBookingsParams
		err    error
	)

	params.Page, err = readIntQuery(r, "page")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	params.PageSize, err = readIntQuery(r, "pageSize")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(params)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	userId := app.contextGetUserId(r)

	bookings, metadata, err := app.bookingRepo.ListByUser(r.Context(), userId, toPagination(params))
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.UserBookingsResponse{
		Bookings: make([]api.BookingResponse, len(bookings)),
		Metadata: toApiMetadata(metadata),
	}

	for i, booking := range bookings {
		resp.Bookings[i] = toBookingResponse(booking)
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetUserBookingByID(w http.ResponseWriter, r *http.Request) {
	booking, ok := app.loadUserBooking(w, r)
	if !ok {
		return
	}

	resp := api.BookingDetailsResponse{BookingResponse: toBookingResponse(*booking)}

	record, err := app.bookingRepo.GetPayment(r.Context(), booking.ID)
	switch {
	case err == nil:
		resp.Payment = &api.PaymentResponse{
			Method:    api.PaymentMethod(record.Method),
			Amount:    record.Amount,
			Currency:  record.Currency,
			Status:    string(record.Status),
			CreatedAt: record.CreatedAt,
		}
	case errors.Is(err, domain.ErrRecordNotFound):
	default:
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelUserBooking(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	booking, ok := app.loadUserBooking(w, r)
	if !ok {
		return
	}

	if booking.Status != domain.BookingStatusConfirmed {
		app.editConflictResponseWithErr(w, r, domain.ErrBookingNotCancellable)
		return
	}

	// the pool has to be built while the database still counts the seats as
	// booked, otherwise there is nothing to release afterwards
	_, err := app.registry.Get(r.Context(), booking.ShowtimeID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.bookingRepo.Cancel(r.Context(), booking.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			// cancelled concurrently
			app.editConflictResponseWithErr(w, r, domain.ErrBookingNotCancellable)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.coordinator.Cancel(context.WithoutCancel(r.Context()), *booking)
	if err != nil {
		// the database no longer holds the seats, a restart frees them
		logger.Error("failed to release seats of cancelled booking", "booking_id", booking.ID, "error", err)
	}

	booking.Status = domain.BookingStatusCancelled

	email := app.sessionManager.GetString(r.Context(), SessionKeyEmail.String())
	app.announce(r, *booking, email, mailer.BookingCancelledTemplate, app.publisher.PublishBookingCancelled)

	err = app.writeJSON(w, http.StatusOK, toBookingResponse(*booking), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// loadUserBooking reads the bookingId parameter and returns the booking if it
// belongs to the current user. Other users' bookings are reported as missing.
func (app *Application) loadUserBooking(w http.ResponseWriter, r *http.Request) (*domain.Booking, bool) {
	bookingID, err := readIDParam(r, "bookingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return nil, false
	}

	booking, err := app.bookingRepo.GetByID(r.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return nil, false
	}

	if booking.UserID != app.contextGetUserId(r) {
		app.notFoundResponse(w, r)
		return nil, false
	}

	return booking, true
}

type ticket struct {
	BookingID   int64
	MovieName   string
	TheaterName string
	HallName    string
	Date        string
	Seats       []string
	Total       string
}

// announce publishes the booking event and, when an address is known, mails
// the ticket. Both happen after the response is sent.
func (app *Application) announce(
	r *http.Request,
	booking domain.Booking,
	email string,
	templateFile string,
	publish func(context.Context, domain.Booking) error) {

	app.background(r, "booking announcement", func(ctx context.Context, logger *slog.Logger) {
		logger = logger.With("booking_id", booking.ID)

		err := publish(ctx, booking)
		if err != nil {
			logger.Error("failed to publish booking event", "error", err)
		}

		if email == "" {
			return
		}

		data, err := app.ticketFor(ctx, booking)
		if err != nil {
			logger.Error("failed to build booking email", "error", err)
			return
		}

		err = app.mailer.Send(email, templateFile, data)
		if err != nil {
			logger.Error("failed to send booking email", "template", templateFile, "error", err)
		} else {
			logger.Info("booking email sent successfully", "template", templateFile)
		}
	})
}

func (app *Application) ticketFor(ctx context.Context, booking domain.Booking) (ticket, error) {
	showtime, err := app.catalog.GetSeatsByShowtime(ctx, booking.ShowtimeID)
	if err != nil {
		return ticket{}, err
	}

	labels := make(map[int]string, len(showtime.Seats))
	for _, seat := range showtime.Seats {
		labels[seat.ID] = seat.Label()
	}

	data := ticket{
		BookingID:   booking.ID,
		MovieName:   showtime.MovieName,
		TheaterName: showtime.TheaterName,
		HallName:    showtime.HallName,
		Date:        showtime.Date.Format(time.RFC1123),
		Seats:       make([]string, len(booking.SeatIDs)),
		Total:       booking.TotalPrice.StringFixed(2),
	}

	for i, seatID := range booking.SeatIDs {
		data.Seats[i] = labels[seatID]
	}

	return data, nil
}

func toBookingResponse(booking domain.Booking) api.BookingResponse {
	return api.BookingResponse{
		Id:         booking.ID,
		ShowtimeId: booking.ShowtimeID,
		SeatIds:    booking.SeatIDs,
		TotalPrice: booking.TotalPrice,
		Status:     api.BookingStatus(booking.Status),
		CreatedAt:  booking.CreatedAt,
	}
}

func toPagination(params api.GetUserBookingsParams) domain.Pagination {
	pagination := domain.Pagination{
		Page:     domain.DefaultPage,
		PageSize: domain.DefaultPageSize,
	}

	if params.Page != nil {
		pagination.Page = *params.Page
	}
	if params.PageSize != nil {
		pagination.PageSize = *params.PageSize
	}

	return pagination
}

func toApiMetadata(metadata *domain.Metadata) api.Metadata {
	return api.Metadata{
		CurrentPage:  metadata.CurrentPage,
		FirstPage:    metadata.FirstPage,
		LastPage:     metadata.LastPage,
		PageSize:     metadata.PageSize,
		TotalRecords: metadata.TotalRecords,
	}
}
