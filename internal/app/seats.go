package app

import (
	"errors"
	"net/http"

	"github.com/metinatakli/seat-reservation-engine/api"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

func (app *Application) GetSeatMapByShowtime(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showtimeID, err := readIDParam(r, "showtimeId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	showtime, err := app.catalog.GetSeatsByShowtime(r.Context(), int(showtimeID))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			logger.Warn("seat map not found for showtime", "showtime_id", showtimeID)
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	pool, err := app.registry.Get(r.Context(), int(showtimeID))
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	states, err := pool.Snapshot(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := toSeatMapResponse(showtime, states)

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toSeatMapResponse(showtime *domain.ShowtimeSeats, states []domain.SeatState) api.SeatMapResponse {
	return api.SeatMapResponse{
		ShowtimeId:  showtime.ShowtimeID,
		TheaterId:   showtime.TheaterID,
		TheaterName: showtime.TheaterName,
		HallId:      showtime.HallID,
		HallName:    showtime.HallName,
		MovieTitle:  showtime.MovieName,
		Date:        showtime.Date,
		SeatRows:    toSeatRows(states),
	}
}

func toSeatRows(states []domain.SeatState) []api.SeatRow {
	// Snapshots are sorted by row, then column, so rows are built in one pass.
	seatRows := make([]api.SeatRow, 0)

	for _, v := range states {
		if len(seatRows) == 0 || seatRows[len(seatRows)-1].Row != v.Row {
			seatRows = append(seatRows, api.SeatRow{Row: v.Row})
		}

		currentRow := &seatRows[len(seatRows)-1]
		currentRow.Seats = append(currentRow.Seats, api.Seat{
			Id:     v.ID,
			Label:  v.Label(),
			Row:    v.Row,
			Column: v.Col,
			Type:   api.SeatType(v.Type),
			Price:  v.Price,
			Status: toSeatStatus(v.Status),
		})
	}

	return seatRows
}

func toSeatStatus(status domain.SeatStatus) api.SeatStatus {
	switch status {
	case domain.SeatLocked:
		return api.Locked
	case domain.SeatBooked:
		return api.Booked
	default:
		return api.Available
	}
}
