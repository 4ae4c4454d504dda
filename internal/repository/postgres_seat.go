package repository

import (
	"context"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/shopspring/decimal"
)

type PostgresSeatRepository struct {
	db DB
}

var _ domain.Catalog = (*PostgresSeatRepository)(nil)

func NewPostgresSeatRepository(db DB) *PostgresSeatRepository {
	return &PostgresSeatRepository{
		db: db,
	}
}

func (p *PostgresSeatRepository) GetSeatsByShowtime(ctx context.Context, showtimeID int) (*domain.ShowtimeSeats, error) {
	query := `
		SELECT
			t.id AS theater_id,
			t.name AS theater_name,
			h.id AS hall_id,
			h.name AS hall_name,
			m.title,
			sh.start_time,
			sh.base_price,
			se.id AS seat_id,
			se.seat_row,
			se.seat_col,
			se.seat_type,
			se.extra_price
		FROM showtimes sh
		JOIN seats se
			ON sh.hall_id = se.hall_id
		JOIN halls h
			ON sh.hall_id = h.id
		JOIN theaters t
			ON h.theater_id = t.id
		JOIN movies m
			ON sh.movie_id = m.id
		WHERE sh.id = $1
		ORDER BY se.seat_row, se.seat_col
	`

	rows, err := p.db.Query(ctx, query, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	showtimeSeats := domain.ShowtimeSeats{ShowtimeID: showtimeID}

	for rows.Next() {
		var (
			seat       domain.Seat
			extraPrice decimal.Decimal
		)

		err = rows.Scan(
			&showtimeSeats.TheaterID,
			&showtimeSeats.TheaterName,
			&showtimeSeats.HallID,
			&showtimeSeats.HallName,
			&showtimeSeats.MovieName,
			&showtimeSeats.Date,
			&showtimeSeats.BasePrice,
			&seat.ID,
			&seat.Row,
			&seat.Col,
			&seat.Type,
			&extraPrice,
		)
		if err != nil {
			return nil, err
		}

		seat.Price = showtimeSeats.BasePrice.Add(extraPrice)
		showtimeSeats.Seats = append(showtimeSeats.Seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(showtimeSeats.Seats) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	return &showtimeSeats, nil
}
