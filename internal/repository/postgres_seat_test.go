package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seatColumns = []string{
	"theater_id", "theater_name", "hall_id", "hall_name", "title", "start_time", "base_price",
	"seat_id", "seat_row", "seat_col", "seat_type", "extra_price",
}

func TestPostgresSeatRepositoryGetSeatsByShowtime(t *testing.T) {
	start := time.Date(2095, 1, 1, 20, 0, 0, 0, time.UTC)
	base := decimal.NewFromInt(10)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      *domain.ShowtimeSeats
		wantErr   error
	}{
		{
			name: "should return every seat priced from the showtime base price",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(seatColumns).
					AddRow(1, "Grand", 2, "Hall A", "Heat", start, base, 11, 1, 1, domain.SeatTypeStandard, decimal.Zero).
					AddRow(1, "Grand", 2, "Hall A", "Heat", start, base, 12, 1, 2, domain.SeatTypeVIP, decimal.NewFromInt(5))

				mock.ExpectQuery("FROM showtimes sh").WithArgs(7).WillReturnRows(rows)
			},
			want: &domain.ShowtimeSeats{
				ShowtimeID:  7,
				TheaterID:   1,
				TheaterName: "Grand",
				HallID:      2,
				HallName:    "Hall A",
				MovieName:   "Heat",
				Date:        start,
				BasePrice:   base,
				Seats: []domain.Seat{
					{ID: 11, Row: 1, Col: 1, Type: domain.SeatTypeStandard, Price: decimal.NewFromInt(10)},
					{ID: 12, Row: 1, Col: 2, Type: domain.SeatTypeVIP, Price: decimal.NewFromInt(15)},
				},
			},
		},
		{
			name: "should report unknown showtime",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("FROM showtimes sh").WithArgs(7).WillReturnRows(pgxmock.NewRows(seatColumns))
			},
			wantErr: domain.ErrRecordNotFound,
		},
		{
			name: "should return query error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("FROM showtimes sh").WithArgs(7).WillReturnError(errors.New("db down"))
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewPostgresSeatRepository(mock)
			got, err := repo.GetSeatsByShowtime(context.Background(), 7)

			switch {
			case errors.Is(tt.wantErr, domain.ErrRecordNotFound):
				require.ErrorIs(t, err, domain.ErrRecordNotFound)
			case tt.wantErr != nil:
				require.ErrorContains(t, err, tt.wantErr.Error())
			default:
				require.NoError(t, err)

				diff := cmp.Diff(tt.want, got, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }))
				assert.Empty(t, diff, "ShowtimeSeats mismatch (-want +got):\n%s", diff)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
