package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type PostgresBookingRepository struct {
	db DB
}

var _ domain.BookingRepository = (*PostgresBookingRepository)(nil)

func NewPostgresBookingRepository(db DB) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db: db,
	}
}

func (p *PostgresBookingRepository) Create(ctx context.Context, booking domain.Booking, payment domain.Payment) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO bookings (id, user_id, showtime_id, total_price, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`

		_, err := tx.Exec(
			ctx,
			query,
			booking.ID,
			booking.UserID,
			booking.ShowtimeID,
			booking.TotalPrice,
			booking.Status,
			booking.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "bookings_pkey" {
				return domain.ErrDuplicateBooking
			}

			return err
		}

		rows := make([][]any, 0, len(booking.SeatIDs))
		for _, seatID := range booking.SeatIDs {
			rows = append(rows, []any{
				booking.ID,
				booking.ShowtimeID,
				seatID,
			})
		}

		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"booking_seats"},
			[]string{"booking_id", "showtime_id", "seat_id"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return domain.ErrSeatUnavailable
			}

			return err
		}

		query = `
			INSERT INTO payments (booking_id, method, amount, currency, status)
			VALUES ($1, $2, $3, $4, $5)
		`

		_, err = tx.Exec(
			ctx,
			query,
			booking.ID,
			payment.Method,
			payment.Amount,
			payment.Currency,
			payment.Status)

		return err
	})
}

func runInTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) error {
	var txOptions pgx.TxOptions

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}

const bookingColumns = `
	b.id,
	b.user_id,
	b.showtime_id,
	b.total_price,
	b.status,
	b.created_at,
	ARRAY(
		SELECT bs.seat_id FROM booking_seats bs
		WHERE bs.booking_id = b.id
		ORDER BY bs.seat_id
	)
`

func (p *PostgresBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`

	var booking domain.Booking

	err := p.db.QueryRow(ctx, query, id).Scan(
		&booking.ID,
		&booking.UserID,
		&booking.ShowtimeID,
		&booking.TotalPrice,
		&booking.Status,
		&booking.CreatedAt,
		&booking.SeatIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &booking, nil
}

func (p *PostgresBookingRepository) GetPayment(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	query := `
		SELECT id, booking_id, method, amount, currency, status, created_at
		FROM payments
		WHERE booking_id = $1
	`

	var payment domain.Payment

	err := p.db.QueryRow(ctx, query, bookingID).Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.Method,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &payment, nil
}

func (p *PostgresBookingRepository) ListByUser(
	ctx context.Context,
	userID string,
	pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {

	query := `
		SELECT COUNT(*) OVER(), ` + bookingColumns + `
		FROM bookings b
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, userID, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	totalRecords := 0

	for rows.Next() {
		var booking domain.Booking

		err := rows.Scan(
			&totalRecords,
			&booking.ID,
			&booking.UserID,
			&booking.ShowtimeID,
			&booking.TotalPrice,
			&booking.Status,
			&booking.CreatedAt,
			&booking.SeatIDs,
		)
		if err != nil {
			return nil, nil, err
		}

		bookings = append(bookings, booking)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	metadata := domain.NewMetadata(totalRecords, pagination.Page, pagination.PageSize)

	return bookings, metadata, nil
}

// Cancel marks a confirmed booking cancelled, frees its seats for new
// bookings and flags its payment for refund.
func (p *PostgresBookingRepository) Cancel(ctx context.Context, id int64) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings
			SET status = 'cancelled', updated_at = NOW()
			WHERE id = $1 AND status = 'confirmed'
		`

		tag, err := tx.Exec(ctx, query, id)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return domain.ErrRecordNotFound
		}

		_, err = tx.Exec(ctx, `UPDATE booking_seats SET active = FALSE WHERE booking_id = $1`, id)
		if err != nil {
			return err
		}

		query = `
			UPDATE payments
			SET status = 'refunded', updated_at = NOW()
			WHERE booking_id = $1
		`

		_, err = tx.Exec(ctx, query, id)

		return err
	})
}

func (p *PostgresBookingRepository) GetBookedSeatIDs(ctx context.Context, showtimeID int) ([]int, error) {
	query := `
		SELECT seat_id
		FROM booking_seats
		WHERE showtime_id = $1 AND active
		ORDER BY seat_id
	`

	rows, err := p.db.Query(ctx, query, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seatIDs := make([]int, 0)

	for rows.Next() {
		var seatID int

		if err := rows.Scan(&seatID); err != nil {
			return nil, err
		}

		seatIDs = append(seatIDs, seatID)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return seatIDs, nil
}

// NextID draws the next booking id from the database sequence, so every
// engine instance sharing the database gets distinct ids.
func (p *PostgresBookingRepository) NextID(ctx context.Context) (int64, error) {
	var id int64

	err := p.db.QueryRow(ctx, `SELECT nextval('booking_id_seq')`).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}
