package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	attempts      metric.Int64Counter
	duration      metric.Float64Histogram
	cancellations metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter("reservation")

	attempts, err := meter.Int64Counter(
		"reservation_attempts_total",
		metric.WithDescription("Reservation attempts by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attempts counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"reservation_attempt_duration_seconds",
		metric.WithDescription("Time from the first seat lock to commit or rollback"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attempt duration histogram: %w", err)
	}

	cancellations, err := meter.Int64Counter(
		"reservation_cancellations_total",
		metric.WithDescription("Confirmed bookings cancelled"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cancellations counter: %w", err)
	}

	return &metrics{
		attempts:      attempts,
		duration:      duration,
		cancellations: cancellations,
	}, nil
}

func (m *metrics) recordAttempt(ctx context.Context, showtimeID int, start time.Time, err error) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome(err)),
		attribute.Int("showtime_id", showtimeID),
	)

	m.attempts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, domain.ErrEmptyRequest):
		return "empty_request"
	case errors.Is(err, domain.ErrDuplicateSeat):
		return "duplicate_seat"
	case errors.Is(err, domain.ErrSeatNotFound):
		return "seat_not_found"
	case errors.Is(err, domain.ErrLeaseExpired):
		return "lease_expired"
	case errors.Is(err, domain.ErrSeatUnavailable):
		return "seat_unavailable"
	case errors.Is(err, domain.ErrPaymentDeclined):
		return "payment_declined"
	default:
		return "error"
	}
}
