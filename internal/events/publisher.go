package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 3 * time.Second

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	ch  channel
	now func() time.Time
}

var _ Publisher = (*AMQPPublisher)(nil)

func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return newAMQPPublisher(ch)
}

func newAMQPPublisher(ch channel) (*AMQPPublisher, error) {
	for _, queue := range []string{BookingConfirmedQueue, BookingCancelledQueue} {
		_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("declare %s: %w", queue, err)
		}
	}

	return &AMQPPublisher{ch: ch, now: time.Now}, nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

func (p *AMQPPublisher) PublishBookingConfirmed(ctx context.Context, booking domain.Booking) error {
	ev := BookingConfirmed{
		EventType:  "BookingConfirmed",
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		ShowtimeID: booking.ShowtimeID,
		SeatIDs:    booking.SeatIDs,
		TotalPrice: booking.TotalPrice,
		Timestamp:  p.now().UTC(),
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal BookingConfirmed: %w", err)
	}

	return p.publishJSON(ctx, BookingConfirmedQueue, body)
}

func (p *AMQPPublisher) PublishBookingCancelled(ctx context.Context, booking domain.Booking) error {
	ev := BookingCancelled{
		EventType:  "BookingCancelled",
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		ShowtimeID: booking.ShowtimeID,
		SeatIDs:    booking.SeatIDs,
		Timestamp:  p.now().UTC(),
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal BookingCancelled: %w", err)
	}

	return p.publishJSON(ctx, BookingCancelledQueue, body)
}

func (p *AMQPPublisher) publishJSON(ctx context.Context, queue string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",    // default exchange
		queue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    p.now().UTC(),
			Body:         body,
		},
	)
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishBookingConfirmed(context.Context, domain.Booking) error { return nil }

func (NoopPublisher) PublishBookingCancelled(context.Context, domain.Booking) error { return nil }
