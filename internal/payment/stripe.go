package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

var ErrPaymentMethodRequired = errors.New("card payments require a payment method id")

type createIntentFunc func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

// StripeProvider charges cards through Stripe PaymentIntents that are
// confirmed server side, so the result is known before seats are committed.
type StripeProvider struct {
	currency     stripe.Currency
	createIntent createIntentFunc
}

// NewStripeProvider charges in currency, an ISO 4217 code such as "USD". It
// must match the currency bookings are recorded in.
func NewStripeProvider(secretKey, currency string) *StripeProvider {
	stripe.Key = secretKey

	return &StripeProvider{
		currency:     stripe.Currency(strings.ToLower(currency)),
		createIntent: paymentintent.New,
	}
}

// Card returns a provider charging the given Stripe payment method once.
func (s *StripeProvider) Card(userID, paymentMethodID string) (*CardPayment, error) {
	if paymentMethodID == "" {
		return nil, ErrPaymentMethodRequired
	}

	return &CardPayment{
		stripe:          s,
		userID:          userID,
		paymentMethodID: paymentMethodID,
		idempotencyKey:  uuid.NewString(),
	}, nil
}

type CardPayment struct {
	stripe          *StripeProvider
	userID          string
	paymentMethodID string
	idempotencyKey  string
}

var _ domain.PaymentProvider = (*CardPayment)(nil)

func (c *CardPayment) Pay(ctx context.Context, amount decimal.Decimal) error {
	priceCents := toCents(amount)
	if priceCents <= 0 {
		return fmt.Errorf("%w: non-positive amount %s", domain.ErrPaymentDeclined, amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(priceCents),
		Currency:      stripe.String(string(c.stripe.currency)),
		PaymentMethod: stripe.String(c.paymentMethodID),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
		Metadata: map[string]string{
			"user_id": c.userID,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(c.idempotencyKey)

	pi, err := c.stripe.createIntent(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, stripeErr.Msg)
		}

		return fmt.Errorf("%w: %w", domain.ErrPaymentGateway, err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: payment intent %s is %s", domain.ErrPaymentDeclined, pi.ID, pi.Status)
	}

	return nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
