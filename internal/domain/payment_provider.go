package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// PaymentProvider charges a single reservation attempt. A nil error means the
// amount was captured. An error wrapping ErrPaymentDeclined means the payer was
// refused; any other error is a gateway failure. Implementations must honour
// ctx cancellation.
type PaymentProvider interface {
	Pay(ctx context.Context, amount decimal.Decimal) error
}

type PaymentProviderFunc func(ctx context.Context, amount decimal.Decimal) error

func (f PaymentProviderFunc) Pay(ctx context.Context, amount decimal.Decimal) error {
	return f(ctx, amount)
}
