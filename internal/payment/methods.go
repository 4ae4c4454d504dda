package payment

import (
	"errors"
	"fmt"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

var ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")

// Methods picks the payment strategy of a booking request. With a mock card
// provider set, card payments never reach Stripe.
type Methods struct {
	stripe   *StripeProvider
	wallets  *Wallets
	mockCard domain.PaymentProvider
}

func NewMethods(stripe *StripeProvider, wallets *Wallets) *Methods {
	return &Methods{stripe: stripe, wallets: wallets}
}

func NewMockMethods(mock domain.PaymentProvider, wallets *Wallets) *Methods {
	return &Methods{mockCard: mock, wallets: wallets}
}

func (m *Methods) Resolve(method domain.PaymentMethod, userID, paymentMethodID string) (domain.PaymentProvider, error) {
	switch method {
	case domain.PaymentMethodCard:
		if m.mockCard != nil {
			return m.mockCard, nil
		}
		if m.stripe == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, method)
		}
		card, err := m.stripe.Card(userID, paymentMethodID)
		if err != nil {
			return nil, err
		}
		return card, nil

	case domain.PaymentMethodWallet:
		if m.wallets == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, method)
		}
		return m.wallets.For(userID), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, method)
	}
}
