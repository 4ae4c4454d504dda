package payment

import (
	"context"
	"testing"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodsResolve(t *testing.T) {
	mock := NewMockPaymentProvider()
	wallets := NewWallets(nil)

	tests := []struct {
		name            string
		methods         *Methods
		method          domain.PaymentMethod
		paymentMethodID string
		wantType        domain.PaymentProvider
		wantErr         error
	}{
		{
			name:     "should use mock provider for cards in mock mode",
			methods:  NewMockMethods(mock, wallets),
			method:   domain.PaymentMethodCard,
			wantType: mock,
		},
		{
			name:            "should charge cards through stripe",
			methods:         NewMethods(NewStripeProvider("sk_test", "USD"), wallets),
			method:          domain.PaymentMethodCard,
			paymentMethodID: "pm_card_visa",
			wantType:        &CardPayment{},
		},
		{
			name:    "should require payment method id for stripe cards",
			methods: NewMethods(NewStripeProvider("sk_test", "USD"), wallets),
			method:  domain.PaymentMethodCard,
			wantErr: ErrPaymentMethodRequired,
		},
		{
			name:     "should pay from wallet",
			methods:  NewMethods(nil, wallets),
			method:   domain.PaymentMethodWallet,
			wantType: &WalletPayment{},
		},
		{
			name:    "should reject unknown method",
			methods: NewMethods(nil, wallets),
			method:  domain.PaymentMethod("cash"),
			wantErr: ErrUnsupportedPaymentMethod,
		},
		{
			name:    "should reject cards when no card processor is configured",
			methods: NewMethods(nil, wallets),
			method:  domain.PaymentMethodCard,
			wantErr: ErrUnsupportedPaymentMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := tt.methods.Resolve(tt.method, "user-1", tt.paymentMethodID)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, provider)
				return
			}

			require.NoError(t, err)
			assert.IsType(t, tt.wantType, provider)
		})
	}
}

func TestMockPaymentProvider(t *testing.T) {
	t.Run("should record approved charges", func(t *testing.T) {
		m := NewMockPaymentProvider()

		require.NoError(t, m.Pay(context.Background(), decimal.NewFromInt(10)))
		require.NoError(t, m.Pay(context.Background(), decimal.NewFromInt(15)))

		charges := m.Charges()
		require.Len(t, charges, 2)
		assert.True(t, decimal.NewFromInt(15).Equal(charges[1]))
	})

	t.Run("should return configured error", func(t *testing.T) {
		m := &MockPaymentProvider{Err: domain.ErrPaymentDeclined}

		err := m.Pay(context.Background(), decimal.NewFromInt(10))
		require.ErrorIs(t, err, domain.ErrPaymentDeclined)
		assert.Empty(t, m.Charges())
	})

	t.Run("should stop waiting when context ends", func(t *testing.T) {
		m := &MockPaymentProvider{Delay: time.Minute}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := m.Pay(ctx, decimal.NewFromInt(10))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
