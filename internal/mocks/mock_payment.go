package mocks

import (
	"context"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockPaymentProvider struct {
	mock.Mock
}

var _ domain.PaymentProvider = (*MockPaymentProvider)(nil)

func (m *MockPaymentProvider) Pay(ctx context.Context, amount decimal.Decimal) error {
	args := m.Called(ctx, amount)
	return args.Error(0)
}

type MockPaymentMethods struct {
	mock.Mock
}

func (m *MockPaymentMethods) Resolve(
	method domain.PaymentMethod,
	userID string,
	paymentMethodID string) (domain.PaymentProvider, error) {

	args := m.Called(method, userID, paymentMethodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.PaymentProvider), args.Error(1)
}

type MockWallets struct {
	mock.Mock
}

func (m *MockWallets) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockWallets) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
