package payment

import (
	"context"
	"sync"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// MockPaymentProvider approves every charge unless Err is set. It is used by
// tests and when the service runs with -payment-mode=mock.
type MockPaymentProvider struct {
	// Err is returned from every Pay call when non-nil.
	Err error
	// Delay simulates gateway latency. Pay gives up early if ctx ends.
	Delay time.Duration

	mu      sync.Mutex
	charges []decimal.Decimal
}

var _ domain.PaymentProvider = (*MockPaymentProvider)(nil)

func NewMockPaymentProvider() *MockPaymentProvider {
	return &MockPaymentProvider{}
}

func (m *MockPaymentProvider) Pay(ctx context.Context, amount decimal.Decimal) error {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.Delay):
		}
	}

	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	m.charges = append(m.charges, amount)
	m.mu.Unlock()

	return nil
}

// Charges returns the amounts captured so far.
func (m *MockPaymentProvider) Charges() []decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	charges := make([]decimal.Decimal, len(m.charges))
	copy(charges, m.charges)

	return charges
}
