package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")

// KEYS = [wallet key]
// ARGV = [amount in cents]
var debitWalletScript = redis.NewScript(`
	local balance = tonumber(redis.call("GET", KEYS[1]) or "0")
	local amount = tonumber(ARGV[1])

	if balance < amount then
		return -1
	end

	return redis.call("DECRBY", KEYS[1], amount)
`)

// Wallets keeps stored-value balances in Redis, in cents.
type Wallets struct {
	client redis.UniversalClient
}

func NewWallets(client redis.UniversalClient) *Wallets {
	return &Wallets{client: client}
}

func walletKey(userID string) string {
	return fmt.Sprintf("wallet:%s", userID)
}

func (w *Wallets) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	cents, err := w.client.Get(ctx, walletKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to read wallet balance: %w", err)
	}

	return fromCents(cents), nil
}

// Deposit tops up the wallet and returns the new balance.
func (w *Wallets) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !validAmount(amount) {
		return decimal.Zero, ErrInvalidAmount
	}

	cents, err := w.client.IncrBy(ctx, walletKey(userID), toCents(amount)).Result()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to deposit to wallet: %w", err)
	}

	return fromCents(cents), nil
}

// For returns a provider that pays from the user's wallet.
func (w *Wallets) For(userID string) *WalletPayment {
	return &WalletPayment{wallets: w, userID: userID}
}

type WalletPayment struct {
	wallets *Wallets
	userID  string
}

var _ domain.PaymentProvider = (*WalletPayment)(nil)

func (p *WalletPayment) Pay(ctx context.Context, amount decimal.Decimal) error {
	if !validAmount(amount) {
		return fmt.Errorf("%w: %w", domain.ErrPaymentDeclined, ErrInvalidAmount)
	}

	res, err := debitWalletScript.Run(ctx, p.wallets.client, []string{walletKey(p.userID)}, toCents(amount)).Int64()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPaymentGateway, err)
	}

	if res < 0 {
		return fmt.Errorf("%w: insufficient wallet balance", domain.ErrPaymentDeclined)
	}

	return nil
}

func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
