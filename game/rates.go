package game

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rates maps each game type to its payout multiplier: a winning stake of
// 10 at rate 9.5 pays 95.
type Rates map[GameType]decimal.Decimal

// DefaultRates returns the standard market rates.
func DefaultRates() Rates {
	return Rates{
		SingleDigit: decimal.RequireFromString("9.5"),
		JodiDigit:   decimal.NewFromInt(95),
		SinglePanna: decimal.NewFromInt(150),
		DoublePanna: decimal.NewFromInt(300),
		TriplePanna: decimal.NewFromInt(1000),
		HalfSangam:  decimal.NewFromInt(1000),
		FullSangam:  decimal.NewFromInt(10000),
	}
}

// For returns the configured rate, falling back to the default rate.
func (r Rates) For(g GameType) decimal.Decimal {
	if rate, ok := r[g]; ok && rate.IsPositive() {
		return rate
	}
	return DefaultRates()[g]
}

// Validate rejects unknown game types and non-positive rates.
func (r Rates) Validate() error {
	for g, rate := range r {
		if !g.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidGameType, g)
		}
		if !rate.IsPositive() {
			return fmt.Errorf("rate for %s must be positive", g)
		}
	}
	return nil
}

// WinAmount is stake × rate, rounded to paise.
func WinAmount(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}
