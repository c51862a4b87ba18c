package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxAmount is the greatest amount an escrow can hold, 2^128 - 1.
var MaxAmount = decimal.NewFromBigInt(
	new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)), 0,
)

// ParseAmount parses the given base-10 string into a valid escrow amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrEscrowInvalidAmount
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ValidateAmount makes sure the given amount is a strictly positive integer
// representable with 128 bits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrEscrowInvalidAmount
	}
	if !amount.Equal(amount.Truncate(0)) {
		return ErrEscrowInvalidAmount
	}
	if amount.GreaterThan(MaxAmount) {
		return ErrEscrowInvalidAmount
	}
	return nil
}
