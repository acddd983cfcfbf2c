package core

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FixedFractionalBits is the fractional width of the ledger's I64F64 balances
const FixedFractionalBits = 64

var fixedOne = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), FixedFractionalBits), 0)

// FixedFromDecimal converts an amount to raw I64F64 units. The multiplication is exact;
// roundUp selects the ceiling instead of the floor when the amount is not representable.
func FixedFromDecimal(amount decimal.Decimal, roundUp bool) *big.Int {
	scaled := amount.Mul(fixedOne)
	if roundUp {
		scaled = scaled.Ceil()
	} else {
		scaled = scaled.Floor()
	}
	return scaled.BigInt()
}

// FixedToDecimal converts raw I64F64 units to a decimal for display
func FixedToDecimal(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, 0).DivRound(fixedOne, 18)
}
