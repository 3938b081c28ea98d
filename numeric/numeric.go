// Package numeric converts chain-native fixed-point encodings into exact
// decimals and provides the small arithmetic helpers shared by the
// aggregation engine.
package numeric

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// RoundDigits is the number of fractional digits the ledger keeps for
// prorated rewards and withdrawals. Rounding is half-up.
const RoundDigits = 12

// DustLimit is the floor below which residual amounts are treated as zero
// in display and cleanup paths.
var DustLimit = decimal.New(1, -6)

// pow5x64 = 5^64. Dividing a Q64 value by 2^64 is the same as multiplying
// by 5^64 and shifting the decimal exponent by -64, which keeps the
// conversion exact.
var pow5x64 = new(big.Int).Exp(big.NewInt(5), big.NewInt(64), nil)

// ToBalance converts a 1e12-scaled chain balance to a decimal.
func ToBalance(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -12)
}

// FromBits converts a Q64 fixed-point value (64 fractional bits) to a
// decimal without loss.
func FromBits(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).Mul(v, pow5x64), -64)
}

func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// RemoveDust zeroes amounts at or below the dust limit.
func RemoveDust(amount decimal.Decimal) decimal.Decimal {
	if amount.LessThanOrEqual(DustLimit) {
		return decimal.Zero
	}
	return amount
}

// Prorate computes shares/totalShares*total rounded half-up at the ledger's
// fractional precision. The multiplication happens before the division so
// the only rounding step is the final one.
func Prorate(shares, totalShares, total decimal.Decimal) decimal.Decimal {
	return shares.Mul(total).DivRound(totalShares, RoundDigits)
}

// Sqrt returns the square root of d. Computed through a 256-bit big.Float,
// which carries far more precision than the 12 fractional digits the
// callers round to.
func Sqrt(d decimal.Decimal) decimal.Decimal {
	f, _, err := big.ParseFloat(d.String(), 10, 256, big.ToNearestEven)
	if err != nil {
		panic(err)
	}
	f.Sqrt(f)
	out, err := decimal.NewFromString(f.Text('f', 2*RoundDigits))
	if err != nil {
		panic(err)
	}
	return out
}
