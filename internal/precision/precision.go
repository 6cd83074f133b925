// Package precision holds the fixed-point scales shared by every vault
// calculation and the integer helpers that reproduce the contract's
// division behaviour.
//
// Quantities are integers carried in shopspring/decimal values at exponent 0,
// never float64. Every ratio multiplies by the numerator's scale before it
// divides, and every division truncates toward zero, exactly like the
// validator's integer arithmetic. Changing the order of a multiply and a
// divide changes settlement amounts.
package precision

import "github.com/shopspring/decimal"

// Scales, matching the validator constants.
var (
	// BasisPointsDivisor: 1 bp = 1/10000.
	BasisPointsDivisor = decimal.NewFromInt(10_000)

	// PricePrecision: prices and USD-like amounts carry 8 implied decimals.
	PricePrecision = decimal.NewFromInt(100_000_000)

	// FundingRatePrecision is the scale of funding rates.
	FundingRatePrecision = decimal.NewFromInt(1_000_000)

	// USDPrecision is the scale of the configured liquidation fee bound.
	USDPrecision = decimal.NewFromInt(1_000_000)

	// MaxLiquidationFeeUSD is the largest liquidation fee a vault may configure ($100).
	MaxLiquidationFeeUSD = decimal.NewFromInt(100).Mul(USDPrecision)
)

const (
	// BasisPoints is BasisPointsDivisor as an int64.
	BasisPoints int64 = 10_000

	// MaxFeeBasisPoints caps mint/burn and margin fees (5%).
	MaxFeeBasisPoints int64 = 500

	// DefaultFundingRateFactor is 0.01% per hour.
	DefaultFundingRateFactor int64 = 100

	// MinLeverageBps is 1.1x.
	MinLeverageBps int64 = 11_000

	// MaxLeverageBps is 50x.
	MaxLeverageBps int64 = 500_000

	// LiquidationThresholdBps is the minimum remaining-collateral to size
	// ratio (1%) below which a position is liquidatable.
	LiquidationThresholdBps int64 = 100

	// SecondsPerHour converts funding time deltas.
	SecondsPerHour int64 = 3600
)

// Quo returns a / b truncated toward zero. b must be non-zero; callers guard
// every divisor before calling.
func Quo(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, 0)
	return q
}

// MulDiv returns a * b / c, multiplying before dividing.
func MulDiv(a, b, c decimal.Decimal) decimal.Decimal {
	return Quo(a.Mul(b), c)
}

// ApplyBps returns amount * bps / 10000.
func ApplyBps(amount decimal.Decimal, bps int64) decimal.Decimal {
	return MulDiv(amount, Int(bps), BasisPointsDivisor)
}

// Int returns n as an integer decimal.
func Int(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	return Max(d, decimal.Zero)
}
