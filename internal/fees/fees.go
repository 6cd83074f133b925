// Package fees computes margin and liquidation fees the way the vault
// validator does.
package fees

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/precision"
)

// ErrFeeOutOfRange is returned when a configured fee is negative or above
// the contract maximum.
var ErrFeeOutOfRange = errors.New("fees: fee outside allowed range")

// OpenFees is the fee breakdown for opening or increasing a position.
type OpenFees struct {
	MarginFee decimal.Decimal `json:"margin_fee"`
	TotalFees decimal.Decimal `json:"total_fees"`
}

// CloseFees is the fee breakdown for decreasing or closing a position.
// FundingFee and TotalFees are negative when the position receives funding.
type CloseFees struct {
	MarginFee  decimal.Decimal `json:"margin_fee"`
	FundingFee decimal.Decimal `json:"funding_fee"`
	TotalFees  decimal.Decimal `json:"total_fees"`
}

// MarginFee is charged on position size: sizeDelta * marginFeeBps / 10000.
func MarginFee(sizeDelta decimal.Decimal, marginFeeBps int64) decimal.Decimal {
	return precision.ApplyBps(sizeDelta, marginFeeBps)
}

// LiquidationFee is the vault's fixed USD liquidation fee.
func LiquidationFee(liquidationFeeUSD decimal.Decimal) decimal.Decimal {
	return liquidationFeeUSD
}

// OpenPositionFees returns the fees for opening or increasing a position.
func OpenPositionFees(sizeDelta decimal.Decimal, marginFeeBps int64) OpenFees {
	marginFee := MarginFee(sizeDelta, marginFeeBps)
	return OpenFees{
		MarginFee: marginFee,
		TotalFees: marginFee,
	}
}

// ClosePositionFees returns the fees for decreasing or closing a position.
func ClosePositionFees(sizeDelta decimal.Decimal, marginFeeBps int64, fundingFee decimal.Decimal) CloseFees {
	marginFee := MarginFee(sizeDelta, marginFeeBps)
	return CloseFees{
		MarginFee:  marginFee,
		FundingFee: fundingFee,
		TotalFees:  marginFee.Add(fundingFee),
	}
}

// ValidateFeeBps checks a mint/burn or margin fee against [0, MaxFeeBasisPoints].
func ValidateFeeBps(bps int64) error {
	if bps < 0 || bps > precision.MaxFeeBasisPoints {
		return ErrFeeOutOfRange
	}
	return nil
}

// ValidateLiquidationFee checks a liquidation fee against [0, MaxLiquidationFeeUSD].
func ValidateLiquidationFee(fee decimal.Decimal) error {
	if fee.IsNegative() || fee.GreaterThan(precision.MaxLiquidationFeeUSD) {
		return ErrFeeOutOfRange
	}
	return nil
}
