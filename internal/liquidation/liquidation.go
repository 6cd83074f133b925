// Package liquidation decides whether a position can be liquidated and how
// its remaining collateral is split between the liquidator and the pool.
//
// It composes the fee, funding and position engines. Like them it is a pure
// function of the snapshot it is given.
package liquidation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/fees"
	"github.com/hydrox/vault-engine/internal/funding"
	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/position"
	"github.com/hydrox/vault-engine/internal/precision"
)

// ErrNotLiquidatable is returned when liquidating a healthy position.
var ErrNotLiquidatable = errors.New("liquidation: position is not liquidatable")

// Status is the outcome of one liquidation check.
type Status int

const (
	Healthy Status = iota
	Liquidatable
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Liquidatable:
		return "liquidatable"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*s = Healthy
	case "liquidatable":
		*s = Liquidatable
	default:
		return fmt.Errorf("liquidation: unknown status %q", text)
	}
	return nil
}

// Assessment is the full breakdown behind a liquidation check.
type Assessment struct {
	Status             Status          `json:"status"`
	PnL                decimal.Decimal `json:"pnl"`
	FundingFee         decimal.Decimal `json:"funding_fee"`
	MarginFee          decimal.Decimal `json:"margin_fee"`
	LiquidationFee     decimal.Decimal `json:"liquidation_fee"`
	TotalFees          decimal.Decimal `json:"total_fees"`
	Remaining          decimal.Decimal `json:"remaining"`
	CollateralRatioBps decimal.Decimal `json:"collateral_ratio_bps"`
}

// Payout splits a liquidated position's collateral.
type Payout struct {
	// RemainingAfterFeesAndPnL is collateral + pnl - funding - margin fee,
	// before the liquidator is paid.
	RemainingAfterFeesAndPnL decimal.Decimal `json:"remaining_after_fees_and_pnl"`
	LiquidatorFee            decimal.Decimal `json:"liquidator_fee"`
	RemainingCollateral      decimal.Decimal `json:"remaining_collateral"`
	// TotalLoss is the deficit beyond collateral absorbed by the pool.
	TotalLoss decimal.Decimal `json:"total_loss"`
}

// Assess values p at currentPrice and checks it against the liquidation
// threshold:
//
//	remaining = collateral + pnl - (funding + margin fee + liquidation fee)
//
// The position is liquidatable when remaining <= 0 or when
// remaining * 10000 / size falls below LiquidationThresholdBps.
func Assess(p model.PositionRecord, currentPrice, currentFundingRate decimal.Decimal,
	marginFeeBps int64, liquidationFeeUSD decimal.Decimal,
) Assessment {
	a := Assessment{
		PnL:            position.PnL(p, currentPrice),
		FundingFee:     funding.Fee(p.Size, p.EntryFundingRate, currentFundingRate),
		MarginFee:      fees.MarginFee(p.Size, marginFeeBps),
		LiquidationFee: fees.LiquidationFee(liquidationFeeUSD),
	}
	a.TotalFees = a.FundingFee.Add(a.MarginFee).Add(a.LiquidationFee)
	a.Remaining = p.Collateral.Add(a.PnL).Sub(a.TotalFees)

	if !a.Remaining.IsPositive() {
		a.Status = Liquidatable
		return a
	}
	// Size is positive on every open position; a zero-size snapshot has
	// nothing left to liquidate.
	if !p.Size.IsPositive() {
		a.Status = Healthy
		return a
	}

	a.CollateralRatioBps = precision.MulDiv(a.Remaining, precision.BasisPointsDivisor, p.Size)
	if a.CollateralRatioBps.LessThan(precision.Int(precision.LiquidationThresholdBps)) {
		a.Status = Liquidatable
	}
	return a
}

// IsLiquidatable reports whether p may be liquidated at currentPrice.
func IsLiquidatable(p model.PositionRecord, currentPrice, currentFundingRate decimal.Decimal,
	marginFeeBps int64, liquidationFeeUSD decimal.Decimal,
) bool {
	return Check(p, currentPrice, currentFundingRate, marginFeeBps, liquidationFeeUSD) == Liquidatable
}

// Check returns p's liquidation status at currentPrice.
func Check(p model.PositionRecord, currentPrice, currentFundingRate decimal.Decimal,
	marginFeeBps int64, liquidationFeeUSD decimal.Decimal,
) Status {
	return Assess(p, currentPrice, currentFundingRate, marginFeeBps, liquidationFeeUSD).Status
}

// ComputePayout splits p's collateral at liquidation. The liquidation fee is
// left out of the deduction so it can be paid explicitly, and only up to
// what is actually left:
//
//	remaining     = collateral + pnl - (funding + margin fee)
//	liquidatorFee = min(liquidationFee, max(remaining, 0))
//	collateral    = max(remaining - liquidatorFee, 0)
//	loss          = max(liquidatorFee - remaining, 0)
func ComputePayout(p model.PositionRecord, currentPrice, currentFundingRate decimal.Decimal,
	marginFeeBps int64, liquidationFeeUSD decimal.Decimal,
) Payout {
	pnl := position.PnL(p, currentPrice)
	fundingFee := funding.Fee(p.Size, p.EntryFundingRate, currentFundingRate)
	marginFee := fees.MarginFee(p.Size, marginFeeBps)

	remaining := p.Collateral.Add(pnl).Sub(fundingFee.Add(marginFee))
	liquidatorFee := precision.Min(fees.LiquidationFee(liquidationFeeUSD), precision.NonNegative(remaining))
	left := remaining.Sub(liquidatorFee)

	return Payout{
		RemainingAfterFeesAndPnL: remaining,
		LiquidatorFee:            liquidatorFee,
		RemainingCollateral:      precision.NonNegative(left),
		TotalLoss:                precision.NonNegative(left.Neg()),
	}
}

// Validate returns ErrNotLiquidatable unless p may be liquidated.
func Validate(p model.PositionRecord, currentPrice, currentFundingRate decimal.Decimal,
	marginFeeBps int64, liquidationFeeUSD decimal.Decimal,
) error {
	if !IsLiquidatable(p, currentPrice, currentFundingRate, marginFeeBps, liquidationFeeUSD) {
		return ErrNotLiquidatable
	}
	return nil
}
