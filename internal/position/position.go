// Package position values leveraged positions: unrealized PnL, leverage,
// liquidation price and size-weighted entry price.
package position

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/precision"
)

var (
	ErrNonPositiveCollateral = errors.New("position: collateral must be positive")
	ErrNonPositiveSize       = errors.New("position: size must be positive")
	ErrLeverageExceeded      = errors.New("position: leverage exceeds maximum")
)

// PnL returns the unrealized profit (positive) or loss (negative) of p at
// currentPrice:
//
//	long:  size * (currentPrice - averagePrice) / averagePrice
//	short: size * (averagePrice - currentPrice) / averagePrice
//
// The division truncates toward zero for gains and losses alike. A closed
// position, or a snapshot without an average price, has no PnL.
func PnL(p model.PositionRecord, currentPrice decimal.Decimal) decimal.Decimal {
	if p.Size.IsZero() || p.AveragePrice.IsZero() {
		return decimal.Zero
	}

	var priceDelta decimal.Decimal
	if p.Side.IsLong() {
		priceDelta = currentPrice.Sub(p.AveragePrice)
	} else {
		priceDelta = p.AveragePrice.Sub(currentPrice)
	}
	return precision.MulDiv(p.Size, priceDelta, p.AveragePrice)
}

// LeverageBps is size / collateral in basis points (50000 = 5x). This
// integer is what leverage limits are compared against.
func LeverageBps(size, collateral decimal.Decimal) decimal.Decimal {
	if collateral.IsZero() {
		return decimal.Zero
	}
	return precision.MulDiv(size, precision.BasisPointsDivisor, collateral)
}

// Leverage is LeverageBps rescaled by 100 for display (500 for 5x, as the
// validator reports it). Do not compare it against limits; use LeverageBps.
func Leverage(size, collateral decimal.Decimal) decimal.Decimal {
	return LeverageBps(size, collateral).Div(displayScale)
}

var displayScale = precision.BasisPointsDivisor.Div(precision.Int(100))

// LiquidationPrice estimates the price at which p's collateral, net of the
// fixed liquidation fee, is exhausted:
//
//	ratio = max(collateral - liquidationFee, 0) * 10^8 / size
//	long:  max(avg - ratio * avg / 10^8, 0)
//	short: avg + ratio * avg / 10^8
//
// The margin fee is not netted here although the liquidation check nets it,
// so this price is an estimate and can sit slightly beyond the point where
// the check first trips. marginFeeBps is accepted to keep the call shape of
// the validator's formula.
func LiquidationPrice(p model.PositionRecord, marginFeeBps int64, liquidationFeeUSD decimal.Decimal) decimal.Decimal {
	if p.Size.IsZero() {
		return decimal.Zero
	}

	effectiveCollateral := precision.NonNegative(p.Collateral.Sub(liquidationFeeUSD))
	collateralRatio := precision.MulDiv(effectiveCollateral, precision.PricePrecision, p.Size)
	priceMove := precision.MulDiv(collateralRatio, p.AveragePrice, precision.PricePrecision)

	if p.Side.IsLong() {
		return precision.NonNegative(p.AveragePrice.Sub(priceMove))
	}
	return p.AveragePrice.Add(priceMove)
}

// AveragePrice returns the size-weighted entry price after adding sizeDelta
// at entryPrice:
//
//	(currentSize * currentAveragePrice + sizeDelta * entryPrice) / (currentSize + sizeDelta)
//
// A new position takes entryPrice; a position whose size returns to zero has
// no average price.
func AveragePrice(currentSize, currentAveragePrice, sizeDelta, entryPrice decimal.Decimal) decimal.Decimal {
	if currentSize.IsZero() {
		return entryPrice
	}

	newSize := currentSize.Add(sizeDelta)
	if newSize.IsZero() {
		return decimal.Zero
	}

	totalValue := currentSize.Mul(currentAveragePrice).Add(sizeDelta.Mul(entryPrice))
	return precision.Quo(totalValue, newSize)
}

// ValidateParams checks that collateral and size are positive and that
// leverage does not exceed maxLeverageBps.
func ValidateParams(collateral, size decimal.Decimal, maxLeverageBps int64) error {
	if !collateral.IsPositive() {
		return ErrNonPositiveCollateral
	}
	if !size.IsPositive() {
		return ErrNonPositiveSize
	}
	if LeverageBps(size, collateral).GreaterThan(precision.Int(maxLeverageBps)) {
		return ErrLeverageExceeded
	}
	return nil
}
