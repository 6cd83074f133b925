// Package glp prices minting and burning of the pool's liquidity token and
// accounts for pool utilization.
//
// Mint and burn fees are taken out of the amount the caller receives, so
// the fee dilutes the minter or redeemer and stays in the pool.
package glp

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/precision"
)

var (
	// ErrInvalidAmount is returned when a mint or redeem amount is not positive.
	ErrInvalidAmount = errors.New("glp: amount must be positive")

	// ErrExceedsSupply is returned when redeeming more GLP than is outstanding.
	ErrExceedsSupply = errors.New("glp: amount exceeds supply")

	// ErrEmptySupply is returned when redeeming against zero supply.
	ErrEmptySupply = errors.New("glp: supply is zero")
)

// Quote splits a mint or redeem into gross amount, fee and net amount.
// Net is what Mint or Redeem returns.
type Quote struct {
	Gross decimal.Decimal `json:"gross"`
	Fee   decimal.Decimal `json:"fee"`
	Net   decimal.Decimal `json:"net"`
}

func withFee(gross decimal.Decimal, feeBps int64) Quote {
	fee := precision.ApplyBps(gross, feeBps)
	return Quote{Gross: gross, Fee: fee, Net: gross.Sub(fee)}
}

// MintQuote prices a stablecoin deposit in GLP. An empty pool mints 1:1;
// otherwise the deposit buys its proportional share of the pool.
func MintQuote(stablecoinAmount, totalLiquidity, glpSupply decimal.Decimal, mintFeeBps int64) (Quote, error) {
	if !stablecoinAmount.IsPositive() {
		return Quote{}, ErrInvalidAmount
	}

	var gross decimal.Decimal
	if totalLiquidity.IsZero() || glpSupply.IsZero() {
		gross = stablecoinAmount
	} else {
		gross = precision.MulDiv(stablecoinAmount, glpSupply, totalLiquidity)
	}
	return withFee(gross, mintFeeBps), nil
}

// Mint returns the GLP credited for a stablecoin deposit, net of fee.
func Mint(stablecoinAmount, totalLiquidity, glpSupply decimal.Decimal, mintFeeBps int64) (decimal.Decimal, error) {
	q, err := MintQuote(stablecoinAmount, totalLiquidity, glpSupply, mintFeeBps)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Net, nil
}

// RedeemQuote prices a GLP burn in stablecoin.
func RedeemQuote(glpAmount, totalLiquidity, glpSupply decimal.Decimal, burnFeeBps int64) (Quote, error) {
	if !glpAmount.IsPositive() {
		return Quote{}, ErrInvalidAmount
	}
	if glpSupply.IsZero() {
		return Quote{}, ErrEmptySupply
	}
	if glpAmount.GreaterThan(glpSupply) {
		return Quote{}, ErrExceedsSupply
	}

	gross := precision.MulDiv(glpAmount, totalLiquidity, glpSupply)
	return withFee(gross, burnFeeBps), nil
}

// Redeem returns the stablecoin paid out for burning glpAmount, net of fee.
func Redeem(glpAmount, totalLiquidity, glpSupply decimal.Decimal, burnFeeBps int64) (decimal.Decimal, error) {
	q, err := RedeemQuote(glpAmount, totalLiquidity, glpSupply, burnFeeBps)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Net, nil
}

// AvailableLiquidity is total liquidity minus all reservations. A negative
// result only comes from a corrupted snapshot.
func AvailableLiquidity(totalLiquidity decimal.Decimal, reservedAmounts []decimal.Decimal) decimal.Decimal {
	available := totalLiquidity
	for _, r := range reservedAmounts {
		available = available.Sub(r)
	}
	return available
}

// UtilizationBps is reserved / totalLiquidity in basis points, zero when the
// pool is empty.
func UtilizationBps(reserved, totalLiquidity decimal.Decimal) decimal.Decimal {
	if totalLiquidity.IsZero() {
		return decimal.Zero
	}
	return precision.MulDiv(reserved, precision.BasisPointsDivisor, totalLiquidity)
}
