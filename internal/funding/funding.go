// Package funding accrues funding rates from open-interest imbalance and
// settles the funding owed by individual positions.
//
// Longs and shorts are counterparties: when open interest leans long, the
// long cumulative rate rises and the short cumulative rate falls by the same
// delta. A position's funding fee is its size times the change in its side's
// cumulative rate since entry.
package funding

import (
	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/precision"
)

// Accrual is the result of one funding update for a token.
type Accrual struct {
	Token           model.AssetClass `json:"token"`
	ElapsedHours    int64            `json:"elapsed_hours"`
	Delta           decimal.Decimal  `json:"delta"`
	CumulativeLong  decimal.Decimal  `json:"cumulative_long"`
	CumulativeShort decimal.Decimal  `json:"cumulative_short"`
	LastFundingTime int64            `json:"last_funding_time"`
}

// Rate computes the funding-rate delta for elapsedHours whole hours:
//
//	ratio = (oiLong - oiShort) * 10^6 / totalLiquidity
//	rate  = ratio * factor * elapsedHours / 10^6
//
// Returns zero when totalLiquidity is zero.
func Rate(oiLong, oiShort, totalLiquidity decimal.Decimal, factor, elapsedHours int64) decimal.Decimal {
	if totalLiquidity.IsZero() {
		return decimal.Zero
	}
	imbalance := oiLong.Sub(oiShort)
	ratio := precision.MulDiv(imbalance, precision.FundingRatePrecision, totalLiquidity)
	scaled := ratio.Mul(precision.Int(factor)).Mul(precision.Int(elapsedHours))
	return precision.Quo(scaled, precision.FundingRatePrecision)
}

// ElapsedHours returns the whole hours between lastUpdate and now (unix
// seconds). Partial hours are dropped so a sub-hour interval never accrues;
// a clock that runs backwards yields zero.
func ElapsedHours(lastUpdate, now int64) int64 {
	if now <= lastUpdate {
		return 0
	}
	return (now - lastUpdate) / precision.SecondsPerHour
}

// Fee returns the funding owed by a position since entry:
//
//	size * (currentRate - entryRate) / 10^6
//
// Negative when the position receives funding.
func Fee(positionSize, entryRate, currentRate decimal.Decimal) decimal.Decimal {
	return precision.MulDiv(positionSize, currentRate.Sub(entryRate), precision.FundingRatePrecision)
}

// UpdateCumulativeRate applies delta to one side's cumulative rate: the long
// rate adds it, the short rate subtracts it.
func UpdateCumulativeRate(current, delta decimal.Decimal, isLong bool) decimal.Decimal {
	if isLong {
		return current.Add(delta)
	}
	return current.Sub(delta)
}

// Accrue computes the funding update for token at now.
//
// The last funding time advances by whole hours only, so the sub-hour
// remainder is carried into the next update. A token with no recorded
// funding time starts its clock at now without accruing.
func Accrue(v model.VaultState, token model.AssetClass, factor, now int64) Accrual {
	acc := Accrual{
		Token:           token,
		Delta:           decimal.Zero,
		CumulativeLong:  v.CumulativeFundingRateLong.Get(token),
		CumulativeShort: v.CumulativeFundingRateShort.Get(token),
	}

	last, ok := v.LastFundingTimes[token]
	if !ok {
		acc.LastFundingTime = now
		return acc
	}

	acc.ElapsedHours = ElapsedHours(last, now)
	acc.LastFundingTime = last
	if acc.ElapsedHours == 0 {
		return acc
	}

	acc.Delta = Rate(
		v.OpenInterestLong.Get(token),
		v.OpenInterestShort.Get(token),
		v.TotalLiquidity,
		factor,
		acc.ElapsedHours,
	)
	acc.CumulativeLong = UpdateCumulativeRate(acc.CumulativeLong, acc.Delta, true)
	acc.CumulativeShort = UpdateCumulativeRate(acc.CumulativeShort, acc.Delta, false)
	acc.LastFundingTime = last + acc.ElapsedHours*precision.SecondsPerHour
	return acc
}

// Apply writes an accrual into a copy of v.
func Apply(v model.VaultState, acc Accrual) model.VaultState {
	next := v.Clone()
	next.CumulativeFundingRateLong[acc.Token] = acc.CumulativeLong
	next.CumulativeFundingRateShort[acc.Token] = acc.CumulativeShort
	next.LastFundingTimes[acc.Token] = acc.LastFundingTime
	return next
}
