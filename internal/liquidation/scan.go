package liquidation

import (
	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/model"
)

// Candidate is a position found liquidatable by Scan.
type Candidate struct {
	Ref        string            `json:"ref"`
	Key        model.PositionKey `json:"key"`
	Price      decimal.Decimal   `json:"price"`
	Assessment Assessment        `json:"assessment"`
	Payout     Payout            `json:"payout"`
}

// ScanResult partitions a set of positions by liquidation status.
type ScanResult struct {
	Liquidatable []Candidate         `json:"liquidatable"`
	Healthy      int                 `json:"healthy"`
	Unpriced     []model.PositionKey `json:"unpriced"` // no oracle price for the index token
}

// Scan assesses every open position against prices using the vault's fee
// schedule and funding rates.
func Scan(v model.VaultState, positions []model.PositionSnapshot, prices map[model.AssetClass]decimal.Decimal) ScanResult {
	res := ScanResult{Liquidatable: []Candidate{}, Unpriced: []model.PositionKey{}}
	for _, snap := range positions {
		p := snap.Record
		if !p.IsOpen() {
			continue
		}
		price, ok := prices[p.IndexToken]
		if !ok || !price.IsPositive() {
			res.Unpriced = append(res.Unpriced, p.Key())
			continue
		}

		rate := v.CumulativeFundingRate(p.IndexToken, p.Side)
		a := Assess(p, price, rate, v.MarginFeeBps, v.LiquidationFeeUSD)
		if a.Status != Liquidatable {
			res.Healthy++
			continue
		}
		res.Liquidatable = append(res.Liquidatable, Candidate{
			Ref:        snap.Ref,
			Key:        p.Key(),
			Price:      price,
			Assessment: a,
			Payout:     ComputePayout(p, price, rate, v.MarginFeeBps, v.LiquidationFeeUSD),
		})
	}
	return res
}
