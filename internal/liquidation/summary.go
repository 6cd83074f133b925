package liquidation

import (
	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/position"
	"github.com/hydrox/vault-engine/internal/precision"
)

// Summary is the user-facing valuation of one position.
type Summary struct {
	Key              model.PositionKey `json:"key"`
	CurrentPrice     decimal.Decimal   `json:"current_price"`
	PnL              decimal.Decimal   `json:"pnl"`
	PnLBps           decimal.Decimal   `json:"pnl_bps"` // of collateral
	MarginFee        decimal.Decimal   `json:"margin_fee"`
	FundingFee       decimal.Decimal   `json:"funding_fee"`
	NetPnL           decimal.Decimal   `json:"net_pnl"` // pnl less closing fees
	Leverage         decimal.Decimal   `json:"leverage"`
	LiquidationPrice decimal.Decimal   `json:"liquidation_price"`
	Status           Status            `json:"status"`
}

// Summarize values p for display: PnL, closing fees, leverage, the
// estimated liquidation price and the liquidation status.
func Summarize(p model.PositionRecord, currentPrice, currentFundingRate decimal.Decimal,
	marginFeeBps int64, liquidationFeeUSD decimal.Decimal,
) Summary {
	a := Assess(p, currentPrice, currentFundingRate, marginFeeBps, liquidationFeeUSD)

	pnlBps := decimal.Zero
	if !p.Collateral.IsZero() {
		pnlBps = precision.MulDiv(a.PnL, precision.BasisPointsDivisor, p.Collateral)
	}

	return Summary{
		Key:              p.Key(),
		CurrentPrice:     currentPrice,
		PnL:              a.PnL,
		PnLBps:           pnlBps,
		MarginFee:        a.MarginFee,
		FundingFee:       a.FundingFee,
		NetPnL:           a.PnL.Sub(a.MarginFee).Sub(a.FundingFee),
		Leverage:         position.Leverage(p.Size, p.Collateral),
		LiquidationPrice: position.LiquidationPrice(p, marginFeeBps, liquidationFeeUSD),
		Status:           a.Status,
	}
}
