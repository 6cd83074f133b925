package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnknownAction is returned for a redeemer variant a consumer does not handle.
var ErrUnknownAction = errors.New("model: unknown vault action")

// Action tags a vault redeemer.
type Action string

const (
	ActionAddLiquidity      Action = "add_liquidity"
	ActionRemoveLiquidity   Action = "remove_liquidity"
	ActionIncreasePosition  Action = "increase_position"
	ActionDecreasePosition  Action = "decrease_position"
	ActionLiquidatePosition Action = "liquidate_position"
	ActionUpdateFees        Action = "update_fees"
	ActionUpdateFundingRate Action = "update_funding_rate"
)

// Redeemer is one vault action. The set of variants is closed; consumers
// switch over the concrete types below.
type Redeemer interface {
	Action() Action
	redeemer()
}

// AddLiquidity deposits stablecoin for GLP.
type AddLiquidity struct {
	Amount decimal.Decimal `json:"amount"`
}

// RemoveLiquidity burns GLP for stablecoin.
type RemoveLiquidity struct {
	GLPAmount decimal.Decimal `json:"glp_amount"`
}

// IncreasePosition opens a position or adds collateral and size to one.
type IncreasePosition struct {
	Account         string          `json:"account"`
	IndexToken      AssetClass      `json:"index_token"`
	CollateralDelta decimal.Decimal `json:"collateral_delta"`
	SizeDelta       decimal.Decimal `json:"size_delta"`
	Side            Side            `json:"side"`
}

// DecreasePosition withdraws collateral and/or closes size.
type DecreasePosition struct {
	Account         string          `json:"account"`
	IndexToken      AssetClass      `json:"index_token"`
	CollateralDelta decimal.Decimal `json:"collateral_delta"`
	SizeDelta       decimal.Decimal `json:"size_delta"`
	Side            Side            `json:"side"`
}

// LiquidatePosition liquidates an under-collateralised position.
type LiquidatePosition struct {
	Account    string     `json:"account"`
	IndexToken AssetClass `json:"index_token"`
	Side       Side       `json:"side"`
}

// UpdateFees is the admin action replacing the fee schedule.
type UpdateFees struct {
	MintBurnFeeBps    int64           `json:"mint_burn_fee_bps"`
	MarginFeeBps      int64           `json:"margin_fee_bps"`
	LiquidationFeeUSD decimal.Decimal `json:"liquidation_fee_usd"`
}

// UpdateFundingRate accrues funding for one token.
type UpdateFundingRate struct {
	Token AssetClass `json:"token"`
}

func (AddLiquidity) Action() Action      { return ActionAddLiquidity }
func (RemoveLiquidity) Action() Action   { return ActionRemoveLiquidity }
func (IncreasePosition) Action() Action  { return ActionIncreasePosition }
func (DecreasePosition) Action() Action  { return ActionDecreasePosition }
func (LiquidatePosition) Action() Action { return ActionLiquidatePosition }
func (UpdateFees) Action() Action        { return ActionUpdateFees }
func (UpdateFundingRate) Action() Action { return ActionUpdateFundingRate }

func (AddLiquidity) redeemer()      {}
func (RemoveLiquidity) redeemer()   {}
func (IncreasePosition) redeemer()  {}
func (DecreasePosition) redeemer()  {}
func (LiquidatePosition) redeemer() {}
func (UpdateFees) redeemer()        {}
func (UpdateFundingRate) redeemer() {}

// Key returns the position the action targets.
func (r IncreasePosition) Key() PositionKey {
	return PositionKey{Account: r.Account, IndexToken: r.IndexToken, Side: r.Side}
}

// Key returns the position the action targets.
func (r DecreasePosition) Key() PositionKey {
	return PositionKey{Account: r.Account, IndexToken: r.IndexToken, Side: r.Side}
}

// Key returns the position the action targets.
func (r LiquidatePosition) Key() PositionKey {
	return PositionKey{Account: r.Account, IndexToken: r.IndexToken, Side: r.Side}
}

// TargetPosition returns the position a redeemer acts on, if any.
func TargetPosition(r Redeemer) (PositionKey, bool) {
	switch r := r.(type) {
	case IncreasePosition:
		return r.Key(), true
	case DecreasePosition:
		return r.Key(), true
	case LiquidatePosition:
		return r.Key(), true
	default:
		return PositionKey{}, false
	}
}
