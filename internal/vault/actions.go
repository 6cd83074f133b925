package vault

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/fees"
	"github.com/hydrox/vault-engine/internal/funding"
	"github.com/hydrox/vault-engine/internal/glp"
	"github.com/hydrox/vault-engine/internal/liquidation"
	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/position"
	"github.com/hydrox/vault-engine/internal/precision"
)

func addLiquidity(s Snapshot, r model.AddLiquidity) (*Plan, error) {
	v := s.Vault.State
	q, err := glp.MintQuote(r.Amount, v.TotalLiquidity, v.GLPSupply, v.MintBurnFeeBps)
	if err != nil {
		return nil, err
	}

	next := v.Clone()
	next.TotalLiquidity = next.TotalLiquidity.Add(r.Amount)
	next.GLPSupply = next.GLPSupply.Add(q.Net)

	plan := newPlan(s, r.Action(), next)
	plan.Liquidity = &q
	return plan, nil
}

func removeLiquidity(s Snapshot, r model.RemoveLiquidity) (*Plan, error) {
	v := s.Vault.State
	q, err := glp.RedeemQuote(r.GLPAmount, v.TotalLiquidity, v.GLPSupply, v.MintBurnFeeBps)
	if err != nil {
		return nil, err
	}

	next := v.Clone()
	next.TotalLiquidity = next.TotalLiquidity.Sub(q.Net)
	next.GLPSupply = next.GLPSupply.Sub(r.GLPAmount)
	if err := checkLiquidity(next); err != nil {
		return nil, err
	}

	plan := newPlan(s, r.Action(), next)
	plan.Liquidity = &q
	plan.Payout = q.Net
	return plan, nil
}

func increasePosition(s Snapshot, r model.IncreasePosition) (*Plan, error) {
	v := s.Vault.State
	key := r.Key()

	if !r.Side.Valid() {
		return nil, ErrInvalidSide
	}
	if !v.IsWhitelisted(r.IndexToken) {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotWhitelisted, r.IndexToken)
	}
	if r.CollateralDelta.IsNegative() || r.SizeDelta.IsNegative() ||
		(r.CollateralDelta.IsZero() && r.SizeDelta.IsZero()) {
		return nil, ErrInvalidDelta
	}
	if !s.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	current := model.PositionRecord{
		Account:          key.Account,
		IndexToken:       key.IndexToken,
		Side:             key.Side,
		Collateral:       decimal.Zero,
		Size:             decimal.Zero,
		AveragePrice:     decimal.Zero,
		EntryFundingRate: decimal.Zero,
	}
	ref := ""
	if s.Position != nil {
		if s.Position.Record.Key() != key {
			return nil, fmt.Errorf("%w: have %s, want %s", ErrPositionMismatch, s.Position.Record.Key(), key)
		}
		current = s.Position.Record
		ref = s.Position.Ref
	}

	currentRate := v.CumulativeFundingRate(key.IndexToken, key.Side)
	settled := decimal.Zero
	if current.IsOpen() {
		settled = funding.Fee(current.Size, current.EntryFundingRate, currentRate)
	}
	open := fees.OpenPositionFees(r.SizeDelta, v.MarginFeeBps)
	totalFees := open.TotalFees.Add(settled)

	pos := current
	pos.AveragePrice = position.AveragePrice(current.Size, current.AveragePrice, r.SizeDelta, s.Price)
	pos.Size = current.Size.Add(r.SizeDelta)
	pos.Collateral = current.Collateral.Add(r.CollateralDelta)
	pos.EntryFundingRate = currentRate
	pos.LastIncreasedTime = s.Now
	if err := position.ValidateParams(pos.Collateral, pos.Size, v.MaxLeverageBps); err != nil {
		return nil, err
	}

	if err := CheckUtilization(v, key.IndexToken, r.CollateralDelta); err != nil {
		return nil, err
	}

	next := v.Clone()
	next.ReservedAmounts[key.IndexToken] = v.ReservedAmounts.Get(key.IndexToken).Add(r.CollateralDelta)
	addOpenInterest(&next, key, r.SizeDelta)
	next.TotalLiquidity = next.TotalLiquidity.Add(totalFees)
	if err := checkLiquidity(next); err != nil {
		return nil, err
	}

	plan := newPlan(s, r.Action(), next)
	plan.PositionRef = ref
	plan.PositionKey = &key
	plan.Position = &pos
	plan.OpenFees = &open
	plan.FundingSettled = settled
	plan.Leverage = position.Leverage(pos.Size, pos.Collateral)
	plan.LiquidationPrice = position.LiquidationPrice(pos, v.MarginFeeBps, v.LiquidationFeeUSD)
	return plan, nil
}

func decreasePosition(s Snapshot, r model.DecreasePosition) (*Plan, error) {
	v := s.Vault.State
	key := r.Key()

	current, err := openPosition(s, key)
	if err != nil {
		return nil, err
	}
	if r.CollateralDelta.IsNegative() || r.SizeDelta.IsNegative() ||
		(r.CollateralDelta.IsZero() && r.SizeDelta.IsZero()) ||
		r.SizeDelta.GreaterThan(current.Size) || r.CollateralDelta.GreaterThan(current.Collateral) {
		return nil, ErrInvalidDelta
	}
	if !s.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	currentRate := v.CumulativeFundingRate(key.IndexToken, key.Side)
	fundingFee := funding.Fee(current.Size, current.EntryFundingRate, currentRate)
	closeFees := fees.ClosePositionFees(r.SizeDelta, v.MarginFeeBps, fundingFee)
	realized := precision.MulDiv(position.PnL(current, s.Price), r.SizeDelta, current.Size)

	closed := r.SizeDelta.Equal(current.Size)
	released := r.CollateralDelta
	if closed {
		released = current.Collateral
	}
	remaining := current.Collateral.Sub(released)

	// A shortfall is covered from the collateral that stays in the
	// position; beyond that the pool absorbs it.
	payout := released.Add(realized).Sub(closeFees.TotalFees)
	badDebt := decimal.Zero
	if payout.IsNegative() {
		shortfall := payout.Neg()
		taken := precision.Min(shortfall, remaining)
		remaining = remaining.Sub(taken)
		released = released.Add(taken)
		badDebt = shortfall.Sub(taken)
		payout = decimal.Zero
	}

	next := v.Clone()
	next.ReservedAmounts[key.IndexToken] = precision.NonNegative(v.ReservedAmounts.Get(key.IndexToken).Sub(released))
	addOpenInterest(&next, key, r.SizeDelta.Neg())
	next.TotalLiquidity = next.TotalLiquidity.Add(released).Sub(payout)

	plan := newPlan(s, r.Action(), next)
	plan.PositionRef = s.Position.Ref
	plan.PositionKey = &key
	plan.CloseFees = &closeFees
	plan.RealizedPnL = realized
	plan.Payout = payout
	plan.BadDebt = badDebt

	if closed {
		plan.Closed = true
	} else {
		pos := current
		pos.Size = current.Size.Sub(r.SizeDelta)
		pos.Collateral = remaining
		pos.EntryFundingRate = currentRate
		if err := position.ValidateParams(pos.Collateral, pos.Size, v.MaxLeverageBps); err != nil {
			return nil, err
		}
		plan.Position = &pos
		plan.Leverage = position.Leverage(pos.Size, pos.Collateral)
		plan.LiquidationPrice = position.LiquidationPrice(pos, v.MarginFeeBps, v.LiquidationFeeUSD)
	}

	if err := checkLiquidity(next); err != nil {
		return nil, err
	}
	return plan, nil
}

func liquidatePosition(s Snapshot, r model.LiquidatePosition) (*Plan, error) {
	v := s.Vault.State
	key := r.Key()

	current, err := openPosition(s, key)
	if err != nil {
		return nil, err
	}
	if !s.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	currentRate := v.CumulativeFundingRate(key.IndexToken, key.Side)
	if err := liquidation.Validate(current, s.Price, currentRate, v.MarginFeeBps, v.LiquidationFeeUSD); err != nil {
		return nil, err
	}
	payout := liquidation.ComputePayout(current, s.Price, currentRate, v.MarginFeeBps, v.LiquidationFeeUSD)

	next := v.Clone()
	next.ReservedAmounts[key.IndexToken] = precision.NonNegative(v.ReservedAmounts.Get(key.IndexToken).Sub(current.Collateral))
	addOpenInterest(&next, key, current.Size.Neg())
	next.TotalLiquidity = next.TotalLiquidity.Add(current.Collateral).Sub(payout.LiquidatorFee)
	if err := checkLiquidity(next); err != nil {
		return nil, err
	}

	plan := newPlan(s, r.Action(), next)
	plan.PositionRef = s.Position.Ref
	plan.PositionKey = &key
	plan.Closed = true
	plan.Liquidation = &payout
	plan.Payout = payout.LiquidatorFee
	plan.BadDebt = payout.TotalLoss
	return plan, nil
}

func updateFees(s Snapshot, r model.UpdateFees) (*Plan, error) {
	if err := fees.ValidateFeeBps(r.MintBurnFeeBps); err != nil {
		return nil, fmt.Errorf("mint/burn fee: %w", err)
	}
	if err := fees.ValidateFeeBps(r.MarginFeeBps); err != nil {
		return nil, fmt.Errorf("margin fee: %w", err)
	}
	if err := fees.ValidateLiquidationFee(r.LiquidationFeeUSD); err != nil {
		return nil, fmt.Errorf("liquidation fee: %w", err)
	}

	next := s.Vault.State.Clone()
	next.MintBurnFeeBps = r.MintBurnFeeBps
	next.MarginFeeBps = r.MarginFeeBps
	next.LiquidationFeeUSD = r.LiquidationFeeUSD
	return newPlan(s, r.Action(), next), nil
}

func (p *Planner) updateFundingRate(s Snapshot, r model.UpdateFundingRate) (*Plan, error) {
	acc := funding.Accrue(s.Vault.State, r.Token, p.cfg.FundingRateFactor, s.Now)
	plan := newPlan(s, r.Action(), funding.Apply(s.Vault.State, acc))
	plan.Funding = &acc
	return plan, nil
}

// openPosition returns the snapshot's position after checking it is the
// one key names and still open.
func openPosition(s Snapshot, key model.PositionKey) (model.PositionRecord, error) {
	if s.Position == nil || !s.Position.Record.IsOpen() {
		return model.PositionRecord{}, fmt.Errorf("%w: %s", ErrPositionNotFound, key)
	}
	if s.Position.Record.Key() != key {
		return model.PositionRecord{}, fmt.Errorf("%w: have %s, want %s", ErrPositionMismatch, s.Position.Record.Key(), key)
	}
	return s.Position.Record, nil
}

func addOpenInterest(v *model.VaultState, key model.PositionKey, delta decimal.Decimal) {
	oi := precision.NonNegative(v.OpenInterest(key.IndexToken, key.Side).Add(delta))
	if key.Side.IsLong() {
		v.OpenInterestLong[key.IndexToken] = oi
		return
	}
	v.OpenInterestShort[key.IndexToken] = oi
}
