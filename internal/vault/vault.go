// Package vault proposes the next vault and position state for each vault
// action. It never commits anything: a plan is handed to whoever assembles
// and submits the transaction, and is only valid against the snapshot refs
// it was built from.
package vault

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/fees"
	"github.com/hydrox/vault-engine/internal/funding"
	"github.com/hydrox/vault-engine/internal/glp"
	"github.com/hydrox/vault-engine/internal/liquidation"
	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/precision"
)

var (
	ErrUtilizationExceeded   = errors.New("vault: reservation exceeds max utilization")
	ErrTokenNotWhitelisted   = errors.New("vault: token is not whitelisted")
	ErrInsufficientLiquidity = errors.New("vault: insufficient available liquidity")
	ErrInvalidDelta          = errors.New("vault: invalid collateral or size delta")
	ErrInvalidSide           = errors.New("vault: side must be LONG or SHORT")
	ErrInvalidPrice          = errors.New("vault: price must be positive")
	ErrPositionNotFound      = errors.New("vault: position not found")
	ErrPositionMismatch      = errors.New("vault: position snapshot does not match action")
)

// Config holds planner settings. It is passed explicitly; the planner keeps
// no other state.
type Config struct {
	// FundingRateFactor scales the hourly funding rate (100 = 0.01%/h).
	FundingRateFactor int64

	// MaxAttempts bounds Execute's fetch/plan/submit cycles.
	MaxAttempts uint

	// RetryDelay is the pause between cycles after a conflict.
	RetryDelay time.Duration
}

// DefaultConfig returns the contract defaults.
func DefaultConfig() Config {
	return Config{
		FundingRateFactor: precision.DefaultFundingRateFactor,
		MaxAttempts:       5,
		RetryDelay:        200 * time.Millisecond,
	}
}

// Snapshot is everything a plan is computed from.
type Snapshot struct {
	Vault    model.VaultSnapshot
	Position *model.PositionSnapshot // nil when the account has no position
	Price    decimal.Decimal         // oracle price of the targeted token
	Now      int64                   // unix seconds, supplied by the caller
}

// Plan is the proposed outcome of one action.
type Plan struct {
	Action      model.Action `json:"action"`
	VaultRef    string       `json:"vault_ref"`
	PositionRef string       `json:"position_ref,omitempty"`

	Vault       model.VaultState      `json:"vault"`
	PositionKey *model.PositionKey    `json:"position_key,omitempty"`
	Position    *model.PositionRecord `json:"position,omitempty"` // nil once closed
	Closed      bool                  `json:"closed,omitempty"`

	Liquidity   *glp.Quote          `json:"liquidity,omitempty"`
	OpenFees    *fees.OpenFees      `json:"open_fees,omitempty"`
	CloseFees   *fees.CloseFees     `json:"close_fees,omitempty"`
	Funding     *funding.Accrual    `json:"funding,omitempty"`
	Liquidation *liquidation.Payout `json:"liquidation,omitempty"`

	// FundingSettled is outstanding funding charged when increasing an
	// existing position.
	FundingSettled decimal.Decimal `json:"funding_settled"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	// Payout is what the account receives on a decrease or redeem.
	Payout decimal.Decimal `json:"payout"`
	// BadDebt is the loss beyond collateral absorbed by the pool.
	BadDebt decimal.Decimal `json:"bad_debt"`

	Leverage         decimal.Decimal `json:"leverage"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
}

// Planner computes plans.
type Planner struct {
	cfg Config
}

// NewPlanner creates a planner. Zero config fields fall back to defaults.
func NewPlanner(cfg Config) *Planner {
	def := DefaultConfig()
	if cfg.FundingRateFactor == 0 {
		cfg.FundingRateFactor = def.FundingRateFactor
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &Planner{cfg: cfg}
}

// Config returns the planner's configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// Plan proposes the next state for r against s. A snapshot that violates
// the vault invariants is refused before any action runs.
func (p *Planner) Plan(s Snapshot, r model.Redeemer) (*Plan, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil redeemer", model.ErrUnknownAction)
	}
	if err := s.Vault.State.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", r.Action(), err)
	}

	var (
		plan *Plan
		err  error
	)
	switch r := r.(type) {
	case model.AddLiquidity:
		plan, err = addLiquidity(s, r)
	case model.RemoveLiquidity:
		plan, err = removeLiquidity(s, r)
	case model.IncreasePosition:
		plan, err = increasePosition(s, r)
	case model.DecreasePosition:
		plan, err = decreasePosition(s, r)
	case model.LiquidatePosition:
		plan, err = liquidatePosition(s, r)
	case model.UpdateFees:
		plan, err = updateFees(s, r)
	case model.UpdateFundingRate:
		plan, err = p.updateFundingRate(s, r)
	default:
		return nil, fmt.Errorf("%w: %T", model.ErrUnknownAction, r)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Action(), err)
	}
	return plan, nil
}

func newPlan(s Snapshot, action model.Action, next model.VaultState) *Plan {
	return &Plan{
		Action:           action,
		VaultRef:         s.Vault.Ref,
		Vault:            next,
		FundingSettled:   decimal.Zero,
		RealizedPnL:      decimal.Zero,
		Payout:           decimal.Zero,
		BadDebt:          decimal.Zero,
		Leverage:         decimal.Zero,
		LiquidationPrice: decimal.Zero,
	}
}

// CheckUtilization rejects a reservation that would lift token's
// utilization above its configured maximum. A token without a configured
// maximum has a limit of zero, so any reservation of a whole basis point or
// more is rejected; utilization truncates, and a sub-basis-point reservation
// still reads as 0 and passes. Reservations that do not grow are allowed.
func CheckUtilization(v model.VaultState, token model.AssetClass, additionalReserve decimal.Decimal) error {
	if !additionalReserve.IsPositive() {
		return nil
	}

	newReserved := v.ReservedAmounts.Get(token).Add(additionalReserve)
	utilization := glp.UtilizationBps(newReserved, v.TotalLiquidity)
	limit := precision.Int(v.MaxUtilizationBps.Get(token))

	if utilization.GreaterThan(limit) {
		return fmt.Errorf("%w: %s utilization %sbps > max %sbps",
			ErrUtilizationExceeded, token, utilization, limit)
	}
	return nil
}

// checkLiquidity enforces total liquidity >= sum of reservations on a
// proposed state.
func checkLiquidity(v model.VaultState) error {
	available := glp.AvailableLiquidity(v.TotalLiquidity, model.Values(v.ReservedAmounts))
	if available.IsNegative() {
		return fmt.Errorf("%w: short by %s", ErrInsufficientLiquidity, available.Neg())
	}
	return nil
}
