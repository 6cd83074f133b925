// Package model defines the vault and position snapshots shared across the
// engine. All monetary values use shopspring/decimal at integer scale,
// never float64 for money.
package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeAvailableLiquidity marks a corrupted vault snapshot whose
	// reservations exceed its liquidity.
	ErrNegativeAvailableLiquidity = errors.New("model: reserved amounts exceed total liquidity")

	// ErrLiquidityWithoutSupply marks a snapshot holding liquidity while no
	// GLP is outstanding; supply is zero only before the first deposit.
	ErrLiquidityWithoutSupply = errors.New("model: liquidity held with zero glp supply")
)

// PositionRecord is one leveraged position as decoded from the ledger.
// While open: collateral > 0, size > 0 and average price > 0.
type PositionRecord struct {
	Account           string          `json:"account"`
	IndexToken        AssetClass      `json:"index_token"`
	Collateral        decimal.Decimal `json:"collateral"`
	Size              decimal.Decimal `json:"size"`
	AveragePrice      decimal.Decimal `json:"average_price"`
	EntryFundingRate  decimal.Decimal `json:"entry_funding_rate"`
	Side              Side            `json:"side"`
	LastIncreasedTime int64           `json:"last_increased_time"` // unix seconds
}

// Key returns the position's identity.
func (p PositionRecord) Key() PositionKey {
	return PositionKey{Account: p.Account, IndexToken: p.IndexToken, Side: p.Side}
}

// IsOpen reports whether the position carries any size.
func (p PositionRecord) IsOpen() bool {
	return p.Size.IsPositive()
}

// VaultState is the pool-wide state of the vault.
type VaultState struct {
	VaultNFT          AssetClass      `json:"vault_nft"`
	Admin             string          `json:"admin"`
	TotalLiquidity    decimal.Decimal `json:"total_liquidity"`
	GLPSupply         decimal.Decimal `json:"glp_supply"`
	MintBurnFeeBps    int64           `json:"mint_burn_fee_bps"`
	MarginFeeBps      int64           `json:"margin_fee_bps"`
	LiquidationFeeUSD decimal.Decimal `json:"liquidation_fee_usd"`
	MaxLeverageBps    int64           `json:"max_leverage_bps"`
	WhitelistedTokens []AssetClass    `json:"whitelisted_tokens"`

	ReservedAmounts            Amounts         `json:"reserved_amounts"`
	OpenInterestLong           Amounts         `json:"open_interest_long"`
	OpenInterestShort          Amounts         `json:"open_interest_short"`
	GuaranteedUSD              Amounts         `json:"guaranteed_usd"`
	MaxUtilizationBps          TokenMap[int64] `json:"max_utilization_bps"`
	CumulativeFundingRateLong  Amounts         `json:"cumulative_funding_rate_long"`
	CumulativeFundingRateShort Amounts         `json:"cumulative_funding_rate_short"`
	LastFundingTimes           TokenMap[int64] `json:"last_funding_times"`
}

// Clone returns a deep copy so a proposed next state never aliases the
// snapshot it was derived from.
func (v VaultState) Clone() VaultState {
	out := v
	out.WhitelistedTokens = append([]AssetClass(nil), v.WhitelistedTokens...)
	out.ReservedAmounts = v.ReservedAmounts.Clone()
	out.OpenInterestLong = v.OpenInterestLong.Clone()
	out.OpenInterestShort = v.OpenInterestShort.Clone()
	out.GuaranteedUSD = v.GuaranteedUSD.Clone()
	out.MaxUtilizationBps = v.MaxUtilizationBps.Clone()
	out.CumulativeFundingRateLong = v.CumulativeFundingRateLong.Clone()
	out.CumulativeFundingRateShort = v.CumulativeFundingRateShort.Clone()
	out.LastFundingTimes = v.LastFundingTimes.Clone()
	return out
}

// IsWhitelisted reports whether positions may be opened on token.
func (v VaultState) IsWhitelisted(token AssetClass) bool {
	for _, t := range v.WhitelistedTokens {
		if t == token {
			return true
		}
	}
	return false
}

// TotalReserved sums reserved amounts across tokens.
func (v VaultState) TotalReserved() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range v.ReservedAmounts {
		total = total.Add(amt)
	}
	return total
}

// CumulativeFundingRate returns the side's running funding rate for token.
func (v VaultState) CumulativeFundingRate(token AssetClass, side Side) decimal.Decimal {
	if side.IsLong() {
		return v.CumulativeFundingRateLong.Get(token)
	}
	return v.CumulativeFundingRateShort.Get(token)
}

// OpenInterest returns the side's open interest for token.
func (v VaultState) OpenInterest(token AssetClass, side Side) decimal.Decimal {
	if side.IsLong() {
		return v.OpenInterestLong.Get(token)
	}
	return v.OpenInterestShort.Get(token)
}

// Validate checks the snapshot invariants.
func (v VaultState) Validate() error {
	if v.TotalLiquidity.LessThan(v.TotalReserved()) {
		return fmt.Errorf("%w: liquidity %s, reserved %s",
			ErrNegativeAvailableLiquidity, v.TotalLiquidity, v.TotalReserved())
	}
	if v.GLPSupply.IsZero() && !v.TotalLiquidity.IsZero() {
		return fmt.Errorf("%w: liquidity %s", ErrLiquidityWithoutSupply, v.TotalLiquidity)
	}
	return nil
}

// PriceData is one oracle price. Confidence and staleness are the oracle's
// concern; the engine trusts the value as given.
type PriceData struct {
	Token         AssetClass      `json:"token"`
	Price         decimal.Decimal `json:"price"` // 8 decimals
	Timestamp     int64           `json:"timestamp"`
	ConfidenceBps int64           `json:"confidence_bps"`
}

// VaultSnapshot is a vault state together with the ledger output it was
// decoded from. A plan is only valid against that output.
type VaultSnapshot struct {
	Ref   string     `json:"ref"` // txHash#index
	State VaultState `json:"state"`
}

// PositionSnapshot is a position together with its ledger output.
type PositionSnapshot struct {
	Ref    string         `json:"ref"`
	Record PositionRecord `json:"record"`
}
