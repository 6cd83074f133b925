// Package quote provides the HTTP handlers that price vault actions
// against the live snapshots: liquidity quotes, position valuations,
// liquidation scans, funding previews and full action plans.
//
// Quotes and plans never submit anything. POST /execute, mounted only when
// a submitter is configured, plans and submits under optimistic retry.
// Every response carries the vault ref it was computed from so a client can
// tell when it has gone stale.
package quote

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/funding"
	"github.com/hydrox/vault-engine/internal/glp"
	"github.com/hydrox/vault-engine/internal/liquidation"
	"github.com/hydrox/vault-engine/internal/metrics"
	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/store"
	"github.com/hydrox/vault-engine/internal/vault"
)

const maxBodyBytes = 1 << 16

// Service serves quotes from a snapshot store. It holds no state of its
// own; concurrent requests only share the store.
type Service struct {
	store     store.Store
	planner   *vault.Planner
	submitter vault.Submitter
	now       func() time.Time
}

// NewService creates a new quote service.
func NewService(st store.Store, planner *vault.Planner) *Service {
	return &Service{
		store:   st,
		planner: planner,
		now:     time.Now,
	}
}

// WithClock replaces the wall clock used for funding and plans.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithSubmitter enables POST /execute, which submits plans through sub.
func (s *Service) WithSubmitter(sub vault.Submitter) *Service {
	s.submitter = sub
	return s
}

// Routes mounts the handlers on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/vault", s.GetVault)
	r.Get("/liquidity/mint", s.MintQuote)
	r.Get("/liquidity/redeem", s.RedeemQuote)
	r.Get("/positions", s.ListPositions)
	r.Get("/positions/{positionKey}", s.GetPosition)
	r.Get("/liquidatable", s.ListLiquidatable)
	r.Get("/funding/{token}", s.FundingPreview)
	r.Post("/plan", s.Plan)
	if s.submitter != nil {
		r.Post("/execute", s.Execute)
	}
}

// --- Response types ---

// TokenOverview is the per-token slice of the vault overview.
type TokenOverview struct {
	Token                      model.AssetClass `json:"token"`
	Whitelisted                bool             `json:"whitelisted"`
	Reserved                   decimal.Decimal  `json:"reserved"`
	UtilizationBps             decimal.Decimal  `json:"utilization_bps"`
	MaxUtilizationBps          int64            `json:"max_utilization_bps"`
	UtilizationLimitSet        bool             `json:"utilization_limit_set"` // unset limits read as 0
	OpenInterestLong           decimal.Decimal  `json:"open_interest_long"`
	OpenInterestShort          decimal.Decimal  `json:"open_interest_short"`
	CumulativeFundingRateLong  decimal.Decimal  `json:"cumulative_funding_rate_long"`
	CumulativeFundingRateShort decimal.Decimal  `json:"cumulative_funding_rate_short"`
	LastFundingTime            int64            `json:"last_funding_time"`
}

// Overview is the JSON body returned from GET /vault.
type Overview struct {
	Ref                string          `json:"ref"`
	TotalLiquidity     decimal.Decimal `json:"total_liquidity"`
	GLPSupply          decimal.Decimal `json:"glp_supply"`
	TotalReserved      decimal.Decimal `json:"total_reserved"`
	AvailableLiquidity decimal.Decimal `json:"available_liquidity"`
	MintBurnFeeBps     int64           `json:"mint_burn_fee_bps"`
	MarginFeeBps       int64           `json:"margin_fee_bps"`
	LiquidationFeeUSD  decimal.Decimal `json:"liquidation_fee_usd"`
	MaxLeverageBps     int64           `json:"max_leverage_bps"`
	Tokens             []TokenOverview `json:"tokens"`
}

// LiquidityQuote is the JSON body returned from the mint and redeem quotes.
type LiquidityQuote struct {
	QuoteID  string          `json:"quote_id"`
	VaultRef string          `json:"vault_ref"`
	Amount   decimal.Decimal `json:"amount"`
	glp.Quote
}

// PositionView is one position with its valuation at the oracle price.
type PositionView struct {
	Ref      string               `json:"ref"`
	Position model.PositionRecord `json:"position"`
	Summary  liquidation.Summary  `json:"summary"`
	Payout   *liquidation.Payout  `json:"payout,omitempty"` // set when liquidatable
}

// ScanResponse is the JSON body returned from GET /liquidatable.
type ScanResponse struct {
	VaultRef string `json:"vault_ref"`
	liquidation.ScanResult
}

// FundingPreview is the JSON body returned from GET /funding/{token}.
type FundingPreview struct {
	VaultRef string `json:"vault_ref"`
	Now      int64  `json:"now"`
	funding.Accrual
}

// PlanResponse is the JSON body returned from POST /plan.
type PlanResponse struct {
	PlanID string `json:"plan_id"`
	*vault.Plan
}

// --- HTTP Handlers ---

// GetVault handles GET /api/v1/vault
func (s *Service) GetVault(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.GetVault(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewOverview(*snap))
}

// NewOverview summarizes a vault snapshot. Tokens are the whitelisted ones
// plus any that still carry a reservation, in stable order.
func NewOverview(snap model.VaultSnapshot) Overview {
	v := snap.State
	tokens := model.TokenMap[struct{}]{}
	for _, t := range v.WhitelistedTokens {
		tokens[t] = struct{}{}
	}
	for t := range v.ReservedAmounts {
		tokens[t] = struct{}{}
	}

	reserved := model.Values(v.ReservedAmounts)
	o := Overview{
		Ref:                snap.Ref,
		TotalLiquidity:     v.TotalLiquidity,
		GLPSupply:          v.GLPSupply,
		TotalReserved:      v.TotalReserved(),
		AvailableLiquidity: glp.AvailableLiquidity(v.TotalLiquidity, reserved),
		MintBurnFeeBps:     v.MintBurnFeeBps,
		MarginFeeBps:       v.MarginFeeBps,
		LiquidationFeeUSD:  v.LiquidationFeeUSD,
		MaxLeverageBps:     v.MaxLeverageBps,
		Tokens:             make([]TokenOverview, 0, len(tokens)),
	}
	for _, t := range tokens.Tokens() {
		res := v.ReservedAmounts.Get(t)
		o.Tokens = append(o.Tokens, TokenOverview{
			Token:                      t,
			Whitelisted:                v.IsWhitelisted(t),
			Reserved:                   res,
			UtilizationBps:             glp.UtilizationBps(res, v.TotalLiquidity),
			MaxUtilizationBps:          v.MaxUtilizationBps.Get(t),
			UtilizationLimitSet:        v.MaxUtilizationBps.Has(t),
			OpenInterestLong:           v.OpenInterestLong.Get(t),
			OpenInterestShort:          v.OpenInterestShort.Get(t),
			CumulativeFundingRateLong:  v.CumulativeFundingRateLong.Get(t),
			CumulativeFundingRateShort: v.CumulativeFundingRateShort.Get(t),
			LastFundingTime:            v.LastFundingTimes.Get(t),
		})
	}
	return o
}

// MintQuote handles GET /api/v1/liquidity/mint?amount=
func (s *Service) MintQuote(w http.ResponseWriter, r *http.Request) {
	s.liquidityQuote(w, r, "mint", "amount", glp.MintQuote)
}

// RedeemQuote handles GET /api/v1/liquidity/redeem?glp_amount=
func (s *Service) RedeemQuote(w http.ResponseWriter, r *http.Request) {
	s.liquidityQuote(w, r, "redeem", "glp_amount", glp.RedeemQuote)
}

type quoteFunc func(amount, totalLiquidity, glpSupply decimal.Decimal, feeBps int64) (glp.Quote, error)

func (s *Service) liquidityQuote(w http.ResponseWriter, r *http.Request, kind, param string, quote quoteFunc) {
	amount, err := parseAmount(r.URL.Query().Get(param))
	if err != nil {
		writeError(w, param+": "+err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := s.store.GetVault(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	v := snap.State

	q, err := quote(amount, v.TotalLiquidity, v.GLPSupply, v.MintBurnFeeBps)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.QuotesTotal.WithLabelValues(kind).Inc()

	writeJSON(w, http.StatusOK, LiquidityQuote{
		QuoteID:  uuid.NewString(),
		VaultRef: snap.Ref,
		Amount:   amount,
		Quote:    q,
	})
}

// ListPositions handles GET /api/v1/positions
// Returns every open position valued at its oracle price. Positions whose
// token has no price are omitted.
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := s.store.GetVault(ctx)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	positions, err := s.store.ListPositions(ctx)
	if err != nil {
		writeError(w, "failed to list positions", http.StatusInternalServerError)
		return
	}
	prices, err := s.priceMap(r)
	if err != nil {
		writeError(w, "failed to load prices", http.StatusInternalServerError)
		return
	}

	views := []PositionView{}
	for _, p := range positions {
		price, ok := prices[p.Record.IndexToken]
		if !ok || !p.Record.IsOpen() {
			continue
		}
		views = append(views, view(snap.State, p, price))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetPosition handles GET /api/v1/positions/{positionKey}
// The oracle price can be overridden with ?price= to preview a move.
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParsePositionKey(chi.URLParam(r, "positionKey"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	snap, err := s.store.GetVault(ctx)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	pos, err := s.store.GetPosition(ctx, key)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var price decimal.Decimal
	if raw := r.URL.Query().Get("price"); raw != "" {
		if price, err = parseAmount(raw); err != nil {
			writeError(w, "price: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		p, err := s.store.GetPrice(ctx, key.IndexToken)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		price = p.Price
	}

	metrics.QuotesTotal.WithLabelValues("position").Inc()
	writeJSON(w, http.StatusOK, view(snap.State, *pos, price))
}

// ListLiquidatable handles GET /api/v1/liquidatable
func (s *Service) ListLiquidatable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := s.store.GetVault(ctx)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	positions, err := s.store.ListPositions(ctx)
	if err != nil {
		writeError(w, "failed to list positions", http.StatusInternalServerError)
		return
	}
	prices, err := s.priceMap(r)
	if err != nil {
		writeError(w, "failed to load prices", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ScanResponse{
		VaultRef:   snap.Ref,
		ScanResult: liquidation.Scan(snap.State, positions, prices),
	})
}

// FundingPreview handles GET /api/v1/funding/{token}
// Shows what an UpdateFundingRate action would write right now.
func (s *Service) FundingPreview(w http.ResponseWriter, r *http.Request) {
	token, err := model.ParseAssetClass(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := s.store.GetVault(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	now := s.now().Unix()
	acc := funding.Accrue(snap.State, token, s.planner.Config().FundingRateFactor, now)
	metrics.QuotesTotal.WithLabelValues("funding").Inc()
	writeJSON(w, http.StatusOK, FundingPreview{VaultRef: snap.Ref, Now: now, Accrual: acc})
}

// Plan handles POST /api/v1/plan
// The body is a tagged redeemer, e.g. {"action":"add_liquidity","amount":"1000"}.
func (s *Service) Plan(w http.ResponseWriter, r *http.Request) {
	redeemer, ok := readRedeemer(w, r)
	if !ok {
		return
	}
	action := string(redeemer.Action())

	snap, err := vault.Load(r.Context(), s.store, redeemer, s.now().Unix())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	plan, err := s.planner.Plan(snap, redeemer)
	if err != nil {
		metrics.PlanRejections.WithLabelValues(action, reason(err)).Inc()
		slog.Info("plan rejected", "action", action, "vault_ref", snap.Vault.Ref, "err", err)
		writeEngineError(w, err)
		return
	}
	metrics.PlansTotal.WithLabelValues(action).Inc()

	resp := PlanResponse{PlanID: uuid.NewString(), Plan: plan}
	slog.Info("plan proposed",
		"plan_id", resp.PlanID,
		"action", action,
		"vault_ref", plan.VaultRef,
		"position_ref", plan.PositionRef,
		"total_liquidity", plan.Vault.TotalLiquidity.String(),
	)
	writeJSON(w, http.StatusOK, resp)
}

// Execute handles POST /api/v1/execute
// Same body as /plan. The plan is submitted against the snapshot refs it
// was built from; a stale snapshot is re-fetched and re-planned before the
// request fails with 409.
func (s *Service) Execute(w http.ResponseWriter, r *http.Request) {
	redeemer, ok := readRedeemer(w, r)
	if !ok {
		return
	}
	action := string(redeemer.Action())

	plan, err := s.planner.Execute(r.Context(), s.store, s.submitter, redeemer, s.now().Unix())
	if err != nil {
		metrics.PlanRejections.WithLabelValues(action, reason(err)).Inc()
		slog.Info("execution failed", "action", action, "err", err)
		writeEngineError(w, err)
		return
	}
	metrics.PlansTotal.WithLabelValues(action).Inc()

	resp := PlanResponse{PlanID: uuid.NewString(), Plan: plan}
	slog.Info("plan executed",
		"plan_id", resp.PlanID,
		"action", action,
		"vault_ref", plan.VaultRef,
		"position_ref", plan.PositionRef,
	)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// readRedeemer decodes a tagged redeemer body, writing a 400 on failure.
func readRedeemer(w http.ResponseWriter, r *http.Request) (model.Redeemer, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	redeemer, err := model.DecodeRedeemer(body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return redeemer, true
}

func view(v model.VaultState, snap model.PositionSnapshot, price decimal.Decimal) PositionView {
	p := snap.Record
	rate := v.CumulativeFundingRate(p.IndexToken, p.Side)
	pv := PositionView{
		Ref:      snap.Ref,
		Position: p,
		Summary:  liquidation.Summarize(p, price, rate, v.MarginFeeBps, v.LiquidationFeeUSD),
	}
	if pv.Summary.Status == liquidation.Liquidatable {
		payout := liquidation.ComputePayout(p, price, rate, v.MarginFeeBps, v.LiquidationFeeUSD)
		pv.Payout = &payout
	}
	return pv
}

func (s *Service) priceMap(r *http.Request) (map[model.AssetClass]decimal.Decimal, error) {
	prices, err := s.store.ListPrices(r.Context())
	if err != nil {
		return nil, err
	}
	m := make(map[model.AssetClass]decimal.Decimal, len(prices))
	for _, p := range prices {
		m[p.Token] = p.Price
	}
	return m, nil
}

var errNotInteger = errors.New("must be an integer")

// parseAmount reads a non-empty integer amount in base units.
func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, errors.New("is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errNotInteger
	}
	if !amount.Equal(amount.Truncate(0)) {
		return decimal.Zero, errNotInteger
	}
	return amount, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
