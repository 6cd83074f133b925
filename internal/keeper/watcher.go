// Package keeper watches open positions and pushes liquidation alerts to
// WebSocket subscribers. Keepers use the alerts to decide which
// LiquidatePosition actions to build; the watcher itself never submits.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/glp"
	"github.com/hydrox/vault-engine/internal/liquidation"
	"github.com/hydrox/vault-engine/internal/metrics"
	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/store"
)

// Alert types.
const (
	AlertLiquidatable = "position_liquidatable"
	AlertCleared      = "position_cleared" // recovered, closed or liquidated
)

// Alert is a JSON message sent to WebSocket clients.
type Alert struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	VaultRef  string                 `json:"vault_ref"`
	Key       model.PositionKey      `json:"key"`
	Candidate *liquidation.Candidate `json:"candidate,omitempty"`
	Time      time.Time              `json:"time"`
}

// Publisher delivers alerts. *Hub implements it.
type Publisher interface {
	Broadcast(Alert)
}

// Config controls the watcher.
type Config struct {
	// Interval between scans.
	Interval time.Duration
}

// DefaultConfig returns the default watcher settings.
func DefaultConfig() Config {
	return Config{Interval: 15 * time.Second}
}

// Watcher periodically scans open positions for liquidation. Each position
// is announced once when it becomes liquidatable and once when it stops
// being so; a position that changes output while liquidatable is
// announced again.
type Watcher struct {
	store store.Store
	pub   Publisher
	cfg   Config
	now   func() time.Time

	mu      sync.Mutex
	alerted map[model.PositionKey]string // position ref alerted for
}

// NewWatcher creates a watcher. A zero interval uses the default.
func NewWatcher(st store.Store, pub Publisher, cfg Config) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Watcher{
		store:   st,
		pub:     pub,
		cfg:     cfg,
		now:     time.Now,
		alerted: make(map[model.PositionKey]string),
	}
}

// Run scans immediately and then every interval until ctx is cancelled.
// Scan failures are logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		_, err := w.Scan(ctx)
		switch {
		case err == nil, ctx.Err() != nil:
		case errors.Is(err, store.ErrNotFound):
			slog.Warn("liquidation scan skipped, no vault snapshot yet")
		default:
			slog.Error("liquidation scan failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Scan runs one pass, publishes the resulting alerts and returns them.
func (w *Watcher) Scan(ctx context.Context) ([]Alert, error) {
	start := time.Now()
	defer func() { metrics.ScanLatency.Observe(time.Since(start).Seconds()) }()

	snap, err := w.store.GetVault(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	positions, err := w.store.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: list positions: %w", err)
	}
	priceList, err := w.store.ListPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: list prices: %w", err)
	}
	prices := make(map[model.AssetClass]decimal.Decimal, len(priceList))
	for _, p := range priceList {
		prices[p.Token] = p.Price
	}

	res := liquidation.Scan(snap.State, positions, prices)
	recordGauges(snap.State, res)

	alerts := w.diff(snap.Ref, res.Liquidatable)
	for _, a := range alerts {
		w.pub.Broadcast(a)
	}

	slog.Debug("liquidation scan complete",
		"vault_ref", snap.Ref,
		"positions", len(positions),
		"liquidatable", len(res.Liquidatable),
		"unpriced", len(res.Unpriced),
		"alerts", len(alerts),
	)
	return alerts, nil
}

// diff compares the liquidatable set with what was last announced.
func (w *Watcher) diff(vaultRef string, candidates []liquidation.Candidate) []Alert {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UTC()
	var alerts []Alert
	current := make(map[model.PositionKey]string, len(candidates))

	for i := range candidates {
		c := candidates[i]
		current[c.Key] = c.Ref
		if ref, ok := w.alerted[c.Key]; ok && ref == c.Ref {
			continue
		}
		alerts = append(alerts, Alert{
			ID:        uuid.NewString(),
			Type:      AlertLiquidatable,
			VaultRef:  vaultRef,
			Key:       c.Key,
			Candidate: &c,
			Time:      now,
		})
		slog.Info("position liquidatable",
			"position", c.Key.String(),
			"ref", c.Ref,
			"price", c.Price.String(),
			"remaining", c.Assessment.Remaining.String(),
			"liquidator_fee", c.Payout.LiquidatorFee.String(),
		)
	}

	for key := range w.alerted {
		if _, ok := current[key]; ok {
			continue
		}
		alerts = append(alerts, Alert{
			ID:       uuid.NewString(),
			Type:     AlertCleared,
			VaultRef: vaultRef,
			Key:      key,
			Time:     now,
		})
	}

	w.alerted = current
	return alerts
}

func recordGauges(v model.VaultState, res liquidation.ScanResult) {
	metrics.LiquidatablePositions.Set(float64(len(res.Liquidatable)))
	metrics.UnpricedPositions.Set(float64(len(res.Unpriced)))
	for _, t := range v.ReservedAmounts.Tokens() {
		util := glp.UtilizationBps(v.ReservedAmounts.Get(t), v.TotalLiquidity)
		metrics.UtilizationBps.WithLabelValues(t.String()).Set(util.InexactFloat64())
	}
}
