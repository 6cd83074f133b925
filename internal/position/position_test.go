package position

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/model"
)

var btc = model.AssetClass{PolicyID: strings.Repeat("b", 56), AssetName: "BTC"}

func d(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func pos(size, collateral, avg int64, side model.Side) model.PositionRecord {
	return model.PositionRecord{
		Account:      "acct1",
		IndexToken:   btc,
		Size:         d(size),
		Collateral:   d(collateral),
		AveragePrice: d(avg),
		Side:         side,
	}
}

// --- PnL ---

func TestPnL_LongScenario(t *testing.T) {
	// 10% favorable move on 10x leverage.
	p := pos(10_000, 1_000, 40_000, model.SideLong)
	if got := PnL(p, d(44_000)); !got.Equal(d(1_000)) {
		t.Errorf("expected 1000, got %s", got)
	}
}

func TestPnL_ZeroSize(t *testing.T) {
	p := pos(0, 1_000, 40_000, model.SideLong)
	if got := PnL(p, d(44_000)); !got.IsZero() {
		t.Errorf("expected 0 for closed position, got %s", got)
	}
}

func TestPnL_ZeroAveragePrice(t *testing.T) {
	p := pos(10_000, 1_000, 0, model.SideShort)
	if got := PnL(p, d(44_000)); !got.IsZero() {
		t.Errorf("expected 0 without average price, got %s", got)
	}
}

func TestPnL_SideSymmetry(t *testing.T) {
	prices := []int64{1, 33_333, 39_999, 40_000, 40_001, 44_000, 91_234}
	for _, price := range prices {
		long := PnL(pos(10_007, 1_000, 40_000, model.SideLong), d(price))
		short := PnL(pos(10_007, 1_000, 40_000, model.SideShort), d(price))
		if !long.Equal(short.Neg()) {
			t.Errorf("price %d: long=%s short=%s are not negations", price, long, short)
		}
	}
}

func TestPnL_TruncatesTowardEntry(t *testing.T) {
	// 3 * 1 / 2 = 1.5 -> 1 for the gain; -1.5 -> -1 for the loss.
	if got := PnL(pos(3, 1, 2, model.SideLong), d(3)); !got.Equal(d(1)) {
		t.Errorf("expected gain 1, got %s", got)
	}
	if got := PnL(pos(3, 1, 2, model.SideLong), d(1)); !got.Equal(d(-1)) {
		t.Errorf("expected loss -1, got %s", got)
	}
}

// --- Leverage ---

func TestLeverage(t *testing.T) {
	if got := LeverageBps(d(5_000), d(1_000)); !got.Equal(d(50_000)) {
		t.Errorf("expected 50000 bps, got %s", got)
	}
	if got := Leverage(d(5_000), d(1_000)); !got.Equal(d(500)) {
		t.Errorf("expected 500 for 5x, got %s", got)
	}
	if got := Leverage(d(2_500), d(1_000)); !got.Equal(d(250)) {
		t.Errorf("expected 250 for 2.5x, got %s", got)
	}
	if got := Leverage(d(3_333), d(1_000)); !got.Equal(decimal.RequireFromString("333.3")) {
		t.Errorf("expected 333.3, got %s", got)
	}
	if got := Leverage(d(5_000), d(0)); !got.IsZero() {
		t.Errorf("expected 0 without collateral, got %s", got)
	}
	if got := LeverageBps(d(5_000), d(0)); !got.IsZero() {
		t.Errorf("expected 0 without collateral, got %s", got)
	}
}

// --- Liquidation price ---

func TestLiquidationPrice_Long(t *testing.T) {
	// effective collateral 1000 - 100 = 900; ratio = 900e8/10000 = 9e6
	// move = 9e6 * 40000 / 1e8 = 3600 -> 36400
	p := pos(10_000, 1_000, 40_000, model.SideLong)
	if got := LiquidationPrice(p, 30, d(100)); !got.Equal(d(36_400)) {
		t.Errorf("expected 36400, got %s", got)
	}
}

func TestLiquidationPrice_Short(t *testing.T) {
	p := pos(10_000, 1_000, 40_000, model.SideShort)
	if got := LiquidationPrice(p, 30, d(100)); !got.Equal(d(43_600)) {
		t.Errorf("expected 43600, got %s", got)
	}
}

func TestLiquidationPrice_FeeExceedsCollateral(t *testing.T) {
	p := pos(10_000, 50, 40_000, model.SideLong)
	if got := LiquidationPrice(p, 30, d(100)); !got.Equal(d(40_000)) {
		t.Errorf("expected liquidation at entry, got %s", got)
	}
}

func TestLiquidationPrice_LongFloorsAtZero(t *testing.T) {
	// Collateral above size: price would go negative.
	p := pos(1_000, 5_000, 40_000, model.SideLong)
	if got := LiquidationPrice(p, 30, d(0)); !got.IsZero() {
		t.Errorf("expected 0, got %s", got)
	}
}

func TestLiquidationPrice_ZeroSize(t *testing.T) {
	if got := LiquidationPrice(pos(0, 1_000, 40_000, model.SideLong), 30, d(100)); !got.IsZero() {
		t.Errorf("expected 0, got %s", got)
	}
}

// --- Average price ---

func TestAveragePrice(t *testing.T) {
	tests := []struct {
		name                          string
		size, avg, delta, entry, want int64
	}{
		{"new position", 0, 0, 5_000, 40_000, 40_000},
		{"equal weights", 10_000, 40_000, 10_000, 44_000, 42_000},
		{"truncates", 3, 10, 1, 11, 10},
		{"full close", 10_000, 40_000, -10_000, 44_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AveragePrice(d(tt.size), d(tt.avg), d(tt.delta), d(tt.entry))
			if !got.Equal(d(tt.want)) {
				t.Errorf("expected %d, got %s", tt.want, got)
			}
		})
	}
}

// --- Validation ---

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name             string
		collateral, size int64
		maxLeverageBps   int64
		want             error
	}{
		{"valid", 1_000, 5_000, 500_000, nil},
		{"at limit", 1_000, 50_000, 500_000, nil},
		{"zero collateral", 0, 5_000, 500_000, ErrNonPositiveCollateral},
		{"negative collateral", -1, 5_000, 500_000, ErrNonPositiveCollateral},
		{"zero size", 1_000, 0, 500_000, ErrNonPositiveSize},
		{"over limit", 1_000, 50_001, 500_000, ErrLeverageExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateParams(d(tt.collateral), d(tt.size), tt.maxLeverageBps); err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
