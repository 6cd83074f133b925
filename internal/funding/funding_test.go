package funding

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

// --- Rate ---

func TestRate_ZeroLiquidity(t *testing.T) {
	if got := Rate(d(500), d(100), d(0), 100, 8); !got.IsZero() {
		t.Errorf("expected 0 against zero liquidity, got %s", got)
	}
}

func TestRate_LongImbalance(t *testing.T) {
	// ratio = 100_000 * 1e6 / 1_000_000 = 100_000
	// rate  = 100_000 * 100 * 2 / 1e6 = 20
	got := Rate(d(300_000), d(200_000), d(1_000_000), 100, 2)
	if !got.Equal(d(20)) {
		t.Errorf("expected 20, got %s", got)
	}
}

func TestRate_ShortImbalanceIsNegative(t *testing.T) {
	got := Rate(d(200_000), d(300_000), d(1_000_000), 100, 2)
	if !got.Equal(d(-20)) {
		t.Errorf("expected -20, got %s", got)
	}
}

func TestRate_TruncatesTowardZero(t *testing.T) {
	// ratio = -1 * 1e6 / 3 = -333_333 (not -333_334)
	// rate  = -333_333 * 1 * 1 / 1e6 = 0
	if got := Rate(d(0), d(1), d(3), 1, 1); !got.IsZero() {
		t.Errorf("expected truncation to 0, got %s", got)
	}
	// ratio = -333_333; rate = -333_333 * 100 * 5 / 1e6 = -166.66 -> -166
	if got := Rate(d(0), d(1), d(3), 100, 5); !got.Equal(d(-166)) {
		t.Errorf("expected -166, got %s", got)
	}
}

func TestRate_ZeroHours(t *testing.T) {
	if got := Rate(d(300_000), d(0), d(1_000_000), 100, 0); !got.IsZero() {
		t.Errorf("expected 0 for no elapsed hours, got %s", got)
	}
}

// --- ElapsedHours ---

func TestElapsedHours(t *testing.T) {
	tests := []struct {
		last, now, want int64
	}{
		{0, 3599, 0},
		{0, 3600, 1},
		{1000, 1000 + 7*3600 + 1799, 7},
		{5000, 4000, 0},
		{5000, 5000, 0},
	}
	for _, tt := range tests {
		if got := ElapsedHours(tt.last, tt.now); got != tt.want {
			t.Errorf("ElapsedHours(%d, %d) = %d, want %d", tt.last, tt.now, got, tt.want)
		}
	}
}

// --- Fee ---

func TestFee_SignFollowsDelta(t *testing.T) {
	if got := Fee(d(10_000_000), d(100), d(150)); !got.Equal(d(500)) {
		t.Errorf("expected 500, got %s", got)
	}
	if got := Fee(d(10_000_000), d(150), d(100)); !got.Equal(d(-500)) {
		t.Errorf("expected -500, got %s", got)
	}
	if got := Fee(d(10_000_000), d(42), d(42)); !got.IsZero() {
		t.Errorf("expected 0 for unchanged rate, got %s", got)
	}
}

// --- Cumulative rates ---

func TestUpdateCumulativeRate_OppositeDirections(t *testing.T) {
	long := UpdateCumulativeRate(d(1000), d(20), true)
	short := UpdateCumulativeRate(d(1000), d(20), false)
	if !long.Equal(d(1020)) || !short.Equal(d(980)) {
		t.Errorf("expected long=1020 short=980, got long=%s short=%s", long, short)
	}
}

func TestAccrue_AdvancesByWholeHours(t *testing.T) {
	v := model.VaultState{
		TotalLiquidity:             d(1_000_000),
		OpenInterestLong:           model.Amounts{btc: d(300_000)},
		OpenInterestShort:          model.Amounts{btc: d(200_000)},
		CumulativeFundingRateLong:  model.Amounts{btc: d(50)},
		CumulativeFundingRateShort: model.Amounts{btc: d(-50)},
		LastFundingTimes:           model.TokenMap[int64]{btc: 1_000},
	}
	now := int64(1_000 + 2*3600 + 1200)

	acc := Accrue(v, btc, 100, now)
	if acc.ElapsedHours != 2 {
		t.Fatalf("expected 2 hours, got %d", acc.ElapsedHours)
	}
	if !acc.Delta.Equal(d(20)) {
		t.Errorf("expected delta 20, got %s", acc.Delta)
	}
	if !acc.CumulativeLong.Equal(d(70)) || !acc.CumulativeShort.Equal(d(-70)) {
		t.Errorf("expected long=70 short=-70, got long=%s short=%s", acc.CumulativeLong, acc.CumulativeShort)
	}
	// The 1200s remainder is carried to the next update.
	if acc.LastFundingTime != 1_000+2*3600 {
		t.Errorf("expected last funding time %d, got %d", 1_000+2*3600, acc.LastFundingTime)
	}

	next := Apply(v, acc)
	if !next.CumulativeFundingRateLong.Get(btc).Equal(d(70)) {
		t.Errorf("apply did not write long rate: %s", next.CumulativeFundingRateLong.Get(btc))
	}
	if !v.CumulativeFundingRateLong.Get(btc).Equal(d(50)) {
		t.Error("apply mutated the source snapshot")
	}
}

func TestAccrue_SubHourIsNoop(t *testing.T) {
	v := model.VaultState{
		TotalLiquidity:   d(1_000_000),
		OpenInterestLong: model.Amounts{btc: d(300_000)},
		LastFundingTimes: model.TokenMap[int64]{btc: 1_000},
	}
	acc := Accrue(v, btc, 100, 1_000+3599)
	if acc.ElapsedHours != 0 || !acc.Delta.IsZero() || acc.LastFundingTime != 1_000 {
		t.Errorf("expected no accrual, got %+v", acc)
	}
}

func TestAccrue_FirstUpdateStartsClock(t *testing.T) {
	v := model.VaultState{TotalLiquidity: d(1_000_000)}
	acc := Accrue(v, btc, 100, 42_000)
	if acc.LastFundingTime != 42_000 || !acc.Delta.IsZero() {
		t.Errorf("expected clock start at 42000 with no delta, got %+v", acc)
	}
}
