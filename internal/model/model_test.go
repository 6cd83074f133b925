package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

var (
	policyBTC = strings.Repeat("b", 56)
	btc       = AssetClass{PolicyID: policyBTC, AssetName: "BTC"}
	eth       = AssetClass{PolicyID: strings.Repeat("e", 56), AssetName: "ETH"}
)

func d(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestParseAssetClass_Valid(t *testing.T) {
	a, err := ParseAssetClass(policyBTC + ".BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != btc {
		t.Errorf("expected %v, got %v", btc, a)
	}

	ada, err := ParseAssetClass(".")
	if err != nil {
		t.Fatalf("unexpected error for ada: %v", err)
	}
	if ada.PolicyID != "" || ada.AssetName != "" {
		t.Errorf("expected empty ada asset class, got %v", ada)
	}
}

func TestParseAssetClass_Invalid(t *testing.T) {
	tests := []string{
		"",
		"BTC",
		"abc.BTC",                            // policy too short
		strings.Repeat("B", 56) + ".BTC",     // upper-case hex
		policyBTC + ".BTC.X",                 // extra separator
		policyBTC + ".A:B",                   // colon in name
		policyBTC + "." + strings.Repeat("x", 65),
	}
	for _, s := range tests {
		if _, err := ParseAssetClass(s); !errors.Is(err, ErrInvalidAssetClass) {
			t.Errorf("ParseAssetClass(%q): expected ErrInvalidAssetClass, got %v", s, err)
		}
	}
}

func TestPositionKey_RoundTrip(t *testing.T) {
	key := PositionKey{Account: "acct1", IndexToken: btc, Side: SideShort}
	s := key.String()
	if s != "acct1:"+policyBTC+".BTC:short" {
		t.Errorf("unexpected key string %q", s)
	}
	parsed, err := ParsePositionKey(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != key {
		t.Errorf("expected %v, got %v", key, parsed)
	}
}

func TestParsePositionKey_Invalid(t *testing.T) {
	tests := []string{
		"",
		"acct1",
		"acct1:" + policyBTC + ".BTC",
		"acct1:" + policyBTC + ".BTC:sideways",
		"acct1:nope:long",
	}
	for _, s := range tests {
		if _, err := ParsePositionKey(s); !errors.Is(err, ErrInvalidPositionKey) {
			t.Errorf("ParsePositionKey(%q): expected ErrInvalidPositionKey, got %v", s, err)
		}
	}
}

func TestTokenMap_ValueKeyEquality(t *testing.T) {
	m := Amounts{}
	m = m.With(AssetClass{PolicyID: policyBTC, AssetName: "BTC"}, d(5))

	// A separately constructed key with equal fields addresses the same entry.
	other := AssetClass{PolicyID: strings.Repeat("b", 56), AssetName: "BTC"}
	if !m.Get(other).Equal(d(5)) {
		t.Errorf("expected 5 for equal key, got %s", m.Get(other))
	}
	if !m.Get(eth).IsZero() {
		t.Errorf("missing key should read as zero, got %s", m.Get(eth))
	}
}

func TestTokenMap_WithDoesNotMutate(t *testing.T) {
	orig := Amounts{btc: d(1)}
	next := orig.With(btc, d(2))
	if !orig.Get(btc).Equal(d(1)) {
		t.Errorf("original map mutated: %s", orig.Get(btc))
	}
	if !next.Get(btc).Equal(d(2)) {
		t.Errorf("expected 2, got %s", next.Get(btc))
	}
}

func TestVaultState_JSONRoundTrip(t *testing.T) {
	v := VaultState{
		TotalLiquidity:    d(1_000_000),
		GLPSupply:         d(950_000),
		WhitelistedTokens: []AssetClass{btc},
		ReservedAmounts:   Amounts{btc: d(80_000)},
		MaxUtilizationBps: TokenMap[int64]{btc: 8000},
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back VaultState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.ReservedAmounts.Get(btc).Equal(d(80_000)) {
		t.Errorf("reserved lost in round trip: %s", back.ReservedAmounts.Get(btc))
	}
	if back.MaxUtilizationBps.Get(btc) != 8000 {
		t.Errorf("max utilization lost in round trip: %d", back.MaxUtilizationBps.Get(btc))
	}
	if !back.IsWhitelisted(btc) {
		t.Error("whitelist lost in round trip")
	}
}

func TestVaultState_CloneIsDeep(t *testing.T) {
	v := VaultState{ReservedAmounts: Amounts{btc: d(1)}}
	c := v.Clone()
	c.ReservedAmounts[btc] = d(99)
	if !v.ReservedAmounts.Get(btc).Equal(d(1)) {
		t.Error("clone aliases the original reserved map")
	}
}

func TestVaultState_Validate(t *testing.T) {
	ok := VaultState{TotalLiquidity: d(100), GLPSupply: d(100), ReservedAmounts: Amounts{btc: d(60), eth: d(40)}}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	over := VaultState{TotalLiquidity: d(100), GLPSupply: d(100), ReservedAmounts: Amounts{btc: d(60), eth: d(41)}}
	if err := over.Validate(); !errors.Is(err, ErrNegativeAvailableLiquidity) {
		t.Errorf("expected ErrNegativeAvailableLiquidity, got %v", err)
	}

	empty := VaultState{}
	if err := empty.Validate(); err != nil {
		t.Errorf("empty vault is valid before first deposit, got %v", err)
	}

	noSupply := VaultState{TotalLiquidity: d(10)}
	if err := noSupply.Validate(); !errors.Is(err, ErrLiquidityWithoutSupply) {
		t.Errorf("expected ErrLiquidityWithoutSupply, got %v", err)
	}
}

func TestTargetPosition(t *testing.T) {
	key, ok := TargetPosition(LiquidatePosition{Account: "a", IndexToken: btc, Side: SideLong})
	if !ok || key.Account != "a" || key.Side != SideLong {
		t.Errorf("unexpected target %v %v", key, ok)
	}
	if _, ok := TargetPosition(AddLiquidity{Amount: d(1)}); ok {
		t.Error("AddLiquidity has no target position")
	}
}

func TestRedeemerCodec(t *testing.T) {
	cases := []Redeemer{
		AddLiquidity{Amount: d(1000)},
		RemoveLiquidity{GLPAmount: d(5)},
		IncreasePosition{Account: "addr1", IndexToken: btc, CollateralDelta: d(100), SizeDelta: d(1000), Side: SideLong},
		DecreasePosition{Account: "addr1", IndexToken: btc, CollateralDelta: d(0), SizeDelta: d(1000), Side: SideShort},
		LiquidatePosition{Account: "addr1", IndexToken: btc, Side: SideLong},
		UpdateFees{MintBurnFeeBps: 30, MarginFeeBps: 10, LiquidationFeeUSD: d(5_000_000)},
		UpdateFundingRate{Token: btc},
	}
	for _, want := range cases {
		data, err := EncodeRedeemer(want)
		if err != nil {
			t.Fatalf("encode %s: %v", want.Action(), err)
		}
		got, err := DecodeRedeemer(data)
		if err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if got.Action() != want.Action() {
			t.Errorf("action = %s, want %s", got.Action(), want.Action())
		}
		if key, ok := TargetPosition(want); ok {
			gotKey, _ := TargetPosition(got)
			if gotKey != key {
				t.Errorf("key = %s, want %s", gotKey, key)
			}
		}
	}
}

func TestDecodeRedeemer_Errors(t *testing.T) {
	if _, err := DecodeRedeemer([]byte(`{"action":"mint_everything"}`)); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown action: err = %v", err)
	}
	if _, err := DecodeRedeemer([]byte(`{"action":"update_funding_rate","token":"nodot"}`)); !errors.Is(err, ErrInvalidAssetClass) {
		t.Errorf("bad token: err = %v", err)
	}
	if _, err := DecodeRedeemer([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed body")
	}
}
