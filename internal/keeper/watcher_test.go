package keeper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/store"
)

var btc = model.AssetClass{PolicyID: strings.Repeat("b", 56), AssetName: "BTC"}

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recorder) Broadcast(a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func seed(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	ms := store.NewMemoryStore()
	require.NoError(t, ms.PutVault(ctx, model.VaultSnapshot{
		Ref: "vault#0",
		State: model.VaultState{
			TotalLiquidity:    d(1_000_000),
			GLPSupply:         d(1_000_000),
			MarginFeeBps:      10,
			LiquidationFeeUSD: d(100),
			ReservedAmounts:   model.Amounts{btc: d(1000)},
		},
	}))
	require.NoError(t, ms.PutPosition(ctx, model.PositionSnapshot{
		Ref: "pos#1",
		Record: model.PositionRecord{
			Account:      "addr_test1",
			IndexToken:   btc,
			Collateral:   d(1000),
			Size:         d(10000),
			AveragePrice: d(40000),
			Side:         model.SideLong,
		},
	}))
	setPrice(t, ms, 44000)
	return ms
}

func setPrice(t *testing.T, ms *store.MemoryStore, price int64) {
	t.Helper()
	require.NoError(t, ms.PutPrice(context.Background(), model.PriceData{Token: btc, Price: d(price)}))
}

func TestScanAnnouncesTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	ms := seed(t)
	rec := &recorder{}
	w := NewWatcher(ms, rec, Config{})

	alerts, err := w.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	setPrice(t, ms, 36000)
	alerts, err = w.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, AlertLiquidatable, a.Type)
	assert.Equal(t, "vault#0", a.VaultRef)
	assert.Equal(t, "addr_test1", a.Key.Account)
	assert.NotEmpty(t, a.ID)
	require.NotNil(t, a.Candidate)
	assert.True(t, a.Candidate.Payout.TotalLoss.Equal(d(10)))

	// Still liquidatable: nothing new.
	alerts, err = w.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	setPrice(t, ms, 44000)
	alerts, err = w.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCleared, alerts[0].Type)
	assert.Nil(t, alerts[0].Candidate)

	assert.Equal(t, 2, rec.count())
}

func TestScanReannouncesNewOutput(t *testing.T) {
	ctx := context.Background()
	ms := seed(t)
	w := NewWatcher(ms, &recorder{}, Config{})

	setPrice(t, ms, 36000)
	_, err := w.Scan(ctx)
	require.NoError(t, err)

	pos, err := ms.GetPosition(ctx, model.PositionKey{Account: "addr_test1", IndexToken: btc, Side: model.SideLong})
	require.NoError(t, err)
	pos.Ref = "pos#2"
	require.NoError(t, ms.PutPosition(ctx, *pos))

	alerts, err := w.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "pos#2", alerts[0].Candidate.Ref)
}

func TestScanWithoutVault(t *testing.T) {
	w := NewWatcher(store.NewMemoryStore(), &recorder{}, Config{})
	_, err := w.Scan(context.Background())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunStopsOnCancel(t *testing.T) {
	ms := seed(t)
	setPrice(t, ms, 36000)
	rec := &recorder{}
	w := NewWatcher(ms, rec, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
