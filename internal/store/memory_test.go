package store

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrox/vault-engine/internal/model"
)

var btc = model.AssetClass{PolicyID: strings.Repeat("b", 56), AssetName: "BTC"}

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func seed(t *testing.T) (*MemoryStore, model.PositionKey) {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.PutVault(ctx, model.VaultSnapshot{
		Ref: "genesis#0",
		State: model.VaultState{
			TotalLiquidity:  d(1_000_000),
			GLPSupply:       d(1_000_000),
			ReservedAmounts: model.Amounts{btc: d(1000)},
		},
	}))

	rec := model.PositionRecord{
		Account:      "addr_test1",
		IndexToken:   btc,
		Collateral:   d(1000),
		Size:         d(10000),
		AveragePrice: d(40000),
		Side:         model.SideLong,
	}
	require.NoError(t, s.PutPosition(ctx, model.PositionSnapshot{Ref: "open#1", Record: rec}))
	require.NoError(t, s.PutPrice(ctx, model.PriceData{Token: btc, Price: d(41000), Timestamp: 100}))
	return s, rec.Key()
}

func TestMemoryStoreReads(t *testing.T) {
	ctx := context.Background()
	s, key := seed(t)

	v, err := s.GetVault(ctx)
	require.NoError(t, err)
	assert.Equal(t, "genesis#0", v.Ref)

	// Mutating the returned state must not leak into the store.
	v.State.ReservedAmounts[btc] = d(5)
	again, err := s.GetVault(ctx)
	require.NoError(t, err)
	assert.True(t, again.State.ReservedAmounts.Get(btc).Equal(d(1000)))

	p, err := s.GetPosition(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "open#1", p.Ref)

	all, err := s.ListPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	price, err := s.GetPrice(ctx, btc)
	require.NoError(t, err)
	assert.True(t, price.Price.Equal(d(41000)))

	_, err = s.GetPrice(ctx, model.AssetClass{AssetName: "ETH"})
	assert.ErrorIs(t, err, ErrNotFound)

	key.Side = model.SideShort
	_, err = s.GetPosition(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreEmptyVault(t *testing.T) {
	_, err := NewMemoryStore().GetVault(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommitReplacesOutputs(t *testing.T) {
	ctx := context.Background()
	s, key := seed(t)

	next := model.VaultState{TotalLiquidity: d(1_000_030), GLPSupply: d(1_000_000)}
	pos := model.PositionRecord{
		Account:      key.Account,
		IndexToken:   btc,
		Collateral:   d(2000),
		Size:         d(20000),
		AveragePrice: d(40500),
		Side:         model.SideLong,
	}
	ref, err := s.Commit(ctx, Commit{
		VaultRef:    "genesis#0",
		Vault:       next,
		PositionKey: &key,
		PositionRef: "open#1",
		Position:    &pos,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, "#0"))

	v, err := s.GetVault(ctx)
	require.NoError(t, err)
	assert.Equal(t, ref, v.Ref)
	assert.True(t, v.State.TotalLiquidity.Equal(d(1_000_030)))

	p, err := s.GetPosition(ctx, key)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.Ref, "#1"))
	assert.True(t, p.Record.Size.Equal(d(20000)))
}

func TestCommitClosesPosition(t *testing.T) {
	ctx := context.Background()
	s, key := seed(t)

	_, err := s.Commit(ctx, Commit{
		VaultRef:    "genesis#0",
		PositionKey: &key,
		PositionRef: "open#1",
	})
	require.NoError(t, err)

	_, err = s.GetPosition(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommitConflicts(t *testing.T) {
	ctx := context.Background()
	s, key := seed(t)
	pos := model.PositionRecord{Account: key.Account, IndexToken: btc, Side: model.SideLong, Size: d(1)}

	tests := []struct {
		name   string
		commit Commit
	}{
		{"stale vault", Commit{VaultRef: "old#0"}},
		{"stale position", Commit{VaultRef: "genesis#0", PositionKey: &key, PositionRef: "old#1", Position: &pos}},
		{"position already open", Commit{VaultRef: "genesis#0", PositionKey: &key, Position: &pos}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Commit(ctx, tt.commit)
			assert.ErrorIs(t, err, ErrConflict)
		})
	}

	// Nothing was applied.
	v, err := s.GetVault(ctx)
	require.NoError(t, err)
	assert.Equal(t, "genesis#0", v.Ref)
}

func TestCommitSpendsRefOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := seed(t)

	_, err := s.Commit(ctx, Commit{VaultRef: "genesis#0"})
	require.NoError(t, err)
	_, err = s.Commit(ctx, Commit{VaultRef: "genesis#0"})
	assert.ErrorIs(t, err, ErrConflict)
}
