package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hydrox/vault-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// Only the vault and prices are cached. Positions are read on every scan
// and change with every trade, so they pass through.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) PutVault(ctx context.Context, snap model.VaultSnapshot) error {
	if err := s.primary.PutVault(ctx, snap); err != nil {
		return err
	}
	s.cache(ctx, vaultKey, snap)
	return nil
}

func (s *CachedStore) PutPrice(ctx context.Context, price model.PriceData) error {
	if err := s.primary.PutPrice(ctx, price); err != nil {
		return err
	}
	// Invalidate; the next read re-populates with the latest row.
	s.rdb.Del(ctx, priceKey(price.Token), pricesKey)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetVault(ctx context.Context) (*model.VaultSnapshot, error) {
	var snap model.VaultSnapshot
	if s.lookup(ctx, vaultKey, &snap) {
		return &snap, nil
	}

	// Cache miss: read from primary.
	v, err := s.primary.GetVault(ctx)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, vaultKey, v)
	return v, nil
}

func (s *CachedStore) GetPrice(ctx context.Context, token model.AssetClass) (*model.PriceData, error) {
	var p model.PriceData
	if s.lookup(ctx, priceKey(token), &p) {
		return &p, nil
	}

	price, err := s.primary.GetPrice(ctx, token)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, priceKey(token), price)
	return price, nil
}

func (s *CachedStore) ListPrices(ctx context.Context) ([]model.PriceData, error) {
	var prices []model.PriceData
	if s.lookup(ctx, pricesKey, &prices) {
		return prices, nil
	}

	prices, err := s.primary.ListPrices(ctx)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, pricesKey, prices)
	return prices, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetPosition(ctx context.Context, key model.PositionKey) (*model.PositionSnapshot, error) {
	return s.primary.GetPosition(ctx, key)
}

func (s *CachedStore) ListPositions(ctx context.Context) ([]model.PositionSnapshot, error) {
	return s.primary.ListPositions(ctx)
}

func (s *CachedStore) PutPosition(ctx context.Context, snap model.PositionSnapshot) error {
	return s.primary.PutPosition(ctx, snap)
}

func (s *CachedStore) DeletePosition(ctx context.Context, key model.PositionKey) error {
	return s.primary.DeletePosition(ctx, key)
}

// --- Cache helpers ---

func (s *CachedStore) lookup(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

const (
	vaultKey  = "vault:live"
	pricesKey = "prices:all"
)

func priceKey(token model.AssetClass) string { return fmt.Sprintf("price:%s", token) }
