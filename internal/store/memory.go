package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hydrox/vault-engine/internal/model"
)

// MemoryStore implements Store and Ledger with in-memory maps. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	vault     *model.VaultSnapshot
	positions map[model.PositionKey]model.PositionSnapshot
	prices    map[model.AssetClass]model.PriceData
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[model.PositionKey]model.PositionSnapshot),
		prices:    make(map[model.AssetClass]model.PriceData),
	}
}

func (s *MemoryStore) GetVault(_ context.Context) (*model.VaultSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vault == nil {
		return nil, fmt.Errorf("vault: %w", ErrNotFound)
	}
	// Copy to avoid external mutation.
	snap := model.VaultSnapshot{Ref: s.vault.Ref, State: s.vault.State.Clone()}
	return &snap, nil
}

func (s *MemoryStore) PutVault(_ context.Context, snap model.VaultSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vault = &model.VaultSnapshot{Ref: snap.Ref, State: snap.State.Clone()}
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, key model.PositionKey) (*model.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[key]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", key, ErrNotFound)
	}
	return &p, nil
}

func (s *MemoryStore) ListPositions(_ context.Context) ([]model.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]model.PositionSnapshot, 0, len(s.positions))
	for _, p := range s.positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Record.Key().String() < positions[j].Record.Key().String()
	})
	return positions, nil
}

func (s *MemoryStore) PutPosition(_ context.Context, snap model.PositionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[snap.Record.Key()] = snap
	return nil
}

func (s *MemoryStore) DeletePosition(_ context.Context, key model.PositionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.positions, key)
	return nil
}

func (s *MemoryStore) GetPrice(_ context.Context, token model.AssetClass) (*model.PriceData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[token]
	if !ok {
		return nil, fmt.Errorf("price %s: %w", token, ErrNotFound)
	}
	return &p, nil
}

func (s *MemoryStore) ListPrices(_ context.Context) ([]model.PriceData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := make([]model.PriceData, 0, len(s.prices))
	for _, p := range s.prices {
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].Token.Less(prices[j].Token) })
	return prices, nil
}

func (s *MemoryStore) PutPrice(_ context.Context, price model.PriceData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[price.Token] = price
	return nil
}

// Commit applies c if its refs are still live. Every commit produces a new
// simulated transaction hash; the vault is output 0 and the position
// output 1.
func (s *MemoryStore) Commit(_ context.Context, c Commit) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vault == nil {
		return "", fmt.Errorf("vault: %w", ErrNotFound)
	}
	if s.vault.Ref != c.VaultRef {
		return "", fmt.Errorf("%w: vault %s (live %s)", ErrConflict, c.VaultRef, s.vault.Ref)
	}

	if c.PositionKey != nil {
		live, ok := s.positions[*c.PositionKey]
		switch {
		case c.PositionRef == "" && ok:
			return "", fmt.Errorf("%w: position %s already exists", ErrConflict, c.PositionKey)
		case c.PositionRef != "" && (!ok || live.Ref != c.PositionRef):
			return "", fmt.Errorf("%w: position %s %s", ErrConflict, c.PositionKey, c.PositionRef)
		}
	}

	tx := uuid.NewString()
	vaultRef := tx + "#0"
	s.vault = &model.VaultSnapshot{Ref: vaultRef, State: c.Vault.Clone()}

	if c.PositionKey != nil {
		if c.Position == nil {
			delete(s.positions, *c.PositionKey)
		} else {
			s.positions[*c.PositionKey] = model.PositionSnapshot{Ref: tx + "#1", Record: *c.Position}
		}
	}
	return vaultRef, nil
}
