// Package store defines the persistence interface for vault snapshots.
// Implementations include PostgreSQL (chain indexer tables), Redis
// (read-through cache), and in-memory (for testing and local simulation).
package store

import (
	"context"
	"errors"

	"github.com/hydrox/vault-engine/internal/model"
)

var (
	// ErrNotFound is returned when a snapshot does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned by Commit when a ref it spends is no longer
	// the live output.
	ErrConflict = errors.New("store: output already spent")
)

// Store is the persistence interface. Each snapshot carries the ref of the
// ledger output it was read from.
type Store interface {
	// --- Vault ---

	// GetVault returns the live vault snapshot.
	GetVault(ctx context.Context) (*model.VaultSnapshot, error)

	// PutVault replaces the live vault snapshot.
	PutVault(ctx context.Context, snap model.VaultSnapshot) error

	// --- Positions ---

	// GetPosition returns the live position for key.
	GetPosition(ctx context.Context, key model.PositionKey) (*model.PositionSnapshot, error)

	// ListPositions returns every live position.
	ListPositions(ctx context.Context) ([]model.PositionSnapshot, error)

	// PutPosition replaces the live position for the record's key.
	PutPosition(ctx context.Context, snap model.PositionSnapshot) error

	// DeletePosition marks the position for key as closed.
	DeletePosition(ctx context.Context, key model.PositionKey) error

	// --- Oracle ---

	// GetPrice returns the latest price for token.
	GetPrice(ctx context.Context, token model.AssetClass) (*model.PriceData, error)

	// ListPrices returns the latest price of every token.
	ListPrices(ctx context.Context) ([]model.PriceData, error)

	// PutPrice records a price.
	PutPrice(ctx context.Context, price model.PriceData) error
}

// Commit spends the vault output (and, for position actions, the position
// output) a plan was built from and replaces them with the plan's state.
type Commit struct {
	VaultRef    string
	Vault       model.VaultState
	PositionKey *model.PositionKey
	PositionRef string                // empty when the position is new
	Position    *model.PositionRecord // nil closes the position
}

// Ledger applies commits atomically. It stands in for transaction
// submission when no chain is attached.
type Ledger interface {
	// Commit applies c and returns the new vault ref. It returns
	// ErrConflict when a spent ref is stale.
	Commit(ctx context.Context, c Commit) (string, error)
}
