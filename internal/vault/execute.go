package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"

	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/store"
)

// ErrStaleSnapshot is returned by a Submitter when the vault or position
// output a plan was built from has already been spent.
var ErrStaleSnapshot = errors.New("vault: snapshot already spent")

// Source loads the snapshots a plan is computed from. store.Store
// satisfies it.
type Source interface {
	GetVault(ctx context.Context) (*model.VaultSnapshot, error)
	GetPosition(ctx context.Context, key model.PositionKey) (*model.PositionSnapshot, error)
	GetPrice(ctx context.Context, token model.AssetClass) (*model.PriceData, error)
}

// Submitter hands a plan to the ledger.
type Submitter interface {
	Submit(ctx context.Context, plan *Plan) error
}

// Load fetches the snapshot r needs. Actions that target a position also
// load the oracle price of its index token; a missing position is left nil.
func Load(ctx context.Context, src Source, r model.Redeemer, now int64) (Snapshot, error) {
	vs, err := src.GetVault(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load vault: %w", err)
	}
	snap := Snapshot{Vault: *vs, Now: now}

	key, ok := model.TargetPosition(r)
	if !ok {
		return snap, nil
	}

	price, err := src.GetPrice(ctx, key.IndexToken)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load price %s: %w", key.IndexToken, err)
	}
	snap.Price = price.Price

	ps, err := src.GetPosition(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return Snapshot{}, fmt.Errorf("load position %s: %w", key, err)
	default:
		snap.Position = ps
	}
	return snap, nil
}

// Execute loads a snapshot, plans r against it and submits the plan. When
// the submitter reports ErrStaleSnapshot the whole cycle starts again from
// fresh snapshots, up to Config.MaxAttempts times. Any other error is
// returned at once.
func (p *Planner) Execute(ctx context.Context, src Source, sub Submitter, r model.Redeemer, now int64) (*Plan, error) {
	attempt := 0
	return retry.DoWithData(
		func() (*Plan, error) {
			attempt++
			snap, err := Load(ctx, src, r, now)
			if err != nil {
				return nil, err
			}
			plan, err := p.Plan(snap, r)
			if err != nil {
				return nil, err
			}
			if err := sub.Submit(ctx, plan); err != nil {
				return nil, fmt.Errorf("submit (attempt %d): %w", attempt, err)
			}
			return plan, nil
		},
		retry.Context(ctx),
		retry.Attempts(p.cfg.MaxAttempts),
		retry.Delay(p.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrStaleSnapshot)
		}),
	)
}

// LedgerSubmitter submits plans to a store that simulates the ledger.
type LedgerSubmitter struct {
	Ledger store.Ledger
}

// Submit commits plan against the refs it was built from.
func (s LedgerSubmitter) Submit(ctx context.Context, plan *Plan) error {
	_, err := s.Ledger.Commit(ctx, store.Commit{
		VaultRef:    plan.VaultRef,
		Vault:       plan.Vault,
		PositionKey: plan.PositionKey,
		PositionRef: plan.PositionRef,
		Position:    plan.Position,
	})
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrStaleSnapshot, err)
	}
	return err
}
