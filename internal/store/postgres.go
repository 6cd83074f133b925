package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hydrox/vault-engine/internal/model"
)

// PostgresStore implements Store over the chain indexer's tables.
// Position amounts are stored as NUMERIC for exact integer precision; the
// vault datum is kept whole as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

//go:embed schema.sql
var schema string

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) GetVault(ctx context.Context) (*model.VaultSnapshot, error) {
	var (
		snap  model.VaultSnapshot
		datum []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT ref, datum
		 FROM vault_snapshots WHERE NOT spent
		 ORDER BY created_at DESC LIMIT 1`).
		Scan(&snap.Ref, &datum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("vault: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get vault: %w", err)
	}

	if err := json.Unmarshal(datum, &snap.State); err != nil {
		return nil, fmt.Errorf("decode vault %s: %w", snap.Ref, err)
	}
	return &snap, nil
}

func (s *PostgresStore) PutVault(ctx context.Context, snap model.VaultSnapshot) error {
	datum, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("encode vault: %w", err)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE vault_snapshots SET spent = TRUE WHERE NOT spent`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO vault_snapshots (ref, datum, spent, created_at)
			 VALUES ($1, $2, FALSE, now())`,
			snap.Ref, datum,
		)
		return err
	})
}

const positionColumns = `ref, account, index_policy, index_asset, side,
	collateral::TEXT, size::TEXT, average_price::TEXT, entry_funding_rate::TEXT,
	last_increased_time`

func (s *PostgresStore) GetPosition(ctx context.Context, key model.PositionKey) (*model.PositionSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM positions
		 WHERE account = $1 AND index_policy = $2 AND index_asset = $3 AND side = $4`,
		key.Account, key.IndexToken.PolicyID, key.IndexToken.AssetName, string(key.Side))
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", key, err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", key, err)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("position %s: %w", key, ErrNotFound)
	}
	return &positions[0], nil
}

func (s *PostgresStore) ListPositions(ctx context.Context) ([]model.PositionSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM positions
		 ORDER BY account, index_policy, index_asset, side`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

func (s *PostgresStore) PutPosition(ctx context.Context, snap model.PositionSnapshot) error {
	p := snap.Record
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (ref, account, index_policy, index_asset, side,
		                        collateral, size, average_price, entry_funding_rate, last_increased_time)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10)
		 ON CONFLICT (account, index_policy, index_asset, side) DO UPDATE
		 SET ref = EXCLUDED.ref,
		     collateral = EXCLUDED.collateral,
		     size = EXCLUDED.size,
		     average_price = EXCLUDED.average_price,
		     entry_funding_rate = EXCLUDED.entry_funding_rate,
		     last_increased_time = EXCLUDED.last_increased_time`,
		snap.Ref, p.Account, p.IndexToken.PolicyID, p.IndexToken.AssetName, string(p.Side),
		p.Collateral.String(), p.Size.String(), p.AveragePrice.String(), p.EntryFundingRate.String(),
		p.LastIncreasedTime,
	)
	return err
}

func (s *PostgresStore) DeletePosition(ctx context.Context, key model.PositionKey) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM positions
		 WHERE account = $1 AND index_policy = $2 AND index_asset = $3 AND side = $4`,
		key.Account, key.IndexToken.PolicyID, key.IndexToken.AssetName, string(key.Side))
	return err
}

func (s *PostgresStore) GetPrice(ctx context.Context, token model.AssetClass) (*model.PriceData, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT token_policy, token_asset, price::TEXT, timestamp, confidence_bps
		 FROM oracle_prices
		 WHERE token_policy = $1 AND token_asset = $2
		 ORDER BY timestamp DESC LIMIT 1`,
		token.PolicyID, token.AssetName)
	if err != nil {
		return nil, fmt.Errorf("get price %s: %w", token, err)
	}
	defer rows.Close()

	prices, err := scanPrices(rows)
	if err != nil {
		return nil, fmt.Errorf("get price %s: %w", token, err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("price %s: %w", token, ErrNotFound)
	}
	return &prices[0], nil
}

func (s *PostgresStore) ListPrices(ctx context.Context) ([]model.PriceData, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (token_policy, token_asset)
		        token_policy, token_asset, price::TEXT, timestamp, confidence_bps
		 FROM oracle_prices
		 ORDER BY token_policy, token_asset, timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPrices(rows)
}

func (s *PostgresStore) PutPrice(ctx context.Context, p model.PriceData) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO oracle_prices (token_policy, token_asset, price, timestamp, confidence_bps)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)`,
		p.Token.PolicyID, p.Token.AssetName, p.Price.String(), p.Timestamp, p.ConfidenceBps,
	)
	return err
}

// pgxRows is the subset of pgx.Rows the scanners read.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanPositions(rows pgxRows) ([]model.PositionSnapshot, error) {
	var positions []model.PositionSnapshot
	for rows.Next() {
		var snap model.PositionSnapshot
		var side, collateralS, sizeS, avgPriceS, entryS string
		p := &snap.Record
		if err := rows.Scan(&snap.Ref, &p.Account, &p.IndexToken.PolicyID, &p.IndexToken.AssetName, &side,
			&collateralS, &sizeS, &avgPriceS, &entryS, &p.LastIncreasedTime); err != nil {
			return nil, err
		}
		p.Side = model.Side(side)

		var err error
		if p.Collateral, err = parseNumeric(collateralS); err != nil {
			return nil, err
		}
		if p.Size, err = parseNumeric(sizeS); err != nil {
			return nil, err
		}
		if p.AveragePrice, err = parseNumeric(avgPriceS); err != nil {
			return nil, err
		}
		if p.EntryFundingRate, err = parseNumeric(entryS); err != nil {
			return nil, err
		}
		positions = append(positions, snap)
	}
	return positions, rows.Err()
}

func scanPrices(rows pgxRows) ([]model.PriceData, error) {
	var prices []model.PriceData
	for rows.Next() {
		var (
			p      model.PriceData
			priceS string
		)
		if err := rows.Scan(&p.Token.PolicyID, &p.Token.AssetName, &priceS, &p.Timestamp, &p.ConfidenceBps); err != nil {
			return nil, err
		}
		var err error
		if p.Price, err = parseNumeric(priceS); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// parseNumeric reads a NUMERIC column rendered as TEXT.
func parseNumeric(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("numeric %q: %w", s, err)
	}
	return d, nil
}
