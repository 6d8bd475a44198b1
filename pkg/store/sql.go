package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chainlogistics/provenance/pkg/ledger"
)

// SQLStore implements ledger.Store using database/sql. It works over
// both Postgres and SQLite via standard drivers: records are stored
// whole as JSON, keyed by (product id) and (product id, stream,
// sequence), matching the ledger's point-write contract.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database handle and ensures the schema.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	product_id TEXT NOT NULL,
	stream TEXT NOT NULL,
	seq BIGINT NOT NULL,
	record TEXT NOT NULL,
	PRIMARY KEY (product_id, stream, seq)
);
`

func (s *SQLStore) migrate() error {
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

func (s *SQLStore) GetProduct(ctx context.Context, id string) (ledger.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT record FROM products WHERE id = $1`, id)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Product{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
		}
		return ledger.Product{}, err
	}
	var p ledger.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return ledger.Product{}, fmt.Errorf("decode product %s: %w", id, err)
	}
	return p, nil
}

func (s *SQLStore) HasProduct(ctx context.Context, id string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = $1`, id)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SQLStore) GetEvent(ctx context.Context, productID string, stream ledger.Stream, seq uint64) (ledger.TrackingEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM events WHERE product_id = $1 AND stream = $2 AND seq = $3`,
		productID, string(stream), int64(seq))

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.TrackingEvent{}, fmt.Errorf("%w: %s/%d", ledger.ErrEventNotFound, productID, seq)
		}
		return ledger.TrackingEvent{}, err
	}
	var ev ledger.TrackingEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ledger.TrackingEvent{}, fmt.Errorf("decode event %s/%d: %w", productID, seq, err)
	}
	return ev, nil
}

func (s *SQLStore) ListEvents(ctx context.Context, productID string, stream ledger.Stream, r ledger.Range) ([]ledger.TrackingEvent, error) {
	query := `SELECT record FROM events WHERE product_id = $1 AND stream = $2 AND seq >= $3 ORDER BY seq ASC`
	args := []any{productID, string(stream), int64(r.Start)}
	if r.Limit > 0 {
		query += ` LIMIT $4`
		args = append(args, r.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]ledger.TrackingEvent, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ev ledger.TrackingEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode event for %s: %w", productID, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Commit applies the mutation in one SQL transaction: the product
// record upsert and every event insert commit together or not at all.
// Events are plain inserts; the primary key rejects any attempt to
// overwrite history.
func (s *SQLStore) Commit(ctx context.Context, mut ledger.Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	record, err := json.Marshal(mut.Product)
	if err != nil {
		return fmt.Errorf("encode product %s: %w", mut.Product.ID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (id, record) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET record = excluded.record`,
		mut.Product.ID, string(record))
	if err != nil {
		return err
	}

	for _, ev := range mut.Events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %s/%d: %w", ev.ProductID, ev.Sequence, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (product_id, stream, seq, record) VALUES ($1, $2, $3, $4)`,
			ev.ProductID, string(ev.Stream), int64(ev.Sequence), string(raw))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLStore) Close() error { return s.db.Close() }
