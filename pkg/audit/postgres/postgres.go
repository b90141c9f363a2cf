// Package postgres provides a PostgreSQL implementation of audit.Backend,
// serving as the external ledger endpoint of the audit layer. It uses
// pgx/v5 for connection pooling and JSONB for event storage.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blockpass/omega/pkg/audit"
	"github.com/blockpass/omega/pkg/credential"
)

// Backend is a PostgreSQL-backed audit record store.
type Backend struct {
	pool *pgxpool.Pool
}

// Ensure Backend implements audit.Backend at compile time.
var _ audit.Backend = (*Backend)(nil)

// New creates a new PostgreSQL audit backend. If MigrateOnStart is true,
// schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	b := &Backend{pool: pool}

	if cfg.MigrateOnStart {
		if err := b.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return b, nil
}

// Append inserts an audit record and returns the assigned sequence number.
func (b *Backend) Append(ctx context.Context, rec *audit.Record) (int64, error) {
	eventJSON, err := json.Marshal(rec.Event)
	if err != nil {
		return 0, fmt.Errorf("marshaling event: %w", err)
	}

	var seq int64
	err = b.pool.QueryRow(ctx, `
		INSERT INTO audit_records (
			ref, receipt_hash, user_id, did, tx_id,
			event, event_timestamp, tx_hash, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING sequence
	`,
		rec.Ref, rec.ReceiptHash, rec.Event.UserID, rec.Event.DID, rec.Event.TxID,
		eventJSON, rec.Timestamp, rec.TxHash, rec.Status,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("inserting audit record: %w", err)
	}

	return seq, nil
}

// Get returns the earliest record matching the receipt hash.
func (b *Backend) Get(ctx context.Context, receiptHash string) (*audit.Record, error) {
	row := b.pool.QueryRow(ctx, `
		SELECT sequence, ref, receipt_hash, event, event_timestamp, tx_hash, status
		FROM audit_records
		WHERE receipt_hash = $1
		ORDER BY sequence
		LIMIT 1
	`, receiptHash)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", audit.ErrNotFound, receiptHash)
		}
		return nil, fmt.Errorf("querying audit record: %w", err)
	}
	return rec, nil
}

// ByUser returns all records for a user in sequence order.
func (b *Backend) ByUser(ctx context.Context, userID string) ([]audit.Record, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT sequence, ref, receipt_hash, event, event_timestamp, tx_hash, status
		FROM audit_records
		WHERE user_id = $1
		ORDER BY sequence
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// HealthCheck verifies database connectivity.
func (b *Backend) HealthCheck(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Close releases the connection pool.
func (b *Backend) Close() {
	b.pool.Close()
}

// rowScanner abstracts pgx.Row and pgx.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*audit.Record, error) {
	var (
		rec       audit.Record
		eventJSON []byte
	)
	if err := row.Scan(
		&rec.Sequence, &rec.Ref, &rec.ReceiptHash,
		&eventJSON, &rec.Timestamp, &rec.TxHash, &rec.Status,
	); err != nil {
		return nil, err
	}

	var event credential.AuthEvent
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		return nil, fmt.Errorf("unmarshaling event: %w", err)
	}
	rec.Event = event

	return &rec, nil
}
