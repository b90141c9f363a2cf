// Package audit records a hash of every successful authentication as an
// immutable receipt. Records go to a primary ledger backend when one is
// configured and reachable; otherwise they land in an always-available
// local fallback. The caller-visible contract is identical either way.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/blockpass/omega/pkg/api"
	"github.com/blockpass/omega/pkg/credential"
	omegacrypto "github.com/blockpass/omega/pkg/crypto"
	"github.com/blockpass/omega/pkg/observability"
)

// ErrNotFound is returned when no record exists for a receipt hash.
var ErrNotFound = errors.New("audit record not found")

// DefaultBackendTimeout bounds how long a primary backend call may stall a
// login before the fallback path activates.
const DefaultBackendTimeout = 3 * time.Second

// Record is one immutable audit entry.
type Record struct {
	Ref         string               `json:"ref"`
	ReceiptHash string               `json:"receiptHash"`
	Event       credential.AuthEvent `json:"event"`
	Timestamp   int64                `json:"timestamp"`
	Sequence    int64                `json:"sequence"`
	TxHash      string               `json:"txHash"`
	Status      string               `json:"status"`
}

// Result is returned to the caller after a receipt is recorded. Its shape
// does not depend on which backend accepted the record.
type Result struct {
	Ref         string `json:"ref"`
	ReceiptHash string `json:"receiptHash"`
	Sequence    int64  `json:"sequence"`
	TxHash      string `json:"txHash"`
}

// Backend is an append-only store for audit records. Append assigns and
// returns the record's sequence number.
type Backend interface {
	Append(ctx context.Context, rec *Record) (int64, error)
	Get(ctx context.Context, receiptHash string) (*Record, error)
	ByUser(ctx context.Context, userID string) ([]Record, error)
}

// Layer is the audit layer. primary may be nil, in which case every record
// goes straight to the local fallback.
type Layer struct {
	primary  Backend
	fallback Backend
	timeout  time.Duration
	logger   *slog.Logger
}

// NewLayer creates an audit layer. primary is optional; timeout 0 selects
// DefaultBackendTimeout.
func NewLayer(primary Backend, timeout time.Duration, logger *slog.Logger) *Layer {
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{
		primary:  primary,
		fallback: NewMemoryBackend(),
		timeout:  timeout,
		logger:   logger,
	}
}

// Record computes the receipt hash for an authentication event and appends
// an audit record. Identical events hash identically but always produce a
// new record; the hash exists for later verification, not deduplication.
// Backend failures never surface to the caller.
func (l *Layer) Record(ctx context.Context, event credential.AuthEvent) (*Result, error) {
	rec := &Record{
		Ref:         api.NewReferenceID(),
		ReceiptHash: HashReceipt(event),
		Event:       event,
		Timestamp:   time.Now().UnixMilli(),
		TxHash:      api.NewReceiptTxHash(),
		Status:      "CONFIRMED",
	}

	if l.primary != nil {
		primaryCtx, cancel := context.WithTimeout(ctx, l.timeout)
		seq, err := l.primary.Append(primaryCtx, rec)
		cancel()
		if err == nil {
			rec.Sequence = seq
			l.logger.Info("audit receipt recorded", "receipt_hash", rec.ReceiptHash, "sequence", seq)
			return resultOf(rec), nil
		}
		observability.AuditFallbackTotal.Inc()
		l.logger.Warn("primary audit backend unavailable, using local fallback",
			"receipt_hash", rec.ReceiptHash, "error", err)
	}

	seq, err := l.fallback.Append(ctx, rec)
	if err != nil {
		return nil, err
	}
	rec.Sequence = seq

	l.logger.Info("audit receipt recorded locally", "receipt_hash", rec.ReceiptHash, "sequence", seq)
	return resultOf(rec), nil
}

// Get returns the audit record for a receipt hash, consulting the primary
// backend first and the local fallback second.
func (l *Layer) Get(ctx context.Context, receiptHash string) (*Record, error) {
	if l.primary != nil {
		primaryCtx, cancel := context.WithTimeout(ctx, l.timeout)
		rec, err := l.primary.Get(primaryCtx, receiptHash)
		cancel()
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrNotFound) {
			l.logger.Warn("primary audit backend query failed", "error", err)
		}
	}
	return l.fallback.Get(ctx, receiptHash)
}

// UserRecords returns all audit records for a user, primary records first.
func (l *Layer) UserRecords(ctx context.Context, userID string) ([]Record, error) {
	var out []Record

	if l.primary != nil {
		primaryCtx, cancel := context.WithTimeout(ctx, l.timeout)
		recs, err := l.primary.ByUser(primaryCtx, userID)
		cancel()
		if err != nil {
			l.logger.Warn("primary audit backend query failed", "error", err)
		} else {
			out = append(out, recs...)
		}
	}

	local, err := l.fallback.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append(out, local...), nil
}

// Verify recomputes the receipt hash from the stored event and compares it
// to the requested hash. Returns false for missing records.
func (l *Layer) Verify(ctx context.Context, receiptHash string) bool {
	rec, err := l.Get(ctx, receiptHash)
	if err != nil {
		return false
	}
	return HashReceipt(rec.Event) == receiptHash
}

// HashReceipt computes the deterministic receipt hash over the identifying
// fields of an authentication event.
func HashReceipt(event credential.AuthEvent) string {
	data, _ := json.Marshal(map[string]any{
		"txId":      event.TxID,
		"userId":    event.UserID,
		"did":       event.DID,
		"timestamp": event.Timestamp,
	})
	return omegacrypto.Hash(string(data))
}

func resultOf(rec *Record) *Result {
	return &Result{
		Ref:         rec.Ref,
		ReceiptHash: rec.ReceiptHash,
		Sequence:    rec.Sequence,
		TxHash:      rec.TxHash,
	}
}
