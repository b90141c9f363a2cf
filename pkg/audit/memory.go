package audit

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend is the local append-only fallback store. Retrieval by hash
// or user is a linear scan, acceptable at this data volume.
type MemoryBackend struct {
	mu      sync.RWMutex
	records []Record
}

// Ensure MemoryBackend implements Backend at compile time.
var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory audit store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Append stores a copy of the record and returns its sequence number.
func (b *MemoryBackend) Append(_ context.Context, rec *Record) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := *rec
	stored.Sequence = int64(len(b.records) + 1)
	b.records = append(b.records, stored)
	return stored.Sequence, nil
}

// Get returns the first record matching the receipt hash.
func (b *MemoryBackend) Get(_ context.Context, receiptHash string) (*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := range b.records {
		if b.records[i].ReceiptHash == receiptHash {
			rec := b.records[i]
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, receiptHash)
}

// ByUser returns all records for a user in append order.
func (b *MemoryBackend) ByUser(_ context.Context, userID string) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Record
	for i := range b.records {
		if b.records[i].Event.UserID == userID {
			out = append(out, b.records[i])
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}
