package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blockpass/omega/pkg/credential"
)

func testEvent(userID string) credential.AuthEvent {
	return credential.AuthEvent{
		TxID:       "tx_1756000000000_0123456789abcdef",
		UserID:     userID,
		DID:        "did:bdid:omega:aabbccdd:0011223344556677",
		DeviceHash: "devicehash",
		Timestamp:  1756000000000,
		Status:     "SUCCESS",
	}
}

// failingBackend simulates an unreachable external ledger.
type failingBackend struct{}

func (failingBackend) Append(context.Context, *Record) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingBackend) Get(context.Context, string) (*Record, error) {
	return nil, errors.New("connection refused")
}

func (failingBackend) ByUser(context.Context, string) ([]Record, error) {
	return nil, errors.New("connection refused")
}

func TestRecordWithoutPrimary(t *testing.T) {
	layer := NewLayer(nil, 0, nil)

	result, err := layer.Record(context.Background(), testEvent("alice"))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if result.Ref == "" || result.ReceiptHash == "" {
		t.Errorf("result missing ref or receipt hash: %+v", result)
	}
	if result.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", result.Sequence)
	}
}

func TestRecordFallsBackOnPrimaryFailure(t *testing.T) {
	layer := NewLayer(failingBackend{}, 100*time.Millisecond, nil)

	result, err := layer.Record(context.Background(), testEvent("alice"))
	if err != nil {
		t.Fatalf("Record should absorb primary failure, got %v", err)
	}
	if result.Sequence != 1 {
		t.Errorf("fallback sequence = %d, want 1", result.Sequence)
	}

	// The record is retrievable through the layer despite the dead primary.
	rec, err := layer.Get(context.Background(), result.ReceiptHash)
	if err != nil {
		t.Fatalf("Get after fallback: %v", err)
	}
	if rec.Event.UserID != "alice" {
		t.Errorf("record user = %q, want alice", rec.Event.UserID)
	}
}

func TestRecordUsesPrimaryWhenHealthy(t *testing.T) {
	primary := NewMemoryBackend()
	layer := NewLayer(primary, 0, nil)

	if _, err := layer.Record(context.Background(), testEvent("alice")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if primary.Len() != 1 {
		t.Errorf("primary holds %d records, want 1", primary.Len())
	}
}

func TestHashReceiptDeterministic(t *testing.T) {
	event := testEvent("alice")

	if HashReceipt(event) != HashReceipt(event) {
		t.Errorf("identical events should hash identically")
	}

	other := event
	other.Timestamp++
	if HashReceipt(event) == HashReceipt(other) {
		t.Errorf("different events should hash differently")
	}
}

func TestIdenticalEventsAppendTwice(t *testing.T) {
	layer := NewLayer(nil, 0, nil)
	event := testEvent("alice")

	first, _ := layer.Record(context.Background(), event)
	second, _ := layer.Record(context.Background(), event)

	if first.ReceiptHash != second.ReceiptHash {
		t.Errorf("identical events should share a receipt hash")
	}
	if first.Sequence == second.Sequence {
		t.Errorf("each record should get its own sequence number")
	}
}

func TestVerify(t *testing.T) {
	layer := NewLayer(nil, 0, nil)

	result, _ := layer.Record(context.Background(), testEvent("alice"))
	if !layer.Verify(context.Background(), result.ReceiptHash) {
		t.Errorf("stored record should verify")
	}
	if layer.Verify(context.Background(), "deadbeef") {
		t.Errorf("unknown hash should not verify")
	}
}

func TestGetNotFound(t *testing.T) {
	layer := NewLayer(nil, 0, nil)

	_, err := layer.Get(context.Background(), "deadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUserRecords(t *testing.T) {
	layer := NewLayer(nil, 0, nil)

	layer.Record(context.Background(), testEvent("alice"))
	layer.Record(context.Background(), testEvent("alice"))
	layer.Record(context.Background(), testEvent("bob"))

	recs, err := layer.UserRecords(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UserRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("alice records = %d, want 2", len(recs))
	}
}
