// Package identity implements the identity ledger: it mints DIDs, stores
// their documents in an append-only hash-linked block sequence, and
// resolves and verifies them against the recorded hashes.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	omegacrypto "github.com/blockpass/omega/pkg/crypto"
)

// ErrNotFound is returned when a DID is not present in the ledger.
var ErrNotFound = errors.New("did not found")

// genesisPreviousHash is the previous-hash value of the first block.
const genesisPreviousHash = "0"

// Block is one entry in the hash-linked ledger. PreviousHash links to the
// document hash of the preceding block; the chain is append-only.
type Block struct {
	Index        int    `json:"index"`
	Timestamp    int64  `json:"timestamp"`
	DID          string `json:"did"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previousHash"`

	// documentJSON is the canonical serialization the block hash covers.
	documentJSON []byte
}

// registryEntry ties a DID to its document, key material, and block position.
type registryEntry struct {
	document   *Document
	privateKey string
	blockIndex int
}

// Ledger is a concurrency-safe, append-only DID ledger.
type Ledger struct {
	mu       sync.RWMutex
	chain    []Block
	registry map[string]*registryEntry
	logger   *slog.Logger
}

// NewLedger creates an empty identity ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		registry: make(map[string]*registryEntry),
		logger:   logger,
	}
}

// CreateDID mints a DID for the given user, tenant domain, and device hash,
// generates its key pair, and appends a new block linking to the previous
// block's document hash. Returns the DID, its document, and the private key
// material (hex encoded).
func (l *Ledger) CreateDID(userID, domain, deviceHash string) (string, *Document, string, error) {
	did := deriveDID(userID, domain, deviceHash)

	publicKey, privateKey, err := newKeyPair()
	if err != nil {
		return "", nil, "", err
	}

	doc := buildDocument(did, publicKey)

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", nil, "", fmt.Errorf("marshaling document: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	previousHash := genesisPreviousHash
	if n := len(l.chain); n > 0 {
		previousHash = l.chain[n-1].Hash
	}

	block := Block{
		Index:        len(l.chain),
		Timestamp:    time.Now().UnixMilli(),
		DID:          did,
		Hash:         omegacrypto.Hash(string(docJSON)),
		PreviousHash: previousHash,
		documentJSON: docJSON,
	}

	l.chain = append(l.chain, block)
	l.registry[did] = &registryEntry{
		document:   doc,
		privateKey: privateKey,
		blockIndex: block.Index,
	}

	l.logger.Info("did registered", "did", did, "block", block.Index)

	return did, doc, privateKey, nil
}

// ResolveDID returns the document for a DID, or ErrNotFound.
func (l *Ledger) ResolveDID(did string) (*Document, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.registry[did]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, did)
	}
	return entry.document, nil
}

// VerifyDID recomputes the document hash for a DID and compares it to the
// hash recorded in its block. Any mismatch or absence returns false, never
// an error.
func (l *Ledger) VerifyDID(did string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.registry[did]
	if !ok {
		return false
	}

	block := l.chain[entry.blockIndex]
	computed := omegacrypto.Hash(string(block.documentJSON))
	return block.Hash == computed
}

// ValidateChain walks the full block sequence, checking both the
// previous-hash linkage and each block's own document hash. Any break
// returns false; the chain is never repaired.
func (l *Ledger) ValidateChain() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := range l.chain {
		block := &l.chain[i]

		if omegacrypto.Hash(string(block.documentJSON)) != block.Hash {
			return false
		}

		if i == 0 {
			continue
		}
		if block.PreviousHash != l.chain[i-1].Hash {
			return false
		}
	}
	return true
}

// Chain returns a copy of the block sequence.
func (l *Ledger) Chain() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Block, len(l.chain))
	copy(out, l.chain)
	return out
}

// Len returns the number of blocks in the chain.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}
