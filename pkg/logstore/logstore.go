// Package logstore persists structured event logs encrypted at rest with a
// fixed time-to-live. Each record is encrypted with a fresh AES-256-CBC key
// and IV stored alongside the ciphertext; this gives weak at-rest secrecy
// and is a documented limitation of the protocol, not an oversight to fix
// here. Expired records are removed eagerly on access and by a periodic
// sweep.
package logstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/blockpass/omega/pkg/api"
)

// DefaultTTL is the fixed log retention window.
const DefaultTTL = 7 * 24 * time.Hour

// Sentinel errors for log retrieval.
var (
	// ErrNotFound is returned when a reference never existed or the record
	// was already removed.
	ErrNotFound = errors.New("log not found")

	// ErrExpired is returned once for a record read past its expiry; the
	// record is deleted in the same call.
	ErrExpired = errors.New("log expired and removed")
)

// StoredRef is returned after a log is persisted.
type StoredRef struct {
	Ref        string `json:"ref"`
	ArchiveRef string `json:"archiveRef"`
	Timestamp  int64  `json:"timestamp"`
}

// Stats summarizes store contents.
type Stats struct {
	Total   int `json:"totalLogs"`
	Active  int `json:"activeLogs"`
	Expired int `json:"expiredLogs"`
}

// record is one encrypted log entry. The lifecycle is
// create -> read-many -> expire/delete.
type record struct {
	archiveRef string
	ciphertext []byte
	key        []byte
	iv         []byte
	createdAt  int64
	expiresAt  time.Time
}

// Store is a concurrency-safe encrypted log store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
	ttl     time.Duration
	logger  *slog.Logger
}

// New creates a log store. A ttl of 0 selects DefaultTTL.
func New(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		records: make(map[string]*record),
		ttl:     ttl,
		logger:  logger,
	}
}

// Store encrypts the payload with a fresh key and IV and persists it with
// an expiry of now plus the store's TTL.
func (s *Store) Store(payload any) (*StoredRef, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	ciphertext, key, iv, err := encrypt(plaintext)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ref := api.NewLogRef()
	rec := &record{
		archiveRef: api.NewArchiveRef(),
		ciphertext: ciphertext,
		key:        key,
		iv:         iv,
		createdAt:  now.UnixMilli(),
		expiresAt:  now.Add(s.ttl),
	}

	s.mu.Lock()
	s.records[ref] = rec
	s.mu.Unlock()

	s.logger.Debug("log stored", "ref", ref)

	return &StoredRef{
		Ref:        ref,
		ArchiveRef: rec.archiveRef,
		Timestamp:  rec.createdAt,
	}, nil
}

// Retrieve decrypts and returns the payload for a reference. A record read
// past its expiry is deleted and reported as ErrExpired; subsequent reads
// of the same reference return ErrNotFound.
func (s *Store) Retrieve(ref string) (json.RawMessage, error) {
	s.mu.Lock()
	rec, ok := s.records[ref]
	if ok && time.Now().After(rec.expiresAt) {
		delete(s.records, ref)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrExpired, ref)
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	return decrypt(rec.ciphertext, rec.key, rec.iv)
}

// UserLogs returns the decrypted payloads whose "userId" field matches,
// most recent first, capped at limit.
func (s *Store) UserLogs(userID string, limit int) []api.LogSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.LogSummary
	for ref, rec := range s.records {
		plaintext, err := decrypt(rec.ciphertext, rec.key, rec.iv)
		if err != nil {
			continue
		}

		var fields struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(plaintext, &fields); err != nil || fields.UserID != userID {
			continue
		}

		out = append(out, api.LogSummary{
			Ref:       ref,
			Payload:   plaintext,
			Timestamp: rec.createdAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CleanupExpired removes every record past its expiry and returns the
// count removed. Safe to run concurrently with foreground traffic.
func (s *Store) CleanupExpired() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ref, rec := range s.records {
		if now.After(rec.expiresAt) {
			delete(s.records, ref)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("expired logs removed", "count", removed)
	}
	return removed
}

// Stats returns store totals.
func (s *Store) Stats() Stats {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.records)}
	for _, rec := range s.records {
		if now.After(rec.expiresAt) {
			st.Expired++
		} else {
			st.Active++
		}
	}
	return st
}

// encrypt seals plaintext with AES-256-CBC under a fresh key and IV.
func encrypt(plaintext []byte) (ciphertext, key, iv []byte, err error) {
	key = make([]byte, 32)
	if _, err = rand.Read(key); err != nil {
		return nil, nil, nil, fmt.Errorf("generating key: %w", err)
	}
	iv = make([]byte, aes.BlockSize)
	if _, err = rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("generating iv: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext, key, iv, nil
}

// decrypt opens an AES-256-CBC ciphertext with its stored key and IV.
func decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("malformed ciphertext")
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	return pkcs7Unpad(padded, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("malformed padding")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("malformed padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("malformed padding")
		}
	}
	return data[:len(data)-n], nil
}
