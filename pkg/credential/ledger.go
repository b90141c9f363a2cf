// Package credential implements the credential ledger: per-user registration
// and authentication against stored password digests, a lockout policy, and
// an append-only transaction log.
package credential

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/blockpass/omega/pkg/api"
	omegacrypto "github.com/blockpass/omega/pkg/crypto"
)

// DefaultLockThreshold is the number of consecutive failed attempts after
// which an account is locked.
const DefaultLockThreshold = 5

// TxType classifies a ledger transaction.
type TxType string

const (
	TxRegister     TxType = "REGISTER"
	TxLoginSuccess TxType = "LOGIN_SUCCESS"
	TxLoginFailed  TxType = "LOGIN_FAILED"
)

// Record is a per-user credential entry. Mutated only by the ledger:
// the failed-attempt counter resets on success, increments on failure,
// and flips the lock flag at the threshold.
type Record struct {
	UserID       string `json:"userId"`
	PasswordHash string `json:"passwordHash"`
	Salt         string `json:"salt"`
	Nonce        string `json:"nonce"`
	DID          string `json:"did"`
	DeviceHash   string `json:"deviceHash"`
	RegisteredAt int64  `json:"registeredAt"`
	LastLogin    int64  `json:"lastLogin"`
	Attempts     int    `json:"loginAttempts"`
	Locked       bool   `json:"isLocked"`
}

// Transaction is one append-only ledger entry. Never mutated after append.
type Transaction struct {
	TxID      string          `json:"txId"`
	Type      TxType          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
}

// Receipt is the proof returned for an appended transaction.
type Receipt struct {
	TxID        string `json:"txId"`
	Type        TxType `json:"type"`
	Timestamp   int64  `json:"timestamp"`
	Status      string `json:"status"`
	BlockNumber int    `json:"blockNumber"`
	Hash        string `json:"hash"`
}

// AuthEvent describes a successful authentication for downstream audit.
type AuthEvent struct {
	TxID       string `json:"txId"`
	UserID     string `json:"userId"`
	DID        string `json:"did"`
	DeviceHash string `json:"deviceHash"`
	Timestamp  int64  `json:"timestamp"`
	Status     string `json:"status"`
}

// OutcomeKind enumerates the possible authentication results.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeUserNotFound
	OutcomeAccountLocked
	OutcomeInvalidCredentials
)

// Outcome is the typed result of an authentication attempt. Failures are
// reported, never raised: only infrastructure faults surface as errors.
type Outcome struct {
	Kind     OutcomeKind
	TxID     string
	Attempts int        // populated for OutcomeInvalidCredentials
	Receipt  *Receipt   // populated for OutcomeSuccess
	Event    *AuthEvent // populated for OutcomeSuccess
}

// Stats summarizes ledger contents.
type Stats struct {
	TotalUsers        int `json:"totalUsers"`
	TotalTransactions int `json:"totalTransactions"`
	SuccessfulLogins  int `json:"successfulLogins"`
	FailedLogins      int `json:"failedLogins"`
}

// Ledger is a concurrency-safe credential ledger.
type Ledger struct {
	mu            sync.RWMutex
	records       map[string]*Record
	transactions  []Transaction
	lockThreshold int
	logger        *slog.Logger
}

// NewLedger creates a credential ledger. A lockThreshold of 0 selects
// DefaultLockThreshold.
func NewLedger(lockThreshold int, logger *slog.Logger) *Ledger {
	if lockThreshold <= 0 {
		lockThreshold = DefaultLockThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		records:       make(map[string]*Record),
		lockThreshold: lockThreshold,
		logger:        logger,
	}
}

// RegisterUser stores a credential record and appends a REGISTER
// transaction. Existence pre-checks are the caller's responsibility; the
// ledger does not reject duplicates itself.
func (l *Ledger) RegisterUser(userID string, digest omegacrypto.Digest, did, deviceHash string) *Receipt {
	now := time.Now().UnixMilli()

	record := &Record{
		UserID:       userID,
		PasswordHash: digest.Hash,
		Salt:         digest.Salt,
		Nonce:        digest.Nonce,
		DID:          did,
		DeviceHash:   deviceHash,
		RegisteredAt: now,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records[userID] = record
	receipt := l.appendTx(TxRegister, "VALID", record, now)

	l.logger.Info("user registered", "user_id", userID, "did", did, "tx_id", receipt.TxID)
	return receipt
}

// AuthenticateUser compares the presented digest against the stored record
// and returns a typed outcome. Every call appends exactly one transaction
// regardless of outcome. Five consecutive failures lock the account; the
// lock is permanent until an external unlock.
func (l *Ledger) AuthenticateUser(userID, passwordHash, did, deviceHash string) Outcome {
	now := time.Now().UnixMilli()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[userID]
	if !ok {
		receipt := l.appendTx(TxLoginFailed, "INVALID", map[string]any{
			"userId": userID,
			"reason": "user not found",
		}, now)
		return Outcome{Kind: OutcomeUserNotFound, TxID: receipt.TxID}
	}

	if record.Locked {
		receipt := l.appendTx(TxLoginFailed, "INVALID", map[string]any{
			"userId": userID,
			"did":    record.DID,
			"reason": "account locked",
		}, now)
		l.logger.Warn("login rejected, account locked", "user_id", userID, "tx_id", receipt.TxID)
		return Outcome{Kind: OutcomeAccountLocked, TxID: receipt.TxID}
	}

	if subtle.ConstantTimeCompare([]byte(record.PasswordHash), []byte(passwordHash)) != 1 {
		record.Attempts++
		if record.Attempts >= l.lockThreshold {
			record.Locked = true
		}

		receipt := l.appendTx(TxLoginFailed, "INVALID", map[string]any{
			"userId":   userID,
			"did":      record.DID,
			"attempts": record.Attempts,
		}, now)

		l.logger.Warn("login failed", "user_id", userID, "attempts", record.Attempts, "locked", record.Locked)
		return Outcome{Kind: OutcomeInvalidCredentials, TxID: receipt.TxID, Attempts: record.Attempts}
	}

	record.LastLogin = now
	record.Attempts = 0

	receipt := l.appendTx(TxLoginSuccess, "VALID", map[string]any{
		"userId":     userID,
		"did":        did,
		"deviceHash": deviceHash,
	}, now)

	event := &AuthEvent{
		TxID:       receipt.TxID,
		UserID:     userID,
		DID:        did,
		DeviceHash: deviceHash,
		Timestamp:  now,
		Status:     "SUCCESS",
	}

	l.logger.Info("login successful", "user_id", userID, "tx_id", receipt.TxID)
	return Outcome{Kind: OutcomeSuccess, TxID: receipt.TxID, Receipt: receipt, Event: event}
}

// GetUser returns a copy of the credential record for a user.
func (l *Ledger) GetUser(userID string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.records[userID]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// Exists reports whether a user is registered.
func (l *Ledger) Exists(userID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[userID]
	return ok
}

// GetTransaction returns the transaction with the given ID.
func (l *Ledger) GetTransaction(txID string) (Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := range l.transactions {
		if l.transactions[i].TxID == txID {
			return l.transactions[i], true
		}
	}
	return Transaction{}, false
}

// UserTransactions returns all transactions whose payload references userID,
// in append order.
func (l *Ledger) UserTransactions(userID string) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Transaction
	for i := range l.transactions {
		var payload struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(l.transactions[i].Payload, &payload); err != nil {
			continue
		}
		if payload.UserID == userID {
			out = append(out, l.transactions[i])
		}
	}
	return out
}

// Stats returns ledger totals.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		TotalUsers:        len(l.records),
		TotalTransactions: len(l.transactions),
	}
	for i := range l.transactions {
		switch l.transactions[i].Type {
		case TxLoginSuccess:
			s.SuccessfulLogins++
		case TxLoginFailed:
			s.FailedLogins++
		}
	}
	return s
}

// appendTx appends one transaction and builds its receipt. Must be called
// with the write lock held.
func (l *Ledger) appendTx(txType TxType, status string, payload any, now int64) *Receipt {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		// Payloads are ledger-owned structs and maps; marshaling cannot fail
		// for them, but keep the transaction well-formed if it ever does.
		payloadJSON = []byte("{}")
	}

	tx := Transaction{
		TxID:      api.NewTxID(),
		Type:      txType,
		Timestamp: now,
		Payload:   payloadJSON,
		Status:    status,
	}
	l.transactions = append(l.transactions, tx)

	return &Receipt{
		TxID:        tx.TxID,
		Type:        tx.Type,
		Timestamp:   tx.Timestamp,
		Status:      tx.Status,
		BlockNumber: len(l.transactions),
		Hash:        hashTransaction(tx),
	}
}

// hashTransaction computes the SHA-256 hash over the identifying fields of
// a transaction.
func hashTransaction(tx Transaction) string {
	data, _ := json.Marshal(map[string]any{
		"txId":      tx.TxID,
		"type":      tx.Type,
		"timestamp": tx.Timestamp,
		"data":      tx.Payload,
	})
	return omegacrypto.Hash(string(data))
}
