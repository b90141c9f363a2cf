// Package session manages ephemeral session handles: creation, validation,
// extension, and revocation. Sessions transition Active -> Expired (lazily
// on validate or by sweep) or Active -> Invalidated (explicit revoke); both
// states are terminal and sticky. Handles are never physically deleted,
// only marked invalid.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blockpass/omega/pkg/api"
	omegacrypto "github.com/blockpass/omega/pkg/crypto"
	"github.com/blockpass/omega/pkg/observability"
)

// DefaultTTL is the session lifetime applied when none is given.
const DefaultTTL = 24 * time.Hour

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when an address is unknown.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidated is returned when extending a session that is no
	// longer valid.
	ErrInvalidated = errors.New("session already invalidated")
)

// Handle is one server-side session record, referenced by its opaque
// contract address.
type Handle struct {
	Address            string    `json:"address"`
	UserID             string    `json:"userId"`
	DID                string    `json:"did"`
	SessionHash        string    `json:"sessionHash"`
	CreatedAt          time.Time `json:"createdAt"`
	ExpiresAt          time.Time `json:"expiresAt"`
	Valid              bool      `json:"isValid"`
	AccessCount        int       `json:"accessCount"`
	LastAccessedAt     time.Time `json:"lastAccessedAt"`
	InvalidatedAt      time.Time `json:"invalidatedAt,omitzero"`
	InvalidationReason string    `json:"invalidationReason,omitempty"`
}

// Validation is the result of a validate call.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Stats summarizes manager contents.
type Stats struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Invalid    int `json:"invalid"`
	Expired    int `json:"expired"`
	TotalUsers int `json:"totalUsers"`
}

// Manager owns all session handles, indexed by address and by owning user.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Handle
	userSessions map[string]map[string]struct{}
	logger       *slog.Logger
}

// NewManager creates an empty session manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:     make(map[string]*Handle),
		userSessions: make(map[string]map[string]struct{}),
		logger:       logger,
	}
}

// Create mints a session handle with a random address. A ttl of 0 selects
// DefaultTTL. Multiple sessions per user are supported.
func (m *Manager) Create(userID, did string, ttl time.Duration) *Handle {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	h := &Handle{
		Address:        api.NewSessionAddress(),
		UserID:         userID,
		DID:            did,
		SessionHash:    sessionHash(userID, did, now),
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		Valid:          true,
		LastAccessedAt: now,
	}

	m.mu.Lock()
	m.sessions[h.Address] = h
	if m.userSessions[userID] == nil {
		m.userSessions[userID] = make(map[string]struct{})
	}
	m.userSessions[userID][h.Address] = struct{}{}
	m.mu.Unlock()

	observability.ActiveSessions.Inc()
	m.logger.Info("session created", "address", h.Address, "user_id", userID)

	created := *h
	return &created
}

// Validate checks a session by address. An expired session is invalidated
// as a side effect and stays invalid even if time were rewound. A valid
// session has its access counter and last-access time bumped.
func (m *Manager) Validate(address string) Validation {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.sessions[address]
	if !ok {
		return Validation{Valid: false, Reason: "Session not found"}
	}

	if !h.Valid {
		return Validation{Valid: false, Reason: "Session invalidated"}
	}

	if time.Now().After(h.ExpiresAt) {
		m.invalidateLocked(h, "expired")
		return Validation{Valid: false, Reason: "Session expired"}
	}

	h.AccessCount++
	h.LastAccessedAt = time.Now()
	return Validation{Valid: true}
}

// Get returns a copy of the handle for an address.
func (m *Manager) Get(address string) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.sessions[address]
	if !ok {
		return Handle{}, false
	}
	return *h, true
}

// Invalidate marks a session invalid with the given reason.
func (m *Manager) Invalidate(address, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.sessions[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	if h.Valid {
		m.invalidateLocked(h, reason)
	}
	return nil
}

// InvalidateAllForUser revokes every still-valid session owned by a user
// and returns the count affected.
func (m *Manager) InvalidateAllForUser(userID, reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for address := range m.userSessions[userID] {
		if h, ok := m.sessions[address]; ok && h.Valid {
			m.invalidateLocked(h, reason)
			count++
		}
	}

	if count > 0 {
		m.logger.Info("user sessions invalidated", "user_id", userID, "count", count, "reason", reason)
	}
	return count
}

// Extend lengthens a session's expiry. Fails with ErrInvalidated for
// sessions that are no longer valid.
func (m *Manager) Extend(address string, additional time.Duration) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.sessions[address]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	if !h.Valid {
		return time.Time{}, ErrInvalidated
	}

	h.ExpiresAt = h.ExpiresAt.Add(additional)
	m.logger.Info("session extended", "address", address, "expires_at", h.ExpiresAt)
	return h.ExpiresAt, nil
}

// ActiveSessions returns copies of the user's currently valid, unexpired
// sessions.
func (m *Manager) ActiveSessions(userID string) []Handle {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Handle
	for address := range m.userSessions[userID] {
		if h, ok := m.sessions[address]; ok && h.Valid && !now.After(h.ExpiresAt) {
			out = append(out, *h)
		}
	}
	return out
}

// CleanupExpired invalidates every session whose expiry has passed but
// which no validate call has touched yet. Returns the count invalidated.
func (m *Manager) CleanupExpired() int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, h := range m.sessions {
		if h.Valid && now.After(h.ExpiresAt) {
			m.invalidateLocked(h, "expired")
			count++
		}
	}

	if count > 0 {
		m.logger.Info("expired sessions cleaned up", "count", count)
	}
	return count
}

// Stats returns manager totals.
func (m *Manager) Stats() Stats {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Total:      len(m.sessions),
		TotalUsers: len(m.userSessions),
	}
	for _, h := range m.sessions {
		switch {
		case !h.Valid:
			s.Invalid++
		case now.After(h.ExpiresAt):
			s.Expired++
		default:
			s.Valid++
		}
	}
	return s
}

// invalidateLocked marks a handle invalid. Must be called with the lock
// held and only for handles that are still valid.
func (m *Manager) invalidateLocked(h *Handle, reason string) {
	h.Valid = false
	h.InvalidatedAt = time.Now()
	h.InvalidationReason = reason
	observability.ActiveSessions.Dec()
	m.logger.Info("session invalidated", "address", h.Address, "reason", reason)
}

// sessionHash derives the handle's content hash from its identity fields
// and fresh randomness.
func sessionHash(userID, did string, createdAt time.Time) string {
	data := fmt.Sprintf("%s:%s:%d:%s", userID, did, createdAt.UnixMilli(), omegacrypto.NewToken(16))
	return omegacrypto.Hash(data)
}
