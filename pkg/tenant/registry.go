// Package tenant provides the read-mostly lookup interface to the tenant
// collaborator: API key resolution and usage counting. Tenant management
// itself (plans, key issuance, billing) lives outside the pipeline.
package tenant

import (
	"crypto/sha256"
	"crypto/subtle"
	"sync"
)

// Tenant is a snapshot of one tenant record. A UsageLimit of 0 means
// unlimited; the sentinel avoids infinite-value comparisons.
type Tenant struct {
	ID         string
	Name       string
	Domain     string
	Usage      int64
	UsageLimit int64
	Active     bool
}

// Unlimited reports whether the tenant has no usage cap.
func (t Tenant) Unlimited() bool {
	return t.UsageLimit == 0
}

// QuotaExceeded reports whether the tenant has exhausted its usage limit.
func (t Tenant) QuotaExceeded() bool {
	return !t.Unlimited() && t.Usage >= t.UsageLimit
}

// Entry is the configuration format for one tenant.
type Entry struct {
	APIKey     string
	ID         string
	Name       string
	Domain     string
	UsageLimit int64
	Active     bool
}

// state is the mutable per-tenant record behind a snapshot.
type state struct {
	keyHash [32]byte
	tenant  Tenant
}

// Registry resolves API keys to tenants. Keys are hashed immediately;
// plaintext keys are not retained. Comparison is constant time.
type Registry struct {
	mu      sync.RWMutex
	entries []*state
	byID    map[string]*state
}

// NewRegistry creates a registry from configured tenant entries.
func NewRegistry(entries []Entry) *Registry {
	r := &Registry{byID: make(map[string]*state, len(entries))}
	for _, e := range entries {
		st := &state{
			keyHash: sha256.Sum256([]byte(e.APIKey)),
			tenant: Tenant{
				ID:         e.ID,
				Name:       e.Name,
				Domain:     e.Domain,
				UsageLimit: e.UsageLimit,
				Active:     e.Active,
			},
		}
		r.entries = append(r.entries, st)
		r.byID[e.ID] = st
	}
	return r
}

// Resolve returns the tenant snapshot for an API key, or false when the
// key is unknown. Inactive tenants are returned with Active=false so the
// caller can distinguish "unknown key" from "disabled tenant".
func (r *Registry) Resolve(apiKey string) (Tenant, bool) {
	keyHash := sha256.Sum256([]byte(apiKey))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, st := range r.entries {
		if subtle.ConstantTimeCompare(keyHash[:], st.keyHash[:]) == 1 {
			return st.tenant, true
		}
	}
	return Tenant{}, false
}

// Consume increments the tenant's usage counter.
func (r *Registry) Consume(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.byID[tenantID]; ok {
		st.tenant.Usage++
	}
}

// Usage returns the tenant's current usage count.
func (r *Registry) Usage(tenantID string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if st, ok := r.byID[tenantID]; ok {
		return st.tenant.Usage
	}
	return 0
}
