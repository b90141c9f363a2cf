// Package orchestrator composes the digest, identity, credential, audit,
// session, and log components into the register, login, verify, and logout
// flows. It owns no ledger state, only the wiring between them and the
// transient context of each request.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/blockpass/omega/pkg/api"
	"github.com/blockpass/omega/pkg/audit"
	"github.com/blockpass/omega/pkg/credential"
	omegacrypto "github.com/blockpass/omega/pkg/crypto"
	"github.com/blockpass/omega/pkg/envelope"
	"github.com/blockpass/omega/pkg/identity"
	"github.com/blockpass/omega/pkg/logstore"
	"github.com/blockpass/omega/pkg/observability"
	"github.com/blockpass/omega/pkg/session"
	"github.com/blockpass/omega/pkg/tenant"
)

// Client carries the per-request device context used for fingerprinting.
type Client struct {
	UserAgent  string
	RemoteAddr string
}

// Deps are the collaborators an orchestrator composes. All stores are
// constructed by the host process and injected; none are package globals.
type Deps struct {
	Tenants     *tenant.Registry
	Identity    *identity.Ledger
	Credentials *credential.Ledger
	Audit       *audit.Layer
	Sessions    *session.Manager
	Logs        *logstore.Store
	Signer      *envelope.Signer
	SessionTTL  time.Duration
	Logger      *slog.Logger
}

// Orchestrator executes the cross-ledger authentication flows.
type Orchestrator struct {
	tenants     *tenant.Registry
	identity    *identity.Ledger
	credentials *credential.Ledger
	audit       *audit.Layer
	sessions    *session.Manager
	logs        *logstore.Store
	signer      *envelope.Signer
	sessionTTL  time.Duration
	logger      *slog.Logger
}

// New creates an orchestrator from its injected collaborators.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		tenants:     deps.Tenants,
		identity:    deps.Identity,
		credentials: deps.Credentials,
		audit:       deps.Audit,
		sessions:    deps.Sessions,
		logs:        deps.Logs,
		signer:      deps.Signer,
		sessionTTL:  deps.SessionTTL,
		logger:      logger,
	}
}

// Register creates a new user: device fingerprint, password digest, DID
// block, credential record, and an encrypted registration log.
func (o *Orchestrator) Register(ctx context.Context, req api.RegisterRequest, client Client) (*api.RegisterResponse, error) {
	t, apiErr := o.resolveTenant(req.APIKey)
	if apiErr != nil {
		return nil, apiErr
	}

	if o.credentials.Exists(req.UserID) {
		return nil, api.NewConflictError("user already registered")
	}

	deviceHash := omegacrypto.DeviceHash(client.UserAgent, client.RemoteAddr)
	digest := omegacrypto.HashPassword(req.Password, "", "")

	did, doc, _, err := o.identity.CreateDID(req.UserID, t.Domain, deviceHash)
	if err != nil {
		o.logger.Error("did creation failed", "user_id", req.UserID, "error", err)
		return nil, api.NewServerError("identity registration failed")
	}

	receipt := o.credentials.RegisterUser(req.UserID, digest, did, deviceHash)

	stored, err := o.logs.Store(map[string]any{
		"event":     "REGISTRATION",
		"userId":    req.UserID,
		"did":       did,
		"txId":      receipt.TxID,
		"tenantId":  t.ID,
		"timestamp": receipt.Timestamp,
	})
	if err != nil {
		o.logger.Error("registration log failed", "user_id", req.UserID, "error", err)
		return nil, api.NewServerError("event log failed")
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, api.NewServerError("encoding did document failed")
	}

	observability.RegistrationsTotal.Inc()
	o.logger.Info("registration complete", "user_id", req.UserID, "did", did, "tenant", t.ID)

	return &api.RegisterResponse{
		UserID:     req.UserID,
		DID:        did,
		Document:   docJSON,
		TxID:       receipt.TxID,
		LogRef:     stored.Ref,
		ArchiveRef: stored.ArchiveRef,
	}, nil
}

// Login authenticates a user and, on success, records an audit receipt,
// opens a session, consumes tenant usage, persists a login log, and issues
// the signed credential envelope.
func (o *Orchestrator) Login(ctx context.Context, req api.LoginRequest, client Client) (*api.LoginResponse, error) {
	t, apiErr := o.resolveTenant(req.APIKey)
	if apiErr != nil {
		return nil, apiErr
	}

	if t.QuotaExceeded() {
		observability.RateLimitRejectedTotal.WithLabelValues(t.ID).Inc()
		return nil, api.NewRateLimitedError("tenant usage limit exceeded")
	}

	deviceHash := omegacrypto.DeviceHash(client.UserAgent, client.RemoteAddr)

	// Digest with the stored salt and nonce when the user exists. An
	// unknown user still goes through the ledger so the attempt is
	// recorded as a transaction.
	var presentedHash, did string
	if record, ok := o.credentials.GetUser(req.UserID); ok {
		if !o.identity.VerifyDID(record.DID) {
			o.logFailure(req.UserID, "identity verification failed")
			return nil, api.NewUnauthorizedError("identity verification failed")
		}
		presentedHash = omegacrypto.HashPassword(req.Password, record.Salt, record.Nonce).Hash
		did = record.DID
	}

	outcome := o.credentials.AuthenticateUser(req.UserID, presentedHash, did, deviceHash)

	switch outcome.Kind {
	case credential.OutcomeUserNotFound:
		observability.LoginOutcomesTotal.WithLabelValues("user_not_found").Inc()
		o.logFailure(req.UserID, "user not found")
		return nil, api.NewNotFoundError("user not found")

	case credential.OutcomeAccountLocked:
		observability.LoginOutcomesTotal.WithLabelValues("account_locked").Inc()
		o.logFailure(req.UserID, "account locked")
		return nil, api.NewAccountLockedError()

	case credential.OutcomeInvalidCredentials:
		observability.LoginOutcomesTotal.WithLabelValues("invalid_credentials").Inc()
		o.logFailure(req.UserID, "invalid credentials")
		return nil, api.NewInvalidCredentialsError(outcome.Attempts)
	}

	result, err := o.audit.Record(ctx, *outcome.Event)
	if err != nil {
		o.logger.Error("audit record failed", "user_id", req.UserID, "error", err)
		return nil, api.NewServerError("audit record failed")
	}

	handle := o.sessions.Create(req.UserID, did, o.sessionTTL)
	o.tenants.Consume(t.ID)

	stored, err := o.logs.Store(map[string]any{
		"event":          "LOGIN",
		"userId":         req.UserID,
		"did":            did,
		"txId":           outcome.TxID,
		"sessionAddress": handle.Address,
		"receiptHash":    result.ReceiptHash,
		"timestamp":      outcome.Event.Timestamp,
	})
	if err != nil {
		o.logger.Error("login log failed", "user_id", req.UserID, "error", err)
		return nil, api.NewServerError("event log failed")
	}

	token, err := o.signer.Issue(req.UserID, did, t.ID, handle.Address)
	if err != nil {
		o.logger.Error("envelope issue failed", "user_id", req.UserID, "error", err)
		return nil, api.NewServerError("issuing credential envelope failed")
	}

	observability.LoginOutcomesTotal.WithLabelValues("success").Inc()
	o.logger.Info("login complete", "user_id", req.UserID, "session", handle.Address, "tenant", t.ID)

	return &api.LoginResponse{
		Token:          token,
		SessionAddress: handle.Address,
		DID:            did,
		ReceiptHash:    result.ReceiptHash,
		AuditRef:       result.Ref,
		LogRef:         stored.Ref,
	}, nil
}

// Verify decodes a credential envelope, validates the referenced session,
// and re-verifies the DID. All invalidity is reported in the response, not
// as an error.
func (o *Orchestrator) Verify(ctx context.Context, token string) *api.VerifyResponse {
	claims, err := o.signer.Parse(token)
	if err != nil {
		return &api.VerifyResponse{Valid: false, Reason: "Invalid token"}
	}

	if v := o.sessions.Validate(claims.SessionAddress); !v.Valid {
		return &api.VerifyResponse{Valid: false, Reason: "Invalid session"}
	}

	if !o.identity.VerifyDID(claims.DID) {
		return &api.VerifyResponse{
			Valid:  false,
			UserID: claims.UserID,
			DID:    claims.DID,
			Reason: "Identity verification failed",
		}
	}

	return &api.VerifyResponse{
		Valid:    true,
		UserID:   claims.UserID,
		DID:      claims.DID,
		DIDValid: true,
	}
}

// Logout decodes a credential envelope, invalidates the referenced session,
// and persists a logout log.
func (o *Orchestrator) Logout(ctx context.Context, token string) (*api.LogoutResponse, error) {
	claims, err := o.signer.Parse(token)
	if err != nil {
		return nil, api.NewUnauthorizedError("invalid token")
	}

	if err := o.sessions.Invalidate(claims.SessionAddress, "logout"); err != nil {
		return nil, api.NewUnauthorizedError("invalid session")
	}

	if _, err := o.logs.Store(map[string]any{
		"event":          "LOGOUT",
		"userId":         claims.UserID,
		"did":            claims.DID,
		"sessionAddress": claims.SessionAddress,
		"timestamp":      time.Now().UnixMilli(),
	}); err != nil {
		o.logger.Warn("logout log failed", "user_id", claims.UserID, "error", err)
	}

	o.logger.Info("logout complete", "user_id", claims.UserID, "session", claims.SessionAddress)
	return &api.LogoutResponse{OK: true}, nil
}

// UserLogs returns the caller's decrypted event logs, most recent first.
// The envelope must be valid and reference a live session.
func (o *Orchestrator) UserLogs(ctx context.Context, token, apiKey string, limit int) (*api.LogsResponse, error) {
	if _, apiErr := o.resolveTenant(apiKey); apiErr != nil {
		return nil, apiErr
	}

	claims, err := o.signer.Parse(token)
	if err != nil {
		return nil, api.NewUnauthorizedError("invalid token")
	}

	if v := o.sessions.Validate(claims.SessionAddress); !v.Valid {
		return nil, api.NewUnauthorizedError("invalid session")
	}

	logs := o.logs.UserLogs(claims.UserID, limit)
	return &api.LogsResponse{Count: len(logs), Logs: logs}, nil
}

// resolveTenant maps an API key to an active tenant.
func (o *Orchestrator) resolveTenant(apiKey string) (tenant.Tenant, *api.APIError) {
	t, ok := o.tenants.Resolve(apiKey)
	if !ok {
		return tenant.Tenant{}, api.NewUnauthorizedError("unknown api key")
	}
	if !t.Active {
		return tenant.Tenant{}, api.NewUnauthorizedError("tenant is inactive")
	}
	return t, nil
}

// logFailure persists a failed-login event. Log store failures here are
// reported but never abort the login response.
func (o *Orchestrator) logFailure(userID, reason string) {
	if _, err := o.logs.Store(map[string]any{
		"event":     "LOGIN_FAILED",
		"userId":    userID,
		"reason":    reason,
		"timestamp": time.Now().UnixMilli(),
	}); err != nil {
		o.logger.Warn("failure log failed", "user_id", userID, "error", err)
	}
}
