package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blockpass/omega/pkg/api"
	"github.com/blockpass/omega/pkg/audit"
	"github.com/blockpass/omega/pkg/credential"
	"github.com/blockpass/omega/pkg/envelope"
	"github.com/blockpass/omega/pkg/identity"
	"github.com/blockpass/omega/pkg/logstore"
	"github.com/blockpass/omega/pkg/orchestrator"
	"github.com/blockpass/omega/pkg/session"
	"github.com/blockpass/omega/pkg/tenant"
)

func newTestAdapter() *Adapter {
	orch := orchestrator.New(orchestrator.Deps{
		Tenants: tenant.NewRegistry([]tenant.Entry{
			{APIKey: "k1", ID: "tenant-1", Domain: "acme.example", Active: true},
		}),
		Identity:    identity.NewLedger(nil),
		Credentials: credential.NewLedger(0, nil),
		Audit:       audit.NewLayer(nil, 0, nil),
		Sessions:    session.NewManager(nil),
		Logs:        logstore.New(0, nil),
		Signer:      envelope.NewSigner("test-secret", 0),
		SessionTTL:  time.Hour,
	})

	cfg := DefaultConfig()
	cfg.MetricsEnabled = false
	return NewAdapter(orch, cfg, nil)
}

func newTestHandler() http.Handler {
	return newTestAdapter().Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *api.APIError {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestRegisterEndpoint(t *testing.T) {
	handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodPost, "/register",
		`{"userId":"alice","password":"Secr3t!","apiKey":"k1"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp api.RegisterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !strings.HasPrefix(resp.DID, "did:bdid:omega:") || resp.LogRef == "" {
		t.Errorf("response = %+v", resp)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID header")
	}
}

func TestRegisterValidation(t *testing.T) {
	handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodPost, "/register",
		`{"userId":"","password":"p","apiKey":"k1"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Param != "userId" {
		t.Errorf("param = %q, want userId", apiErr.Param)
	}
}

func TestRegisterBadJSON(t *testing.T) {
	handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodPost, "/register", `{"userId":`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRegisterWrongContentType(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("userId=alice"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestLoginVerifyLogoutFlow(t *testing.T) {
	handler := newTestHandler()

	doJSON(t, handler, http.MethodPost, "/register",
		`{"userId":"alice","password":"Secr3t!","apiKey":"k1"}`, "")

	rec := doJSON(t, handler, http.MethodPost, "/login",
		`{"userId":"alice","password":"Secr3t!","apiKey":"k1"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var login api.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decoding login: %v", err)
	}
	if login.Token == "" || !strings.HasPrefix(login.SessionAddress, "0xSs") {
		t.Errorf("login = %+v", login)
	}

	rec = doJSON(t, handler, http.MethodGet, "/verify", "", login.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d", rec.Code)
	}
	var verify api.VerifyResponse
	json.Unmarshal(rec.Body.Bytes(), &verify)
	if !verify.Valid || verify.UserID != "alice" {
		t.Errorf("verify = %+v", verify)
	}

	rec = doJSON(t, handler, http.MethodPost, "/logout", "", login.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/verify", "", login.Token)
	json.Unmarshal(rec.Body.Bytes(), &verify)
	if verify.Valid || verify.Reason != "Invalid session" {
		t.Errorf("verify after logout = %+v", verify)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	handler := newTestHandler()

	doJSON(t, handler, http.MethodPost, "/register",
		`{"userId":"alice","password":"Secr3t!","apiKey":"k1"}`, "")

	rec := doJSON(t, handler, http.MethodPost, "/login",
		`{"userId":"alice","password":"wrong","apiKey":"k1"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	apiErr := decodeError(t, rec)
	if apiErr.Type != api.ErrorTypeInvalidCredentials || apiErr.Attempts != 1 {
		t.Errorf("error = %+v", apiErr)
	}
}

func TestVerifyMissingToken(t *testing.T) {
	handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodGet, "/verify", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	handler := newTestHandler()

	doJSON(t, handler, http.MethodPost, "/register",
		`{"userId":"alice","password":"Secr3t!","apiKey":"k1"}`, "")
	rec := doJSON(t, handler, http.MethodPost, "/login",
		`{"userId":"alice","password":"Secr3t!","apiKey":"k1"}`, "")
	var login api.LoginResponse
	json.Unmarshal(rec.Body.Bytes(), &login)

	rec = doJSON(t, handler, http.MethodGet, "/logs?apiKey=k1", "", login.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("logs status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var logs api.LogsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
		t.Fatalf("decoding logs: %v", err)
	}
	if logs.Count != 2 {
		t.Errorf("log count = %d, want 2", logs.Count)
	}

	// Missing apiKey query parameter.
	rec = doJSON(t, handler, http.MethodGet, "/logs", "", login.Token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing apiKey status = %d, want 400", rec.Code)
	}

	// Malformed limit.
	rec = doJSON(t, handler, http.MethodGet, "/logs?apiKey=k1&limit=zero", "", login.Token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
