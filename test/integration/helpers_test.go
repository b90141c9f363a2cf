// Package integration provides integration tests for the omega auth API.
//
// Tests run against a real omega HTTP server started in-process using
// net/http/httptest, wired exactly like production minus the listener.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/blockpass/omega/pkg/audit"
	"github.com/blockpass/omega/pkg/credential"
	"github.com/blockpass/omega/pkg/envelope"
	"github.com/blockpass/omega/pkg/identity"
	"github.com/blockpass/omega/pkg/logstore"
	"github.com/blockpass/omega/pkg/orchestrator"
	"github.com/blockpass/omega/pkg/session"
	"github.com/blockpass/omega/pkg/tenant"
	transporthttp "github.com/blockpass/omega/pkg/transport/http"
)

const (
	tenantKey        = "bp_omega_test_key"
	limitedTenantKey = "bp_omega_limited_key"
)

// testEnv holds the shared server for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the omega server under test.
type TestEnvironment struct {
	Server *httptest.Server
}

// TestMain starts the omega server before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Server.Close()
	os.Exit(code)
}

// setupTestEnvironment wires a full in-memory pipeline behind an httptest server.
func setupTestEnvironment() *TestEnvironment {
	tenants := tenant.NewRegistry([]tenant.Entry{
		{APIKey: tenantKey, ID: "tenant-1", Name: "Acme", Domain: "acme.example", Active: true},
		{APIKey: limitedTenantKey, ID: "tenant-2", Name: "Capped", Domain: "capped.example", UsageLimit: 1, Active: true},
	})

	orch := orchestrator.New(orchestrator.Deps{
		Tenants:     tenants,
		Identity:    identity.NewLedger(nil),
		Credentials: credential.NewLedger(0, nil),
		Audit:       audit.NewLayer(nil, 0, nil),
		Sessions:    session.NewManager(nil),
		Logs:        logstore.New(0, nil),
		Signer:      envelope.NewSigner("integration-secret", 0),
		SessionTTL:  time.Hour,
	})

	cfg := transporthttp.DefaultConfig()
	adapter := transporthttp.NewAdapter(orch, cfg, nil)

	return &TestEnvironment{
		Server: httptest.NewServer(adapter.Handler()),
	}
}

// postJSON sends a JSON POST and returns the response.
func postJSON(t *testing.T, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, testEnv.Server.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req)
}

// getWithToken sends a GET with an optional bearer token.
func getWithToken(t *testing.T, path, token string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, testEnv.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req)
}

func doRequest(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return resp, body
}

// decodeInto unmarshals a response body, failing the test on error.
func decodeInto(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decoding %q: %v", body, err)
	}
}
