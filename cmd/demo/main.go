package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

func main() {
	fmt.Println("=== omega auth pipeline demo ===")
	fmt.Println()

	ctx := context.Background()

	// 1. Wire the full in-memory pipeline, exactly as the server does.
	tenants := tenant.NewRegistry([]tenant.Entry{
		{APIKey: "bp_omega_demo_key", ID: "tenant-demo", Name: "Demo", Domain: "demo.example", Active: true},
	})
	orch := orchestrator.New(orchestrator.Deps{
		Tenants:     tenants,
		Identity:    identity.NewLedger(nil),
		Credentials: credential.NewLedger(0, nil),
		Audit:       audit.NewLayer(nil, 0, nil),
		Sessions:    session.NewManager(nil),
		Logs:        logstore.New(0, nil),
		Signer:      envelope.NewSigner("demo-secret", 0),
		SessionTTL:  time.Hour,
	})
	client := orchestrator.Client{UserAgent: "demo-cli", RemoteAddr: "127.0.0.1"}
	fmt.Println("[1] Pipeline wired (in-memory ledgers, local audit fallback)")

	// 2. Register a user: digest, DID, ledger transaction, encrypted log.
	reg, err := orch.Register(ctx, api.RegisterRequest{
		UserID:   "alice",
		Password: "Secr3t!",
		APIKey:   "bp_omega_demo_key",
	}, client)
	if err != nil {
		fmt.Printf("Registration FAILED: %v\n", err)
		return
	}
	data, _ := json.MarshalIndent(reg, "", "  ")
	fmt.Printf("\n[2] Registration response:\n%s\n", data)

	// 3. A wrong password is ledgered and counted.
	_, err = orch.Login(ctx, api.LoginRequest{
		UserID:   "alice",
		Password: "wrong",
		APIKey:   "bp_omega_demo_key",
	}, client)
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		fmt.Printf("\n[3] Wrong password rejected: type=%s attempts=%d\n", apiErr.Type, apiErr.Attempts)
	}

	// 4. A correct login yields a session, a signed token, and an audit receipt.
	login, err := orch.Login(ctx, api.LoginRequest{
		UserID:   "alice",
		Password: "Secr3t!",
		APIKey:   "bp_omega_demo_key",
	}, client)
	if err != nil {
		fmt.Printf("Login FAILED: %v\n", err)
		return
	}
	data, _ = json.MarshalIndent(login, "", "  ")
	fmt.Printf("\n[4] Login response:\n%s\n", data)

	// 5. Verify the token: session, DID chain, and claims all checked.
	verify := orch.Verify(ctx, login.Token)
	data, _ = json.MarshalIndent(verify, "", "  ")
	fmt.Printf("\n[5] Verify response:\n%s\n", data)

	// 6. Fetch the user's encrypted activity log.
	logs, err := orch.UserLogs(ctx, login.Token, "bp_omega_demo_key", 10)
	if err != nil {
		fmt.Printf("Logs FAILED: %v\n", err)
		return
	}
	fmt.Printf("\n[6] Activity log (%d entries):\n", logs.Count)
	for _, l := range logs.Logs {
		fmt.Printf("    %s  %s\n", l.Ref, l.Payload)
	}

	// 7. Logout invalidates the session; the token no longer verifies.
	if _, err := orch.Logout(ctx, login.Token); err != nil {
		fmt.Printf("Logout FAILED: %v\n", err)
		return
	}
	after := orch.Verify(ctx, login.Token)
	fmt.Printf("\n[7] Post-logout verify: valid=%v reason=%q\n", after.Valid, after.Reason)

	fmt.Println("\n=== demo complete ===")
}
