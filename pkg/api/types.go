package api

import "encoding/json"

// RegisterRequest is the payload for POST /register.
type RegisterRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
	APIKey   string `json:"apiKey"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	UserID     string          `json:"userId"`
	DID        string          `json:"did"`
	Document   json.RawMessage `json:"didDocument"`
	TxID       string          `json:"txId"`
	LogRef     string          `json:"logRef"`
	ArchiveRef string          `json:"archiveRef,omitempty"`
}

// LoginRequest is the payload for POST /login.
type LoginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
	APIKey   string `json:"apiKey"`
}

// LoginResponse is returned after a successful login. Token is the signed
// credential envelope; SessionAddress references the server-side session.
type LoginResponse struct {
	Token          string `json:"token"`
	SessionAddress string `json:"sessionAddress"`
	DID            string `json:"did"`
	ReceiptHash    string `json:"receiptHash"`
	AuditRef       string `json:"auditRef"`
	LogRef         string `json:"logRef"`
}

// VerifyResponse is returned by GET /verify.
type VerifyResponse struct {
	Valid    bool   `json:"valid"`
	UserID   string `json:"userId,omitempty"`
	DID      string `json:"did,omitempty"`
	DIDValid bool   `json:"didValid,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// LogoutResponse is returned by POST /logout.
type LogoutResponse struct {
	OK bool `json:"ok"`
}

// LogSummary describes one decrypted event log entry.
type LogSummary struct {
	Ref       string          `json:"ref"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// LogsResponse is returned by GET /logs.
type LogsResponse struct {
	Count int          `json:"count"`
	Logs  []LogSummary `json:"logs"`
}
