package api

import (
	"net/http"
	"testing"
)

func TestAPIErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want int
	}{
		{"invalid request", NewInvalidRequestError("userId", "required"), http.StatusBadRequest},
		{"not found", NewNotFoundError("user not found"), http.StatusNotFound},
		{"conflict", NewConflictError("already registered"), http.StatusConflict},
		{"unauthorized", NewUnauthorizedError("unknown api key"), http.StatusUnauthorized},
		{"rate limited", NewRateLimitedError("quota exceeded"), http.StatusTooManyRequests},
		{"invalid credentials", NewInvalidCredentialsError(3), http.StatusUnauthorized},
		{"account locked", NewAccountLockedError(), http.StatusUnauthorized},
		{"server error", NewServerError("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := NewInvalidRequestError("password", "password is required")

	want := "invalid_request: password is required (param: password)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestInvalidCredentialsCarriesAttempts(t *testing.T) {
	err := NewInvalidCredentialsError(4)
	if err.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", err.Attempts)
	}
}

func TestValidateRequests(t *testing.T) {
	tests := []struct {
		name      string
		err       *APIError
		wantParam string
	}{
		{"register missing user", (&RegisterRequest{Password: "p", APIKey: "k"}).Validate(), "userId"},
		{"register missing password", (&RegisterRequest{UserID: "u", APIKey: "k"}).Validate(), "password"},
		{"register missing key", (&RegisterRequest{UserID: "u", Password: "p"}).Validate(), "apiKey"},
		{"login missing user", (&LoginRequest{Password: "p", APIKey: "k"}).Validate(), "userId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("expected a validation error")
			}
			if tt.err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", tt.err.Param, tt.wantParam)
			}
		})
	}

	if err := (&RegisterRequest{UserID: "u", Password: "p", APIKey: "k"}).Validate(); err != nil {
		t.Errorf("complete request should validate, got %v", err)
	}
}
