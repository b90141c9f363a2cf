package envelope

import (
	"errors"
	"testing"
)

func TestIssueAndParse(t *testing.T) {
	s := NewSigner("test-secret", 0)

	token, err := s.Issue("alice", "did:bdid:omega:a:b", "tenant-1", "0xSsabc")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := s.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "alice" {
		t.Errorf("userId = %q, want alice", claims.UserID)
	}
	if claims.DID != "did:bdid:omega:a:b" {
		t.Errorf("did = %q", claims.DID)
	}
	if claims.TenantID != "tenant-1" {
		t.Errorf("tenantId = %q", claims.TenantID)
	}
	if claims.SessionAddress != "0xSsabc" {
		t.Errorf("sessionAddress = %q", claims.SessionAddress)
	}
	if claims.Issuer != issuer {
		t.Errorf("issuer = %q, want %q", claims.Issuer, issuer)
	}
}

func TestParseWrongSecret(t *testing.T) {
	token, _ := NewSigner("secret-a", 0).Issue("alice", "did", "t1", "0xSsabc")

	if _, err := NewSigner("secret-b", 0).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseTamperedToken(t *testing.T) {
	s := NewSigner("test-secret", 0)
	token, _ := s.Issue("alice", "did", "t1", "0xSsabc")

	tampered := token[:len(token)-2] + "xx"
	if _, err := s.Parse(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseGarbage(t *testing.T) {
	s := NewSigner("test-secret", 0)

	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := s.Parse(input); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Parse(%q): err = %v, want ErrInvalidToken", input, err)
		}
	}
}

func TestParseMissingIdentityClaims(t *testing.T) {
	s := NewSigner("test-secret", 0)

	token, err := s.Issue("", "did", "t1", "0xSsabc")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token without userId should be rejected, got %v", err)
	}
}
