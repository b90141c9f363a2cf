// Package envelope issues and parses the signed credential envelope: the
// bearer token returned after a successful login, embedding the user,
// DID, tenant, and session references. The envelope has its own fixed
// validity window, independent of the session's ttl.
package envelope

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultValidity is the envelope validity window.
const DefaultValidity = 24 * time.Hour

const issuer = "blockpass-omega"

// ErrInvalidToken is returned for tokens that fail signature, method,
// issuer, or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the envelope contents.
type Claims struct {
	UserID         string `json:"userId"`
	DID            string `json:"did"`
	TenantID       string `json:"tenantId"`
	SessionAddress string `json:"sessionAddress"`
	jwtlib.RegisteredClaims
}

// Signer issues and verifies HMAC-signed envelopes.
type Signer struct {
	secret   []byte
	validity time.Duration
}

// NewSigner creates a signer with the given secret. A validity of 0
// selects DefaultValidity.
func NewSigner(secret string, validity time.Duration) *Signer {
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Signer{
		secret:   []byte(secret),
		validity: validity,
	}
}

// Issue signs an envelope for the given identity and session references.
func (s *Signer) Issue(userID, did, tenantID, sessionAddress string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:         userID,
		DID:            did,
		TenantID:       tenantID,
		SessionAddress: sessionAddress,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.validity)),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing envelope: %w", err)
	}
	return signed, nil
}

// Parse validates a signed envelope and returns its claims.
func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{},
		func(token *jwtlib.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.SessionAddress == "" {
		return nil, fmt.Errorf("%w: missing identity claims", ErrInvalidToken)
	}

	return claims, nil
}
