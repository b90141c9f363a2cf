// Package crypto provides the digest primitives used across the pipeline:
// salted SHA3-512 password digests, device fingerprints, generic SHA-256
// hashing, HMAC signing, and random token and API key generation.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"
)

const (
	saltBytes  = 32
	nonceBytes = 16

	apiKeyPrefix = "bp_omega"
)

// Digest holds a password digest together with the salt and nonce used to
// produce it. Salt and nonce are hex strings.
type Digest struct {
	Hash  string
	Salt  string
	Nonce string
}

// HashPassword derives a SHA3-512 digest of "password:salt:nonce".
// Empty salt or nonce are replaced with fresh random values (32-byte salt,
// 16-byte nonce, hex encoded).
func HashPassword(password, salt, nonce string) Digest {
	if salt == "" {
		salt = randomHex(saltBytes)
	}
	if nonce == "" {
		nonce = randomHex(nonceBytes)
	}

	combined := fmt.Sprintf("%s:%s:%s", password, salt, nonce)
	sum := sha3.Sum512([]byte(combined))

	return Digest{
		Hash:  hex.EncodeToString(sum[:]),
		Salt:  salt,
		Nonce: nonce,
	}
}

// VerifyPassword recomputes the digest for the given salt and nonce and
// compares it to the stored hash in constant time.
func VerifyPassword(password, storedHash, salt, nonce string) bool {
	d := HashPassword(password, salt, nonce)
	return subtle.ConstantTimeCompare([]byte(d.Hash), []byte(storedHash)) == 1
}

// DeviceHash fingerprints a client from its user agent and remote address.
// The current timestamp is part of the input, so two requests from the same
// device never produce the same fingerprint. Retained as documented source
// behavior; the fingerprint is recorded, not compared.
func DeviceHash(userAgent, remoteAddr string) string {
	data := fmt.Sprintf("%s:%s:%d", userAgent, remoteAddr, time.Now().UnixMilli())
	return Hash(data)
}

// Hash returns the hex-encoded SHA-256 digest of data.
func Hash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Sign computes a hex-encoded HMAC-SHA256 signature of data under secret.
func Sign(data, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an HMAC-SHA256 signature in constant time.
func Verify(data, signature, secret string) bool {
	computed := Sign(data, secret)
	return hmac.Equal([]byte(computed), []byte(signature))
}

// NewToken generates a random token of n bytes, hex encoded.
func NewToken(n int) string {
	return randomHex(n)
}

// NewAPIKey generates a tenant API key: "bp_omega_" followed by 48 hex chars.
func NewAPIKey() string {
	return fmt.Sprintf("%s_%s", apiKeyPrefix, randomHex(24))
}

// NewAPISecret generates a tenant API secret of 64 hex chars.
func NewAPISecret() string {
	return randomHex(32)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
