package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const alnumCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	txIDPattern           = regexp.MustCompile(`^tx_\d+_[a-f0-9]{16}$`)
	sessionAddressPattern = regexp.MustCompile(`^0xSs[a-f0-9]{36}$`)
	logRefPattern         = regexp.MustCompile(`^Qm[a-zA-Z0-9]{30}$`)
)

// NewTxID generates a ledger transaction ID of the form
// "tx_<unix-millis>_<16 hex chars>".
func NewTxID() string {
	return fmt.Sprintf("tx_%d_%s", time.Now().UnixMilli(), randomHex(8))
}

// NewSessionAddress generates a session contract address: "0xSs" followed
// by 36 hex characters.
func NewSessionAddress() string {
	return "0xSs" + randomHex(18)
}

// NewLogRef generates a content-addressed-shaped log reference with the
// "Qm" prefix followed by 30 alphanumeric characters.
func NewLogRef() string {
	return "Qm" + randomAlphanumeric(30)
}

// NewArchiveRef generates a permanent-archive reference handle.
func NewArchiveRef() string {
	return randomAlphanumeric(43)
}

// NewReceiptTxHash generates a simulated on-chain transaction hash:
// "0x" followed by 64 hex characters.
func NewReceiptTxHash() string {
	return "0x" + randomHex(32)
}

// NewReferenceID generates an opaque reference ID for audit records.
func NewReferenceID() string {
	return uuid.NewString()
}

// ValidateTxID checks whether the given string is a well-formed transaction ID.
func ValidateTxID(id string) bool {
	return txIDPattern.MatchString(id)
}

// ValidateSessionAddress checks whether the given string is a well-formed
// session contract address.
func ValidateSessionAddress(addr string) bool {
	return sessionAddressPattern.MatchString(addr)
}

// ValidateLogRef checks whether the given string is a well-formed log reference.
func ValidateLogRef(ref string) bool {
	return logRefPattern.MatchString(ref)
}

// randomHex returns n random bytes encoded as 2n hex characters.
func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(alnumCharset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = alnumCharset[idx.Int64()]
	}
	return string(b)
}
