package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/multiformats/go-multibase"

	omegacrypto "github.com/blockpass/omega/pkg/crypto"
)

// ed25519MulticodecPrefix is the multicodec varint prefix for Ed25519 public keys (0xed01).
var ed25519MulticodecPrefix = []byte{0xed, 0x01}

// Document is a DID document: the public key material and metadata bound to
// a decentralized identifier. Immutable once appended to the ledger.
type Document struct {
	Context        string      `json:"@context"`
	ID             string      `json:"id"`
	PublicKey      []PublicKey `json:"publicKey"`
	Authentication []string    `json:"authentication"`
	Created        string      `json:"created"`
	Updated        string      `json:"updated"`
}

// PublicKey is an entry in a DID document's publicKey array.
type PublicKey struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// deriveDID builds the namespaced DID string from truncated hashes of the
// tenant domain and the user+device pair:
//
//	did:bdid:omega:<sha256(domain)[:8]>:<sha256(userID:deviceHash)[:16]>
func deriveDID(userID, domain, deviceHash string) string {
	domainHash := omegacrypto.Hash(domain)
	userDeviceHash := omegacrypto.Hash(fmt.Sprintf("%s:%s", userID, deviceHash))
	return fmt.Sprintf("did:bdid:omega:%s:%s", domainHash[:8], userDeviceHash[:16])
}

// newKeyPair generates an Ed25519 key pair. The public key is returned
// multibase base58btc encoded with the Ed25519 multicodec prefix; the
// private key is hex encoded.
func newKeyPair() (publicKeyMultibase, privateKeyHex string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating key pair: %w", err)
	}

	prefixed := append(append([]byte{}, ed25519MulticodecPrefix...), pub...)
	encoded, err := multibase.Encode(multibase.Base58BTC, prefixed)
	if err != nil {
		return "", "", fmt.Errorf("encoding public key: %w", err)
	}

	return encoded, hex.EncodeToString(priv), nil
}

// buildDocument constructs the DID document for a freshly minted DID.
func buildDocument(did, publicKeyMultibase string) *Document {
	keyID := did + "#keys-1"
	now := time.Now().UTC().Format(time.RFC3339)

	return &Document{
		Context: "https://www.w3.org/ns/did/v1",
		ID:      did,
		PublicKey: []PublicKey{{
			ID:                 keyID,
			Type:               "Ed25519VerificationKey2020",
			Controller:         did,
			PublicKeyMultibase: publicKeyMultibase,
		}},
		Authentication: []string{keyID},
		Created:        now,
		Updated:        now,
	}
}
