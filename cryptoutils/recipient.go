package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// SealForRecipient encrypts data to a custodian's secp256k1 public key with
// ECIES, so only the holder of the matching Ethereum key can open it.
func SealForRecipient(pub *ecdsa.PublicKey, data []byte) ([]byte, error) {
	ct, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), data, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt for recipient: %w", err)
	}
	return ct, nil
}

// OpenAsRecipient decrypts data sealed with SealForRecipient.
func OpenAsRecipient(key *ecdsa.PrivateKey, sealed []byte) ([]byte, error) {
	pt, err := ecies.ImportECDSA(key).Decrypt(sealed, nil, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return pt, nil
}

// ParseRecipient parses a hex-encoded uncompressed (65 byte) or compressed
// (33 byte) secp256k1 public key.
func ParseRecipient(hexKey string) (*ecdsa.PublicKey, error) {
	raw, err := hexDecode(hexKey)
	if err != nil {
		return nil, err
	}
	if len(raw) == 33 {
		return crypto.DecompressPubkey(raw)
	}
	return crypto.UnmarshalPubkey(raw)
}
