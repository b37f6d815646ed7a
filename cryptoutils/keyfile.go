package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/argon2"
)

const (
	sealedVersion = 1
	kdfArgon2id   = "argon2id"
	saltSize      = 16
	keySize       = 32
)

// KDFParams are the argon2id cost parameters stored with every sealed blob.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
}

// DefaultKDFParams are used by Seal.
var DefaultKDFParams = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

var (
	// ErrDecryptionFailed is returned for a wrong passphrase or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrUnsupportedFormat is returned for blobs this package did not produce.
	ErrUnsupportedFormat = errors.New("unsupported sealed format")
)

// SealedBlob is the JSON envelope of passphrase-encrypted data.
type SealedBlob struct {
	Version    int           `json:"version"`
	KDF        string        `json:"kdf"`
	Params     KDFParams     `json:"params"`
	Salt       hexutil.Bytes `json:"salt"`
	Nonce      hexutil.Bytes `json:"nonce"`
	Ciphertext hexutil.Bytes `json:"ciphertext"`
}

// Seal encrypts plaintext with AES-256-GCM under a key derived from
// passphrase with argon2id, and returns the JSON envelope.
func Seal(passphrase, plaintext []byte) ([]byte, error) {
	return SealWithParams(passphrase, plaintext, DefaultKDFParams)
}

// SealWithParams is Seal with explicit KDF costs.
func SealWithParams(passphrase, plaintext []byte, params KDFParams) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("empty passphrase")
	}
	if params.Time == 0 || params.Memory == 0 || params.Threads == 0 {
		return nil, errors.New("invalid argon2id parameters")
	}

	blob := SealedBlob{
		Version: sealedVersion,
		KDF:     kdfArgon2id,
		Params:  params,
		Salt:    make([]byte, saltSize),
	}
	if _, err := io.ReadFull(rand.Reader, blob.Salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := newAEAD(passphrase, blob.Salt, params)
	if err != nil {
		return nil, err
	}
	blob.Nonce = make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, blob.Nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	blob.Ciphertext = aead.Seal(nil, blob.Nonce, plaintext, associatedData(blob))

	return json.Marshal(blob)
}

// Open decrypts an envelope produced by Seal.
func Open(passphrase, sealed []byte) ([]byte, error) {
	var blob SealedBlob
	if err := json.Unmarshal(sealed, &blob); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if blob.Version != sealedVersion || blob.KDF != kdfArgon2id {
		return nil, fmt.Errorf("%w: version %d, kdf %q", ErrUnsupportedFormat, blob.Version, blob.KDF)
	}

	aead, err := newAEAD(passphrase, blob.Salt, blob.Params)
	if err != nil {
		return nil, err
	}
	if len(blob.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce size", ErrUnsupportedFormat)
	}

	plaintext, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, associatedData(blob))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// IsSealed reports whether data looks like a SealedBlob.
func IsSealed(data []byte) bool {
	var blob SealedBlob
	return json.Unmarshal(data, &blob) == nil && blob.KDF == kdfArgon2id && len(blob.Ciphertext) > 0
}

func newAEAD(passphrase, salt []byte, params KDFParams) (cipher.AEAD, error) {
	key := argon2.IDKey(passphrase, salt, params.Time, params.Memory, params.Threads, keySize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// associatedData binds the KDF parameters to the ciphertext.
func associatedData(blob SealedBlob) []byte {
	return []byte(fmt.Sprintf("zkrecovery/v%d/%s/%d/%d/%d", blob.Version, blob.KDF, blob.Params.Time, blob.Params.Memory, blob.Params.Threads))
}
