package api

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/manuelog-udc/tfm-munics/interfaces"
)

const (
	// SignatureHeader carries the caller's signature over the request.
	SignatureHeader = "X-Recovery-Signature"

	// TimestampHeader carries the unix time, in seconds, the request was signed at.
	TimestampHeader = "X-Recovery-Timestamp"

	// NonceHeader carries a value the signer never reuses.
	NonceHeader = "X-Recovery-Nonce"

	// MaxNonceLength bounds the nonce header.
	MaxNonceLength = 64
)

var (
	// ErrInvalidSignature is returned for missing or malformed request signatures.
	ErrInvalidSignature = errors.New("invalid request signature")

	// ErrStaleRequest is returned when the signed timestamp is too far from server time.
	ErrStaleRequest = errors.New("request timestamp outside the accepted window")

	// ErrReplayedRequest is returned for a nonce its signer already used.
	ErrReplayedRequest = errors.New("request nonce already used")
)

// SignedRequest holds what a caller signs besides the body.
type SignedRequest struct {
	Method    string
	Path      string
	Timestamp int64
	Nonce     string
}

// Digest is keccak256 over method, path, timestamp and nonce, each followed
// by a newline, then the body.
func (sr SignedRequest) Digest(body []byte) []byte {
	sep := []byte{'\n'}
	return crypto.Keccak256(
		[]byte(sr.Method), sep,
		[]byte(sr.Path), sep,
		[]byte(strconv.FormatInt(sr.Timestamp, 10)), sep,
		[]byte(sr.Nonce), sep,
		body,
	)
}

// Validate checks the nonce is usable.
func (sr SignedRequest) Validate() error {
	if sr.Nonce == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidSignature, NonceHeader)
	}
	if len(sr.Nonce) > MaxNonceLength {
		return fmt.Errorf("%w: nonce longer than %d bytes", ErrInvalidSignature, MaxNonceLength)
	}
	return nil
}

// SignRequest signs the request digest the way personal_sign does and returns
// the 65-byte signature hex encoded.
func SignRequest(key *ecdsa.PrivateKey, sr SignedRequest, body []byte) (string, error) {
	if err := sr.Validate(); err != nil {
		return "", err
	}
	sig, err := crypto.Sign(accounts.TextHash(sr.Digest(body)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// RecoverSigner returns the address that produced signature for the request.
// Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(signature string, sr SignedRequest, body []byte) (interfaces.Address, error) {
	if err := sr.Validate(); err != nil {
		return interfaces.Address{}, err
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return interfaces.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return interfaces.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(sr.Digest(body)), sig)
	if err != nil {
		return interfaces.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return interfaces.Address(crypto.PubkeyToAddress(*pub)), nil
}
