package verifier

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrIndexOutOfRange is returned when a registry index names no entry.
	ErrIndexOutOfRange = errors.New("verifying key index out of range")

	// ErrKeyInvalidated is returned when the named entry has been invalidated.
	ErrKeyInvalidated = errors.New("verifying key invalidated")
)

// KeySet resolves registry indices to verifying keys. Key returns
// ErrIndexOutOfRange for unknown indices and reports whether the entry is
// still valid.
type KeySet interface {
	Key(index int) (vk *VerifyingKey, valid bool, err error)
}

// Verifier checks proofs against one entry of a key set.
type Verifier struct {
	keys KeySet
}

// New creates a verifier reading keys from the given set.
func New(keys KeySet) *Verifier {
	return &Verifier{keys: keys}
}

// Verify checks proof and its public inputs against the key at index. A proof
// that does not verify yields false with a nil error; errors are reserved for
// a bad index.
func (v *Verifier) Verify(proof *Proof, publicInputs []*big.Int, index int) (bool, error) {
	vk, err := v.Key(index)
	if err != nil {
		return false, err
	}
	return VerifyProof(vk, proof, publicInputs), nil
}

// Key resolves index to a usable key without evaluating any proof.
func (v *Verifier) Key(index int) (*VerifyingKey, error) {
	vk, valid, err := v.keys.Key(index)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, fmt.Errorf("%w: index %d", ErrKeyInvalidated, index)
	}
	return vk, nil
}
