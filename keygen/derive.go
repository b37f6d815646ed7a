package keygen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// RawKeySize is the length of the randomness a key pair is derived from.
const RawKeySize = 32

// ErrInvalidRawKey is returned by Derive for bytes that are not a valid
// secp256k1 private key (zero, or not below the group order).
var ErrInvalidRawKey = errors.New("raw key is not a valid secp256k1 private key")

// KeyPair is a recovery identity. Private is the scalar consumed by the proof
// circuit and Public = Private·Base8 is what gets registered.
type KeyPair struct {
	// Raw is the sampled randomness.
	Raw [RawKeySize]byte
	// Pruned is the hashed and bit-pruned scalar before the final shift.
	Pruned *big.Int
	// Private is Pruned >> 3.
	Private *big.Int
	// Public is the Baby Jubjub public key.
	Public Point
}

// ValidRawKey reports whether raw is a usable secp256k1 private key.
func ValidRawKey(raw []byte) bool {
	if len(raw) != RawKeySize {
		return false
	}
	var s secp256k1.ModNScalar
	overflow := s.SetByteSlice(raw)
	return !overflow && !s.IsZero()
}

// Generate samples randomness from r until it is a valid raw key and derives
// the key pair from it. A nil reader means crypto/rand.
func Generate(r io.Reader) (*KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	var raw [RawKeySize]byte
	for {
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, fmt.Errorf("failed to read randomness: %w", err)
		}
		if ValidRawKey(raw[:]) {
			return Derive(raw)
		}
	}
}

// GenerateBatch produces n independent key pairs, one per backup identity.
func GenerateBatch(r io.Reader, n int) ([]*KeyPair, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid key count %d", n)
	}
	pairs := make([]*KeyPair, 0, n)
	for i := 0; i < n; i++ {
		kp, err := Generate(r)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, kp)
	}
	return pairs, nil
}

// Derive turns raw randomness into a key pair:
//
//	h      = MiMCSponge(bigEndian(raw) mod r)
//	buf    = first 32 bytes of the decimal string of h
//	pruned = littleEndian(buf) with bits 0..2 and 255 cleared, bit 254 set
//	s      = pruned >> 3
//	pub    = s·Base8
//
// Taking the digits of h rather than its binary encoding keeps identities
// interchangeable with the circomlib-based input generator.
func Derive(raw [RawKeySize]byte) (*KeyPair, error) {
	if !ValidRawKey(raw[:]) {
		return nil, ErrInvalidRawKey
	}

	priv := new(big.Int).SetBytes(raw[:])
	h := HashScalar(priv)

	pruned := PruneScalar(h)
	s := new(big.Int).Rsh(pruned, 3)

	return &KeyPair{
		Raw:     raw,
		Pruned:  pruned,
		Private: s,
		Public:  MulBase8(s),
	}, nil
}

// PruneScalar reads the first 32 ASCII digits of h as a little-endian buffer
// and applies the EdDSA bit pruning. A hash with fewer than 32 digits is
// zero-padded.
func PruneScalar(h *big.Int) *big.Int {
	var buf [32]byte
	copy(buf[:], h.String())

	buf[0] &= 0xF8
	buf[31] &= 0x7F
	buf[31] |= 0x40

	reverse(buf[:])
	return new(big.Int).SetBytes(buf[:])
}

// InField reports whether v is a canonical BN254 scalar field element.
func InField(v *big.Int) bool {
	return v.Sign() >= 0 && v.Cmp(fr.Modulus()) < 0
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
