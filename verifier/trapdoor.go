package verifier

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Trapdoor is a Groth16 setup that keeps its secret scalars, so it can produce
// proofs that verify for any public inputs without a circuit or witness.
// Keys made this way are only meant for tests and development networks.
type Trapdoor struct {
	alpha, beta, gamma, delta fr.Element
	ic                        []fr.Element
	vk                        *VerifyingKey
}

// NewTrapdoor samples a setup for nPublic public inputs. A nil reader means
// crypto/rand.
func NewTrapdoor(r io.Reader, nPublic int) (*Trapdoor, error) {
	if nPublic < 0 {
		return nil, errors.New("negative public input count")
	}
	if r == nil {
		r = rand.Reader
	}

	td := &Trapdoor{ic: make([]fr.Element, nPublic+1)}
	for _, e := range append([]*fr.Element{&td.alpha, &td.beta, &td.gamma, &td.delta}, icRefs(td.ic)...) {
		if err := randomNonZero(r, e); err != nil {
			return nil, err
		}
	}

	_, _, g1, g2 := bn254.Generators()
	vk := &VerifyingKey{IC: make([]bn254.G1Affine, len(td.ic))}
	vk.Alpha1.ScalarMultiplication(&g1, td.alpha.BigInt(new(big.Int)))
	vk.Beta2.ScalarMultiplication(&g2, td.beta.BigInt(new(big.Int)))
	vk.Gamma2.ScalarMultiplication(&g2, td.gamma.BigInt(new(big.Int)))
	vk.Delta2.ScalarMultiplication(&g2, td.delta.BigInt(new(big.Int)))
	for i := range td.ic {
		vk.IC[i].ScalarMultiplication(&g1, td.ic[i].BigInt(new(big.Int)))
	}
	td.vk = vk
	return td, nil
}

// VerifyingKey returns a copy of the setup's verifying key.
func (td *Trapdoor) VerifyingKey() *VerifyingKey {
	return td.vk.Clone()
}

// Prove builds a proof accepted by the setup's verifying key for inputs.
func (td *Trapdoor) Prove(r io.Reader, inputs []*big.Int) (*Proof, error) {
	if len(inputs) != len(td.ic)-1 {
		return nil, fmt.Errorf("expected %d public inputs, got %d", len(td.ic)-1, len(inputs))
	}
	if r == nil {
		r = rand.Reader
	}

	// vkx = ic0 + sum(in_i * ic_{i+1})
	vkx := td.ic[0]
	var term fr.Element
	for i, in := range inputs {
		if !inField(in) {
			return nil, fmt.Errorf("public input %d is not a field element", i)
		}
		term.SetBigInt(in)
		term.Mul(&term, &td.ic[i+1])
		vkx.Add(&vkx, &term)
	}

	var b, c fr.Element
	if err := randomNonZero(r, &b); err != nil {
		return nil, err
	}
	if err := randomNonZero(r, &c); err != nil {
		return nil, err
	}

	// a·b = alpha·beta + vkx·gamma + c·delta
	var a, t fr.Element
	a.Mul(&td.alpha, &td.beta)
	t.Mul(&vkx, &td.gamma)
	a.Add(&a, &t)
	t.Mul(&c, &td.delta)
	a.Add(&a, &t)
	t.Inverse(&b)
	a.Mul(&a, &t)

	_, _, g1, g2 := bn254.Generators()
	proof := &Proof{Inputs: make([]*big.Int, len(inputs))}
	proof.A.ScalarMultiplication(&g1, a.BigInt(new(big.Int)))
	proof.B.ScalarMultiplication(&g2, b.BigInt(new(big.Int)))
	proof.C.ScalarMultiplication(&g1, c.BigInt(new(big.Int)))
	for i, in := range inputs {
		proof.Inputs[i] = new(big.Int).Set(in)
	}
	return proof, nil
}

func icRefs(ic []fr.Element) []*fr.Element {
	refs := make([]*fr.Element, len(ic))
	for i := range ic {
		refs[i] = &ic[i]
	}
	return refs
}

func randomNonZero(r io.Reader, e *fr.Element) error {
	var buf [fr.Bytes]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return fmt.Errorf("failed to read randomness: %w", err)
		}
		e.SetBytes(buf[:])
		if !e.IsZero() {
			return nil
		}
	}
}
