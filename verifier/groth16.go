package verifier

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

// VerifyProof evaluates the Groth16 pairing equation
//
//	e(A, B) = e(alpha, beta) · e(vk_x, gamma) · e(C, delta)
//
// with vk_x = IC[0] + sum(input_i · IC[i+1]). It returns false for any proof
// that does not satisfy it, including proofs with the wrong number of public
// inputs, non canonical inputs, or points outside the prime order subgroups.
func VerifyProof(vk *VerifyingKey, proof *Proof, inputs []*big.Int) bool {
	if vk == nil || proof == nil {
		return false
	}
	if len(inputs) != vk.NumPublicInputs() {
		return false
	}
	if !proof.A.IsInSubGroup() || !proof.C.IsInSubGroup() || !proof.B.IsInSubGroup() {
		return false
	}

	vkX, ok := linearCombination(vk.IC, inputs)
	if !ok {
		return false
	}

	var negA bn254.G1Affine
	negA.Neg(&proof.A)

	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{negA, vk.Alpha1, vkX, proof.C},
		[]bn254.G2Affine{proof.B, vk.Beta2, vk.Gamma2, vk.Delta2},
	)
	return err == nil && ok
}

// linearCombination computes IC[0] + sum(inputs[i] · IC[i+1]).
func linearCombination(ic []bn254.G1Affine, inputs []*big.Int) (bn254.G1Affine, bool) {
	acc := ic[0]
	var term bn254.G1Affine
	for i, in := range inputs {
		if !inField(in) {
			return acc, false
		}
		term.ScalarMultiplication(&ic[i+1], in)
		acc.Add(&acc, &term)
	}
	return acc, true
}
