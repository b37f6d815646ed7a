package keygen

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/crypto"
)

// mimcRounds is the circomlib MiMCSponge round count.
const mimcRounds = 220

// mimcSeed seeds the keccak256 chain producing the round constants.
const mimcSeed = "mimcsponge"

var mimcConstants = mimcSpongeConstants(mimcSeed)

// mimcSpongeConstants derives round constants by iterating keccak256 over the
// seed. The first and last constants are zero.
func mimcSpongeConstants(seed string) [mimcRounds]fr.Element {
	var cts [mimcRounds]fr.Element
	c := crypto.Keccak256([]byte(seed))
	for i := 1; i < mimcRounds-1; i++ {
		c = crypto.Keccak256(c)
		cts[i].SetBigInt(new(big.Int).SetBytes(c))
	}
	return cts
}

// MiMCSponge applies the MiMC-Feistel permutation with exponent 5 to the
// state (xL, xR) under key k, over the BN254 scalar field.
func MiMCSponge(xL, xR, k fr.Element) (fr.Element, fr.Element) {
	var t, t5 fr.Element
	for i := 0; i < mimcRounds; i++ {
		t.Add(&xL, &k).Add(&t, &mimcConstants[i])
		t5.Square(&t).Square(&t5).Mul(&t5, &t)

		if i < mimcRounds-1 {
			var next fr.Element
			next.Add(&xR, &t5)
			xL, xR = next, xL
		} else {
			xR.Add(&xR, &t5)
		}
	}
	return xL, xR
}

// MiMCSpongeMultiHash absorbs inputs into the sponge and squeezes the given
// number of outputs.
func MiMCSpongeMultiHash(inputs []fr.Element, key fr.Element, outputs int) []fr.Element {
	var r, c fr.Element
	for i := range inputs {
		r.Add(&r, &inputs[i])
		r, c = MiMCSponge(r, c, key)
	}

	out := make([]fr.Element, 0, outputs)
	out = append(out, r)
	for i := 1; i < outputs; i++ {
		r, c = MiMCSponge(r, c, key)
		out = append(out, r)
	}
	return out
}

// HashScalar hashes a single integer with key zero and one output. The
// integer is reduced modulo the field order first.
func HashScalar(v *big.Int) *big.Int {
	var in fr.Element
	in.SetBigInt(v)
	h := MiMCSpongeMultiHash([]fr.Element{in}, fr.Element{}, 1)[0]
	return h.BigInt(new(big.Int))
}
