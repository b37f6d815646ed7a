package verifier

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticKeys is a minimal KeySet backed by a slice.
type staticKeys struct {
	keys  []*VerifyingKey
	valid []bool
}

func (s *staticKeys) Key(index int) (*VerifyingKey, bool, error) {
	if index < 0 || index >= len(s.keys) {
		return nil, false, ErrIndexOutOfRange
	}
	return s.keys[index], s.valid[index], nil
}

func testInputs() []*big.Int {
	return []*big.Int{big.NewInt(12345), big.NewInt(67890)}
}

func newTestSetup(t *testing.T) (*Trapdoor, *Proof) {
	t.Helper()
	td, err := NewTrapdoor(rand.Reader, 2)
	require.NoError(t, err)
	proof, err := td.Prove(rand.Reader, testInputs())
	require.NoError(t, err)
	return td, proof
}

func TestVerifyProof(t *testing.T) {
	td, proof := newTestSetup(t)
	vk := td.VerifyingKey()
	require.NoError(t, vk.Validate())

	assert.True(t, VerifyProof(vk, proof, proof.Inputs))

	t.Run("wrong public inputs", func(t *testing.T) {
		other := []*big.Int{big.NewInt(12345), big.NewInt(1)}
		assert.False(t, VerifyProof(vk, proof, other))
	})

	t.Run("wrong input count", func(t *testing.T) {
		assert.False(t, VerifyProof(vk, proof, proof.Inputs[:1]))
	})

	t.Run("non canonical input", func(t *testing.T) {
		shifted := new(big.Int).Add(proof.Inputs[1], fr.Modulus())
		assert.False(t, VerifyProof(vk, proof, []*big.Int{proof.Inputs[0], shifted}))
	})

	t.Run("tampered proof", func(t *testing.T) {
		tampered := *proof
		tampered.C.Add(&tampered.C, &vk.Alpha1)
		assert.False(t, VerifyProof(vk, &tampered, proof.Inputs))
	})

	t.Run("point off curve", func(t *testing.T) {
		tampered := *proof
		tampered.A.Y.SetOne()
		assert.False(t, VerifyProof(vk, &tampered, proof.Inputs))
	})

	t.Run("other setup", func(t *testing.T) {
		otherTD, err := NewTrapdoor(rand.Reader, 2)
		require.NoError(t, err)
		assert.False(t, VerifyProof(otherTD.VerifyingKey(), proof, proof.Inputs))
	})

	t.Run("nil arguments", func(t *testing.T) {
		assert.False(t, VerifyProof(nil, proof, proof.Inputs))
		assert.False(t, VerifyProof(vk, nil, proof.Inputs))
	})
}

func TestVerifier_Index(t *testing.T) {
	td, proof := newTestSetup(t)
	keys := &staticKeys{
		keys:  []*VerifyingKey{td.VerifyingKey(), td.VerifyingKey()},
		valid: []bool{true, false},
	}
	v := New(keys)

	ok, err := v.Verify(proof, proof.Inputs, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(proof, testInputs()[:1], 0)
	require.NoError(t, err, "a rejected proof is not an error")
	assert.False(t, ok)

	_, err = v.Verify(proof, proof.Inputs, 1)
	assert.ErrorIs(t, err, ErrKeyInvalidated)

	_, err = v.Verify(proof, proof.Inputs, 2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = v.Verify(proof, proof.Inputs, -1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestVerifyingKey_JSON(t *testing.T) {
	td, proof := newTestSetup(t)
	vk := td.VerifyingKey()

	data, err := json.Marshal(vk)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "groth16", fields["protocol"])
	assert.EqualValues(t, 2, fields["nPublic"])

	var decoded VerifyingKey
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Alpha1.Equal(&vk.Alpha1))
	assert.True(t, decoded.Beta2.Equal(&vk.Beta2))
	assert.True(t, VerifyProof(&decoded, proof, proof.Inputs))

	keys, err := ParseVerifyingKeys([]byte("[" + string(data) + "," + string(data) + "]"))
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	keys, err = ParseVerifyingKeys(data)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	_, err = ParseVerifyingKeys([]byte(`{"protocol":"plonk"}`))
	assert.Error(t, err)
}

func TestProof_CallDataJSON(t *testing.T) {
	td, proof := newTestSetup(t)

	data, err := json.Marshal(proof)
	require.NoError(t, err)

	var layout struct {
		B [][]string `json:"b"`
	}
	require.NoError(t, json.Unmarshal(data, &layout))
	require.Len(t, layout.B, 2)
	// imaginary part first
	assert.Equal(t, proof.B.X.A1.BigInt(new(big.Int)).String(), layout.B[0][0])

	var decoded Proof
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, VerifyProof(td.VerifyingKey(), &decoded, decoded.Inputs))
}

func TestParseSnarkJSProof(t *testing.T) {
	td, proof := newTestSetup(t)

	snark := map[string]interface{}{
		"pi_a":     append(formatG1(&proof.A), "1"),
		"pi_b":     append(formatG2(&proof.B, snarkjsOrder), []string{"1", "0"}),
		"pi_c":     append(formatG1(&proof.C), "1"),
		"protocol": "groth16",
	}
	proofJSON, err := json.Marshal(snark)
	require.NoError(t, err)
	publicJSON, err := json.Marshal([]string{"12345", "67890"})
	require.NoError(t, err)

	parsed, err := ParseSnarkJSProof(proofJSON, publicJSON)
	require.NoError(t, err)
	assert.True(t, VerifyProof(td.VerifyingKey(), parsed, parsed.Inputs))

	_, err = ParseSnarkJSProof(proofJSON, []byte(`["-1"]`))
	assert.Error(t, err)
}

func TestParsePoints(t *testing.T) {
	_, _, g1, _ := bn254.Generators()

	p, err := parseG1([]string{"1", "2"})
	require.NoError(t, err)
	assert.True(t, p.Equal(&g1))

	inf, err := parseG1([]string{"0", "1", "0"})
	require.NoError(t, err)
	assert.True(t, inf.IsInfinity())

	_, err = parseG1([]string{"1"})
	assert.ErrorIs(t, err, ErrMalformedPoint)

	_, err = parseG1([]string{"1", "abc"})
	assert.ErrorIs(t, err, ErrMalformedPoint)

	_, err = parseG1([]string{fp256(), "2"})
	assert.ErrorIs(t, err, ErrMalformedPoint)

	_, err = parseG2([][]string{{"1", "2"}}, snarkjsOrder)
	assert.ErrorIs(t, err, ErrMalformedPoint)
}

func fp256() string {
	return new(big.Int).Lsh(big.NewInt(1), 256).String()
}
