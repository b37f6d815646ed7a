package keygen

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"io"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigFromString(t *testing.T, s string, base int) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, base)
	require.True(t, ok, "invalid test constant %s", s)
	return v
}

func sequentialRaw() [RawKeySize]byte {
	var raw [RawKeySize]byte
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return raw
}

func TestMiMCSpongeConstants(t *testing.T) {
	assert.True(t, mimcConstants[0].IsZero())
	assert.True(t, mimcConstants[mimcRounds-1].IsZero())

	c1 := bigFromString(t, "7120861356467848435263064379192047478074060781135320967663101236819528304084", 10)
	assert.Equal(t, 0, mimcConstants[1].BigInt(new(big.Int)).Cmp(c1))
}

func TestMiMCSponge_KnownVectors(t *testing.T) {
	var xL, xR, k fr.Element
	xL.SetUint64(1)
	xR.SetUint64(2)
	k.SetUint64(3)

	outL, outR := MiMCSponge(xL, xR, k)
	assert.Equal(t, "28c6f78ee3ed6b336280d3e522b03efc49eeb5a2a3af1075ccf6f64e5d867e53", outL.BigInt(new(big.Int)).Text(16))
	assert.Equal(t, "5d9ff7555e18007f7809e5977e6dd41ff93ca7c8d11249d51eaeb0b4f727d37", outR.BigInt(new(big.Int)).Text(16))

	h := HashScalar(big.NewInt(1))
	assert.Equal(t, "8792246410719720074073794355580855662772292438409936688983564419486782556587", h.String())
}

func TestMiMCSpongeMultiHash_ReducesInput(t *testing.T) {
	// inputs are taken modulo the field order
	shifted := new(big.Int).Add(fr.Modulus(), big.NewInt(1))
	assert.Equal(t, HashScalar(big.NewInt(1)).String(), HashScalar(shifted).String())

	var one fr.Element
	one.SetOne()
	outs := MiMCSpongeMultiHash([]fr.Element{one}, fr.Element{}, 3)
	require.Len(t, outs, 3)
	assert.Equal(t, HashScalar(big.NewInt(1)).String(), outs[0].BigInt(new(big.Int)).String())
	assert.False(t, outs[0].Equal(&outs[1]))
}

func TestBabyJubBase(t *testing.T) {
	assert.True(t, Base8.IsOnCurve())
	assert.True(t, MulBase8(big.NewInt(1)).Equal(Base8))

	identity := MulBase8(SubgroupOrder)
	assert.Equal(t, 0, identity.X.Sign())
	assert.Equal(t, 0, identity.Y.Cmp(big.NewInt(1)))

	two := MulBase8(big.NewInt(2))
	assert.True(t, two.IsOnCurve())
	assert.False(t, two.Equal(Base8))

	offCurve := Point{X: big.NewInt(1), Y: big.NewInt(2)}
	assert.False(t, offCurve.IsOnCurve())
}

func TestDerive_KnownVector(t *testing.T) {
	kp, err := Derive(sequentialRaw())
	require.NoError(t, err)

	assert.Equal(t, "52109966976136268951298113945015634881048125936154164819759611727373013364784", kp.Pruned.String())
	assert.Equal(t, "6513745872017033618912264243126954360131015742019270602469951465921626670598", kp.Private.String())
	assert.Equal(t, "12077103967156409212106592556489634460033681022692189050439117111922924550697", kp.Public.X.String())
	assert.Equal(t, "14531161579914397530347322176843308222644215615443106992662122621651033366245", kp.Public.Y.String())

	priv := new(big.Int).SetBytes(kp.Raw[:])
	assert.Equal(t, "455867356320691211509944977504407603390036387149619137164185182714736811808", priv.String())
	assert.Equal(t, "20475451243820166259487144534253180150331380793646374432840799009705023378844", HashScalar(priv).String())
}

func TestDerive_MatchesCircomlibGenerator(t *testing.T) {
	var raw [RawKeySize]byte
	raw[RawKeySize-1] = 1

	kp, err := Derive(raw)
	require.NoError(t, err)

	assert.Equal(t, "8792246410719720074073794355580855662772292438409936688983564419486782556587", HashScalar(big.NewInt(1)).String())
	assert.Equal(t, "54362738421377359358645410338912445369441756019592266747831827272448574306104", kp.Pruned.String())
	assert.Equal(t, "6795342302672169919830676292364055671180219502449033343478978409056071788263", kp.Private.String())
	assert.Equal(t, "17169438729834587269839703190877110567382422620241150424289450828377876632514", kp.Public.X.String())
	assert.Equal(t, "1559683454816482606478002681717374368422676743408152200813503474892133509651", kp.Public.Y.String())
}

func TestPruneScalar_UsesDecimalDigits(t *testing.T) {
	h, ok := new(big.Int).SetString("12345678901234567890123456789012345", 10)
	require.True(t, ok)

	buf := []byte("12345678901234567890123456789012")
	buf[0] &= 0xF8
	buf[31] &= 0x7F
	buf[31] |= 0x40
	want := new(big.Int)
	for i := len(buf) - 1; i >= 0; i-- {
		want.Lsh(want, 8)
		want.Or(want, big.NewInt(int64(buf[i])))
	}
	assert.Equal(t, want.String(), PruneScalar(h).String())

	short := PruneScalar(big.NewInt(9))
	assert.Equal(t, uint(1), short.Bit(254))
	assert.Equal(t, int64(0x38), new(big.Int).And(short, big.NewInt(0xFF)).Int64())
}

func TestDerive_Deterministic(t *testing.T) {
	raw := sequentialRaw()
	a, err := Derive(raw)
	require.NoError(t, err)
	b, err := Derive(raw)
	require.NoError(t, err)

	assert.Equal(t, 0, a.Private.Cmp(b.Private))
	assert.Equal(t, 0, a.Pruned.Cmp(b.Pruned))
	assert.True(t, a.Public.Equal(b.Public))
}

func TestDerive_ScalarProperties(t *testing.T) {
	lowBits := big.NewInt(7)
	for i := 0; i < 16; i++ {
		kp, err := Generate(rand.Reader)
		require.NoError(t, err)

		assert.True(t, InField(kp.Private), "private scalar must be below the field order")
		assert.Equal(t, 0, new(big.Int).And(kp.Pruned, lowBits).Sign(), "low 3 bits must be clear")
		assert.Equal(t, uint(0), kp.Pruned.Bit(255))
		assert.Equal(t, uint(1), kp.Pruned.Bit(254))
		assert.Equal(t, 0, new(big.Int).Rsh(kp.Pruned, 3).Cmp(kp.Private))
		assert.True(t, kp.Public.IsOnCurve())
	}
}

func TestDerive_InvalidRaw(t *testing.T) {
	var zero [RawKeySize]byte
	_, err := Derive(zero)
	assert.ErrorIs(t, err, ErrInvalidRawKey)

	var overflow [RawKeySize]byte
	for i := range overflow {
		overflow[i] = 0xFF
	}
	_, err = Derive(overflow)
	assert.ErrorIs(t, err, ErrInvalidRawKey)

	assert.False(t, ValidRawKey([]byte{1, 2, 3}))
}

func TestGenerate_Resamples(t *testing.T) {
	raw := sequentialRaw()
	overflow := bytes.Repeat([]byte{0xFF}, RawKeySize)
	r := io.MultiReader(bytes.NewReader(make([]byte, RawKeySize)), bytes.NewReader(overflow), bytes.NewReader(raw[:]))

	kp, err := Generate(r)
	require.NoError(t, err)
	assert.Equal(t, raw, kp.Raw)

	_, err = Generate(bytes.NewReader(make([]byte, RawKeySize)))
	assert.Error(t, err, "exhausted reader must surface an error")
}

func TestGenerateBatch(t *testing.T) {
	pairs, err := GenerateBatch(rand.Reader, 3)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.False(t, pairs[0].Public.Equal(pairs[1].Public))

	_, err = GenerateBatch(rand.Reader, 0)
	assert.Error(t, err)
}

func TestInput_RoundTrip(t *testing.T) {
	kp, err := Derive(sequentialRaw())
	require.NoError(t, err)

	data, err := kp.MarshalInput()
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "privateKey")
	assert.Contains(t, raw, "publicKeys")

	in, err := ParseInput(data)
	require.NoError(t, err)
	assert.True(t, in.Consistent())

	pub, err := in.PublicKey()
	require.NoError(t, err)
	assert.True(t, pub.Equal(kp.Public))

	in.PrivateKey = "1"
	assert.False(t, in.Consistent())

	_, err = ParseInput([]byte(`{"privateKey":"1","publicKeys":["1","2"]}`))
	assert.Error(t, err)
}

func TestSplitSecret(t *testing.T) {
	secret := []byte(`{"privateKey":"42","publicKeys":["1","2"]}`)

	shares, err := SplitSecret(secret, 5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	recovered, err := CombineShares([][]byte{shares[4], shares[0], shares[2]})
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)

	_, err = SplitSecret(secret, 2, 3)
	assert.ErrorIs(t, err, ErrInvalidShareParams)
	_, err = SplitSecret(secret, 3, 1)
	assert.ErrorIs(t, err, ErrInvalidShareParams)
}
