package cryptoutils

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = KDFParams{Time: 1, Memory: 1024, Threads: 1}

func TestSealOpen(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"key input", []byte(`{"privateKey":"123","publicKeys":["1","2"]}`)},
		{"binary", []byte{0x00, 0x01, 0xFF, 0xFE}},
		{"empty", []byte{}},
		{"long", make([]byte, 4096)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := SealWithParams([]byte("correct horse"), tc.data, fastParams)
			require.NoError(t, err)
			assert.True(t, IsSealed(sealed))

			opened, err := Open([]byte("correct horse"), sealed)
			require.NoError(t, err)
			assert.Equal(t, len(tc.data), len(opened))
			if len(tc.data) > 0 {
				assert.Equal(t, tc.data, opened)
			}

			_, err = Open([]byte("wrong horse"), sealed)
			require.ErrorIs(t, err, ErrDecryptionFailed)
		})
	}
}

func TestSeal_Randomized(t *testing.T) {
	a, err := SealWithParams([]byte("pw"), []byte("same"), fastParams)
	require.NoError(t, err)
	b, err := SealWithParams([]byte("pw"), []byte("same"), fastParams)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_Tampered(t *testing.T) {
	sealed, err := SealWithParams([]byte("pw"), []byte("secret"), fastParams)
	require.NoError(t, err)

	var blob SealedBlob
	require.NoError(t, json.Unmarshal(sealed, &blob))

	// weakening the stored KDF parameters breaks authentication
	blob.Params.Time = 2
	tampered, err := json.Marshal(blob)
	require.NoError(t, err)
	_, err = Open([]byte("pw"), tampered)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	blob.Params = fastParams
	blob.Version = 7
	tampered, err = json.Marshal(blob)
	require.NoError(t, err)
	_, err = Open([]byte("pw"), tampered)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Open([]byte("pw"), []byte("not json"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = SealWithParams(nil, []byte("x"), fastParams)
	require.Error(t, err)
}

func TestRecipient(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	pub, err := ParseRecipient(hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)))
	require.NoError(t, err)
	compressed, err := ParseRecipient("0x" + hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey)))
	require.NoError(t, err)
	assert.True(t, pub.Equal(compressed))

	sealed, err := SealForRecipient(pub, []byte("share 1 of 3"))
	require.NoError(t, err)

	opened, err := OpenAsRecipient(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("share 1 of 3"), opened)

	_, err = OpenAsRecipient(other, sealed)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = ParseRecipient("zz")
	require.Error(t, err)
}
