package httpserver

import (
	"context"
	"testing"

	"github.com/manuelog-udc/tfm-munics/api"
	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	amount, err := parseAmount("")
	require.NoError(t, err)
	assert.Equal(t, "0", amount.String())

	amount, err = parseAmount("1000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", amount.String())

	for _, bad := range []string{"-1", "1e18", "0x10", "one"} {
		_, err := parseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidPayment, bad)
	}
}

func TestParseTxHash(t *testing.T) {
	hash, err := parseTxHash("0x00000000000000000000000000000000000000000000000000000000000000ff")
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), hash[31])

	_, err = parseTxHash("0xff")
	assert.ErrorIs(t, err, ErrInvalidPayment)
}

func TestChainPayments_RejectsDeclaredAmounts(t *testing.T) {
	p := NewChainPayments(nil)
	_, err := p.Resolve(context.Background(), interfaces.Address{}, api.Payment{Amount: "5"})
	assert.ErrorIs(t, err, ErrInvalidPayment)

	amount, err := p.Resolve(context.Background(), interfaces.Address{}, api.Payment{})
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Sign())
	require.NoError(t, p.Settle(context.Background(), interfaces.Address{}, api.Payment{}, amount))
}
