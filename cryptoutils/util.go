package cryptoutils

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

func hexDecode(s string) ([]byte, error) {
	if len(s) < 2 || s[:2] != "0x" {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}
