package keygen

import (
	"errors"
	"fmt"

	"github.com/hashicorp/vault/shamir"
)

// ErrInvalidShareParams is returned for share counts shamir cannot serve.
var ErrInvalidShareParams = errors.New("invalid share parameters")

// SplitSecret splits sealed key material into parts shares, any threshold of
// which reconstruct it. Used to hand a recovery identity to several
// custodians without any single one holding it.
func SplitSecret(secret []byte, parts, threshold int) ([][]byte, error) {
	if threshold < 2 || parts < threshold || parts > 255 {
		return nil, fmt.Errorf("%w: %d-of-%d", ErrInvalidShareParams, threshold, parts)
	}
	shares, err := shamir.Split(secret, parts, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split secret: %w", err)
	}
	return shares, nil
}

// CombineShares reconstructs a secret from at least threshold shares.
func CombineShares(shares [][]byte) ([]byte, error) {
	secret, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("failed to combine shares: %w", err)
	}
	return secret, nil
}
