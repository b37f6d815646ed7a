package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/manuelog-udc/tfm-munics/interfaces"
)

var (
	// ErrPaymentNotFound is returned for unknown or pending payment transactions.
	ErrPaymentNotFound = errors.New("payment transaction not found")
	// ErrPaymentInvalid is returned when a transaction does not pay the module from the caller.
	ErrPaymentInvalid = errors.New("payment transaction is not a valid payment")
	// ErrPaymentReused is returned for a transaction already credited once.
	ErrPaymentReused = errors.New("payment transaction already used")
)

// PaymentVerifier checks native-currency payments sent to the module
// account. Each payment transaction is credited at most once.
type PaymentVerifier struct {
	backend ethereum.TransactionReader
	module  common.Address
	signer  types.Signer

	mu   sync.Mutex
	used map[common.Hash]struct{}
}

func NewPaymentVerifier(backend ethereum.TransactionReader, module interfaces.Address, chainID *big.Int) *PaymentVerifier {
	return &PaymentVerifier{
		backend: backend,
		module:  module.Common(),
		signer:  types.LatestSignerForChainID(chainID),
		used:    make(map[common.Hash]struct{}),
	}
}

// Verify returns the value of the mined transaction hash if it was sent by
// caller to the module account, succeeded and was not used before.
func (v *PaymentVerifier) Verify(ctx context.Context, caller interfaces.Address, hash common.Hash) (*big.Int, error) {
	v.mu.Lock()
	_, used := v.used[hash]
	v.mu.Unlock()
	if used {
		return nil, fmt.Errorf("%w: %s", ErrPaymentReused, hash.Hex())
	}

	tx, pending, err := v.backend.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) || (err == nil && pending) {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, hash.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment transaction: %w", err)
	}

	receipt, err := v.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: transaction reverted", ErrPaymentInvalid)
	}
	if tx.To() == nil || *tx.To() != v.module {
		return nil, fmt.Errorf("%w: recipient is not the module", ErrPaymentInvalid)
	}
	sender, err := types.Sender(v.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentInvalid, err)
	}
	if sender != caller.Common() {
		return nil, fmt.Errorf("%w: sent by %s, not by the caller", ErrPaymentInvalid, sender.Hex())
	}
	return new(big.Int).Set(tx.Value()), nil
}

// MarkUsed records hash as credited. It fails if it already was.
func (v *PaymentVerifier) MarkUsed(hash common.Hash) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, used := v.used[hash]; used {
		return fmt.Errorf("%w: %s", ErrPaymentReused, hash.Hex())
	}
	v.used[hash] = struct{}{}
	return nil
}
