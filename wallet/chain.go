package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrTxFailed is returned when a sent transaction was mined with a failure status.
var ErrTxFailed = errors.New("transaction failed")

// Backend is the Ethereum client surface the chain adapters use. Both
// *ethclient.Client and the simulated backend client satisfy it.
type Backend interface {
	bind.ContractBackend
	ethereum.TransactionReader
	ethereum.ChainStateReader
}

// ChainConfig configures the adapters that send transactions as the module.
type ChainConfig struct {
	Backend Backend

	// Key signs module transactions. Its address is the module address.
	Key *ecdsa.PrivateKey

	ChainID *big.Int

	// Timeout bounds each call, including waiting for a receipt.
	Timeout time.Duration

	// Commit, when set, is called after each transaction is sent. Simulated
	// backends use it to mine the pending block.
	Commit func()
}

type transactor struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	timeout time.Duration
	commit  func()

	// one transaction in flight at a time keeps the account nonce ordered
	mu sync.Mutex
}

func newTransactor(cfg ChainConfig) (*transactor, error) {
	switch {
	case cfg.Backend == nil:
		return nil, errors.New("chain backend is required")
	case cfg.Key == nil:
		return nil, errors.New("module key is required")
	case cfg.ChainID == nil:
		return nil, errors.New("chain id is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &transactor{
		backend: cfg.Backend,
		key:     cfg.Key,
		from:    crypto.PubkeyToAddress(cfg.Key.PublicKey),
		chainID: cfg.ChainID,
		timeout: timeout,
		commit:  cfg.Commit,
	}, nil
}

func (t *transactor) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), t.timeout)
}

func (t *transactor) opts(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(t.key, t.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx
	return auth, nil
}

// send builds a transaction with fn and waits until it is mined successfully.
func (t *transactor) send(fn func(opts *bind.TransactOpts) (*types.Transaction, error)) (*types.Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := t.context()
	defer cancel()

	opts, err := t.opts(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := fn(opts)
	if err != nil {
		return nil, err
	}
	if t.commit != nil {
		t.commit()
	}

	receipt, err := waitReceipt(ctx, t.backend, tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTxFailed, tx.Hash().Hex())
	}
	return receipt, nil
}

func waitReceipt(ctx context.Context, backend ethereum.TransactionReader, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
