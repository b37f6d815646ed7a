package httpserver

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/manuelog-udc/tfm-munics/api"
	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/manuelog-udc/tfm-munics/wallet"
)

// ErrInvalidPayment is returned for a payment field that cannot be parsed or
// is not accepted by the server's payment mode.
var ErrInvalidPayment = errors.New("invalid payment")

// Payments turns the payment attached to a request into the amount handed to
// the recovery module. Resolve runs before the module call, Settle only after
// the call succeeded.
type Payments interface {
	Resolve(ctx context.Context, caller interfaces.Address, p api.Payment) (*big.Int, error)
	Settle(ctx context.Context, caller interfaces.Address, p api.Payment, amount *big.Int) error
}

// MemoryPayments credits declared amounts to a memory-mode module account.
type MemoryPayments struct {
	adapter *wallet.ModuleAdapter
}

func NewMemoryPayments(adapter *wallet.ModuleAdapter) *MemoryPayments {
	return &MemoryPayments{adapter: adapter}
}

func (p *MemoryPayments) Resolve(_ context.Context, _ interfaces.Address, payment api.Payment) (*big.Int, error) {
	if payment.Tx != "" {
		return nil, fmt.Errorf("%w: payment transactions are not accepted in memory mode", ErrInvalidPayment)
	}
	return parseAmount(payment.Amount)
}

func (p *MemoryPayments) Settle(_ context.Context, _ interfaces.Address, _ api.Payment, amount *big.Int) error {
	if amount.Sign() > 0 {
		p.adapter.Deposit(amount)
	}
	return nil
}

// ChainPayments accepts only mined transfers to the module account.
type ChainPayments struct {
	verifier *wallet.PaymentVerifier
}

func NewChainPayments(verifier *wallet.PaymentVerifier) *ChainPayments {
	return &ChainPayments{verifier: verifier}
}

func (p *ChainPayments) Resolve(ctx context.Context, caller interfaces.Address, payment api.Payment) (*big.Int, error) {
	if payment.Amount != "" {
		return nil, fmt.Errorf("%w: declared amounts are not accepted, send payment_tx", ErrInvalidPayment)
	}
	if payment.Tx == "" {
		return new(big.Int), nil
	}
	hash, err := parseTxHash(payment.Tx)
	if err != nil {
		return nil, err
	}
	return p.verifier.Verify(ctx, caller, hash)
}

func (p *ChainPayments) Settle(_ context.Context, _ interfaces.Address, payment api.Payment, _ *big.Int) error {
	if payment.Tx == "" {
		return nil
	}
	hash, err := parseTxHash(payment.Tx)
	if err != nil {
		return err
	}
	return p.verifier.MarkUsed(hash)
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount %q", ErrInvalidPayment, s)
	}
	return amount, nil
}

func parseTxHash(s string) (common.Hash, error) {
	b := common.FromHex(s)
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: transaction hash %q", ErrInvalidPayment, s)
	}
	return common.BytesToHash(b), nil
}
