package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/manuelog-udc/tfm-munics/interfaces"
)

// EthTreasury pays native currency out of the module account.
type EthTreasury struct {
	tx  *transactor
	log *slog.Logger
}

func NewEthTreasury(cfg ChainConfig, log *slog.Logger) (*EthTreasury, error) {
	tx, err := newTransactor(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &EthTreasury{tx: tx, log: log}, nil
}

// Address returns the account funds are paid from.
func (t *EthTreasury) Address() interfaces.Address {
	return interfaces.Address(t.tx.from)
}

// Balance returns the module account balance.
func (t *EthTreasury) Balance(ctx context.Context) (*big.Int, error) {
	return t.tx.backend.BalanceAt(ctx, t.tx.from, nil)
}

// Transfer sends amount to the given address and waits for it to be mined.
func (t *EthTreasury) Transfer(to interfaces.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("invalid transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}

	payee := bind.NewBoundContract(to.Common(), abi.ABI{}, nil, t.tx.backend, nil)
	receipt, err := t.tx.send(func(opts *bind.TransactOpts) (*types.Transaction, error) {
		opts.Value = new(big.Int).Set(amount)
		return payee.Transfer(opts)
	})
	if err != nil {
		return fmt.Errorf("failed to transfer %s wei to %s: %w", amount, to, err)
	}

	t.log.Info("Treasury payout sent", "to", to.String(), "amount", amount.String(), "tx", receipt.TxHash.Hex())
	return nil
}
