package wallet

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/manuelog-udc/tfm-munics/interfaces"
)

// The subset of the Gnosis Safe interface the module uses.
const safeABIJSON = `[
	{"type":"function","name":"isOwner","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getOwners","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"getThreshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"nonce","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isModuleEnabled","stateMutability":"view","inputs":[{"name":"module","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"addOwnerWithThreshold","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"},{"name":"_threshold","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"execTransactionFromModule","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"}],"outputs":[{"name":"success","type":"bool"}]}
]`

// operationCall is Enum.Operation.Call.
const operationCall uint8 = 0

var safeABI = mustParseABI(safeABIJSON)

// ErrModuleCallFailed is returned when the Safe reported the module call as unsuccessful.
var ErrModuleCallFailed = errors.New("safe module call did not add the owner")

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid abi: %v", err))
	}
	return parsed
}

// SafeClient is a WalletAdapter for a Gnosis Safe deployed on chain. The
// configured key must belong to a module enabled on the Safe.
type SafeClient struct {
	address  common.Address
	contract *bind.BoundContract
	tx       *transactor
	log      *slog.Logger
}

// NewSafeClient binds to the Safe at address.
func NewSafeClient(address interfaces.Address, cfg ChainConfig, log *slog.Logger) (*SafeClient, error) {
	tx, err := newTransactor(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	addr := address.Common()
	return &SafeClient{
		address:  addr,
		contract: bind.NewBoundContract(addr, safeABI, cfg.Backend, cfg.Backend, cfg.Backend),
		tx:       tx,
		log:      log.With("safe", addr.Hex()),
	}, nil
}

func (c *SafeClient) Address() interfaces.Address {
	return interfaces.Address(c.address)
}

// Module returns the module address the client sends transactions from.
func (c *SafeClient) Module() interfaces.Address {
	return interfaces.Address(c.tx.from)
}

func (c *SafeClient) IsOwner(addr interfaces.Address) (bool, error) {
	var out []interface{}
	if err := c.call(&out, "isOwner", addr.Common()); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *SafeClient) OwnerThreshold() (uint64, error) {
	return c.callUint("getThreshold")
}

func (c *SafeClient) MutationNonce() (uint64, error) {
	return c.callUint("nonce")
}

// Owners returns the Safe's current owner list.
func (c *SafeClient) Owners() ([]interfaces.Address, error) {
	var out []interface{}
	if err := c.call(&out, "getOwners"); err != nil {
		return nil, err
	}
	owners := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)
	res := make([]interfaces.Address, len(owners))
	for i, o := range owners {
		res[i] = interfaces.Address(o)
	}
	return res, nil
}

// AddOwner makes the Safe add owner through execTransactionFromModule,
// keeping the current threshold.
func (c *SafeClient) AddOwner(owner interfaces.Address) error {
	threshold, err := c.OwnerThreshold()
	if err != nil {
		return err
	}
	data, err := addOwnerCalldata(owner, threshold)
	if err != nil {
		return err
	}

	receipt, err := c.tx.send(func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.contract.Transact(opts, "execTransactionFromModule", c.address, big.NewInt(0), data, operationCall)
	})
	if err != nil {
		return fmt.Errorf("failed to execute module transaction: %w", err)
	}

	isOwner, err := c.IsOwner(owner)
	if err != nil {
		return err
	}
	if !isOwner {
		return fmt.Errorf("%w: tx %s", ErrModuleCallFailed, receipt.TxHash.Hex())
	}

	c.log.Info("Owner added through module", "owner", owner.String(), "tx", receipt.TxHash.Hex())
	return nil
}

func addOwnerCalldata(owner interfaces.Address, threshold uint64) ([]byte, error) {
	data, err := safeABI.Pack("addOwnerWithThreshold", owner.Common(), new(big.Int).SetUint64(threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to pack addOwnerWithThreshold: %w", err)
	}
	return data, nil
}

func (c *SafeClient) call(out *[]interface{}, method string, params ...interface{}) error {
	ctx, cancel := c.tx.context()
	defer cancel()

	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, out, method, params...); err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	return nil
}

func (c *SafeClient) callUint(method string) (uint64, error) {
	var out []interface{}
	if err := c.call(&out, method); err != nil {
		return 0, err
	}
	v := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s result %s overflows uint64", method, v)
	}
	return v.Uint64(), nil
}
