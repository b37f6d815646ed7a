package wallet

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/manuelog-udc/tfm-munics/interfaces"
)

var (
	// ErrNotEnoughSigners is returned when a transaction lacks owner confirmations.
	ErrNotEnoughSigners = errors.New("not enough owner signatures")
	// ErrUnknownSigner is returned when a signer is not an owner.
	ErrUnknownSigner = errors.New("signer is not an owner")
	// ErrModuleNotEnabled is returned for module calls from a disabled module.
	ErrModuleNotEnabled = errors.New("module not enabled")
	// ErrInvalidThreshold is returned for thresholds outside 1..owners.
	ErrInvalidThreshold = errors.New("invalid threshold")
	// ErrOwnerExists is returned when adding an existing owner.
	ErrOwnerExists = errors.New("address is already an owner")
	// ErrOwnerNotFound is returned when removing an unknown owner.
	ErrOwnerNotFound = errors.New("address is not an owner")
	// ErrInsufficientFunds is returned when a ledger balance cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Safe is an in-memory multisig wallet with Gnosis Safe semantics: an ordered
// owner set, a confirmation threshold, a nonce bumped by every owner-signed
// transaction and a set of enabled modules. It also keeps a native-currency
// ledger so modules can hold and pay out funds.
type Safe struct {
	mu sync.Mutex

	address   interfaces.Address
	owners    []interfaces.Address
	threshold uint64
	nonce     uint64
	modules   map[interfaces.Address]bool
	balances  map[interfaces.Address]*big.Int
}

// NewSafe creates a wallet at address with the given owners and threshold.
func NewSafe(address interfaces.Address, owners []interfaces.Address, threshold uint64) (*Safe, error) {
	if len(owners) == 0 {
		return nil, errors.New("safe needs at least one owner")
	}
	s := &Safe{
		address:  address,
		modules:  make(map[interfaces.Address]bool),
		balances: make(map[interfaces.Address]*big.Int),
	}
	for _, owner := range owners {
		if owner.IsZero() {
			return nil, errors.New("zero address cannot be an owner")
		}
		if s.indexOf(owner) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrOwnerExists, owner)
		}
		s.owners = append(s.owners, owner)
	}
	if threshold == 0 || threshold > uint64(len(s.owners)) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, threshold, len(s.owners))
	}
	s.threshold = threshold
	return s, nil
}

// Address returns the wallet address.
func (s *Safe) Address() interfaces.Address {
	return s.address
}

// IsOwner reports whether addr is an owner.
func (s *Safe) IsOwner(addr interfaces.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(addr) >= 0
}

// Owners returns the owners in insertion order.
func (s *Safe) Owners() []interfaces.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interfaces.Address(nil), s.owners...)
}

func (s *Safe) Threshold() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

func (s *Safe) Nonce() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}

// IsModuleEnabled reports whether module may call into the wallet.
func (s *Safe) IsModuleEnabled(module interfaces.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modules[module]
}

// Operation is a wallet-level change executed by ExecTransaction.
type Operation func(s *Safe) error

// AddOwnerOp adds owner and sets a new threshold.
func AddOwnerOp(owner interfaces.Address, threshold uint64) Operation {
	return func(s *Safe) error {
		if err := s.addOwner(owner); err != nil {
			return err
		}
		return s.setThreshold(threshold)
	}
}

// RemoveOwnerOp removes owner and sets a new threshold.
func RemoveOwnerOp(owner interfaces.Address, threshold uint64) Operation {
	return func(s *Safe) error {
		i := s.indexOf(owner)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrOwnerNotFound, owner)
		}
		if len(s.owners) == 1 {
			return errors.New("cannot remove the last owner")
		}
		s.owners = append(s.owners[:i:i], s.owners[i+1:]...)
		return s.setThreshold(threshold)
	}
}

// ChangeThresholdOp sets a new confirmation threshold.
func ChangeThresholdOp(threshold uint64) Operation {
	return func(s *Safe) error {
		return s.setThreshold(threshold)
	}
}

// EnableModuleOp allows module to call AddOwner through a ModuleAdapter.
func EnableModuleOp(module interfaces.Address) Operation {
	return func(s *Safe) error {
		if module.IsZero() {
			return errors.New("invalid module address")
		}
		s.modules[module] = true
		return nil
	}
}

// DisableModuleOp revokes module access.
func DisableModuleOp(module interfaces.Address) Operation {
	return func(s *Safe) error {
		delete(s.modules, module)
		return nil
	}
}

// TransferOp pays amount from the wallet's own balance.
func TransferOp(to interfaces.Address, amount *big.Int) Operation {
	return func(s *Safe) error {
		return s.move(s.address, to, amount)
	}
}

// ExecTransaction applies op when signers hold enough distinct owner
// confirmations, then bumps the nonce. A failing op leaves the wallet
// unchanged.
func (s *Safe) ExecTransaction(signers []interfaces.Address, op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[interfaces.Address]struct{}, len(signers))
	for _, signer := range signers {
		if s.indexOf(signer) < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownSigner, signer)
		}
		seen[signer] = struct{}{}
	}
	if uint64(len(seen)) < s.threshold {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughSigners, len(seen), s.threshold)
	}

	snapshot := s.snapshot()
	if err := op(s); err != nil {
		s.restore(snapshot)
		return err
	}
	s.nonce++
	return nil
}

// Credit adds amount to the ledger balance of addr.
func (s *Safe) Credit(addr interfaces.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceOf(addr).Add(s.balanceOf(addr), amount)
}

// BalanceOf returns the ledger balance of addr.
func (s *Safe) BalanceOf(addr interfaces.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.balanceOf(addr))
}

// ModuleAdapter returns the view an enabled module at address module has of
// the wallet. The adapter implements both interfaces.WalletAdapter and
// interfaces.Treasury, paying out of the module's ledger balance.
func (s *Safe) ModuleAdapter(module interfaces.Address) *ModuleAdapter {
	return &ModuleAdapter{safe: s, module: module}
}

func (s *Safe) indexOf(addr interfaces.Address) int {
	for i, owner := range s.owners {
		if owner == addr {
			return i
		}
	}
	return -1
}

func (s *Safe) addOwner(owner interfaces.Address) error {
	if owner.IsZero() || owner == s.address {
		return fmt.Errorf("invalid owner address %s", owner)
	}
	if s.indexOf(owner) >= 0 {
		return fmt.Errorf("%w: %s", ErrOwnerExists, owner)
	}
	s.owners = append(s.owners, owner)
	return nil
}

func (s *Safe) setThreshold(threshold uint64) error {
	if threshold == 0 || threshold > uint64(len(s.owners)) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, threshold, len(s.owners))
	}
	s.threshold = threshold
	return nil
}

func (s *Safe) balanceOf(addr interfaces.Address) *big.Int {
	b, ok := s.balances[addr]
	if !ok {
		b = new(big.Int)
		s.balances[addr] = b
	}
	return b
}

func (s *Safe) move(from, to interfaces.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("invalid amount")
	}
	src := s.balanceOf(from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, src, amount)
	}
	src.Sub(src, amount)
	s.balanceOf(to).Add(s.balanceOf(to), amount)
	return nil
}

type safeSnapshot struct {
	owners    []interfaces.Address
	threshold uint64
	modules   map[interfaces.Address]bool
	balances  map[interfaces.Address]*big.Int
}

func (s *Safe) snapshot() safeSnapshot {
	snap := safeSnapshot{
		owners:    append([]interfaces.Address(nil), s.owners...),
		threshold: s.threshold,
		modules:   make(map[interfaces.Address]bool, len(s.modules)),
		balances:  make(map[interfaces.Address]*big.Int, len(s.balances)),
	}
	for k, v := range s.modules {
		snap.modules[k] = v
	}
	for k, v := range s.balances {
		snap.balances[k] = new(big.Int).Set(v)
	}
	return snap
}

func (s *Safe) restore(snap safeSnapshot) {
	s.owners = snap.owners
	s.threshold = snap.threshold
	s.modules = snap.modules
	s.balances = snap.balances
}

// ModuleAdapter is a module's handle on a Safe.
type ModuleAdapter struct {
	safe   *Safe
	module interfaces.Address
}

// Module returns the address the adapter acts as.
func (a *ModuleAdapter) Module() interfaces.Address {
	return a.module
}

func (a *ModuleAdapter) Address() interfaces.Address {
	return a.safe.Address()
}

func (a *ModuleAdapter) IsOwner(addr interfaces.Address) (bool, error) {
	return a.safe.IsOwner(addr), nil
}

func (a *ModuleAdapter) OwnerThreshold() (uint64, error) {
	return a.safe.Threshold(), nil
}

func (a *ModuleAdapter) MutationNonce() (uint64, error) {
	return a.safe.Nonce(), nil
}

// AddOwner adds owner keeping the current threshold. It fails unless the
// module is enabled. As with execTransactionFromModule on a Safe, the nonce
// is left unchanged.
func (a *ModuleAdapter) AddOwner(owner interfaces.Address) error {
	s := a.safe
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.modules[a.module] {
		return fmt.Errorf("%w: %s", ErrModuleNotEnabled, a.module)
	}
	return s.addOwner(owner)
}

// Transfer pays amount from the module's ledger balance.
func (a *ModuleAdapter) Transfer(to interfaces.Address, amount *big.Int) error {
	s := a.safe
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.move(a.module, to, amount)
}

// Deposit credits amount to the module's ledger balance. In memory mode
// payments are declared by the caller, not verified.
func (a *ModuleAdapter) Deposit(amount *big.Int) {
	a.safe.Credit(a.module, amount)
}
