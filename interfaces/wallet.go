package interfaces

import "math/big"

// WalletAdapter is the narrow view the recovery module has of the multisig
// wallet it protects. Ownership may change independently of the module, so
// every method reads current wallet state.
type WalletAdapter interface {
	// Address returns the wallet address, used to tag emitted events.
	Address() Address

	// IsOwner checks whether addr is currently a wallet owner.
	IsOwner(addr Address) (bool, error)

	// OwnerThreshold returns the number of owner confirmations the wallet requires.
	OwnerThreshold() (uint64, error)

	// MutationNonce returns a counter incremented by wallet-level state changes.
	MutationNonce() (uint64, error)

	// AddOwner adds addr as an owner. The caller must be an enabled wallet module.
	AddOwner(addr Address) error
}

// Treasury pays out funds held by the recovery module.
type Treasury interface {
	Transfer(to Address, amount *big.Int) error
}

// Clock provides ledger time in unix seconds. It must never go backwards,
// and it returns an error rather than a time it has not observed.
type Clock interface {
	Now() (uint64, error)
}
