// Package wallet provides the multisig wallet adapters the recovery module
// runs against.
//
// Safe is an in-memory wallet with Gnosis Safe semantics, used by tests and
// by the server's memory mode. SafeClient, EthTreasury, ChainClock and
// PaymentVerifier talk to a real chain through go-ethereum: the module is an
// account whose key signs execTransactionFromModule calls on the Safe and
// pays cancellation rewards.
package wallet
