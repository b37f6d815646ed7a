// Package interfaces defines the shared types and narrow interfaces of the
// social recovery service, separating interface definitions from implementations.
//
// # Wallet Interfaces
//
// WalletAdapter: the recovery module's view of the protected multisig wallet
// (owner predicate, owner threshold, mutation nonce, and the privileged
// AddOwner call available to enabled modules).
//
// Treasury: pays deposits back out of the module (cancellation rewards).
//
// Clock: ledger time used for waiting-period checks.
//
// # Notifications
//
// Event and EventKind describe the structured records appended by every
// state-changing module call. EventSink receives them synchronously.
//
// # Storage Interfaces
//
// StorageBackend: content-addressed storage for sealed key inputs and
// verifying-key sets across file, S3, IPFS and Vault backends.
//
// StorageBackendFactory: creates storage backends from URI strings and
// aggregates several of them with fallback.
//
// # Types
//
//   - Address: 20-byte Ethereum address with hex and JSON helpers
//   - ContentID: 32-byte SHA-256 hash for content addressing
//   - ContentType: storage namespace (KeyInputType, VerifyingKeyType)
package interfaces
