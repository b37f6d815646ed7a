// Package cryptoutils protects recovery key inputs at rest.
//
// Seal and Open wrap data in a JSON envelope encrypted with AES-256-GCM under
// an argon2id-derived key. SealForRecipient and OpenAsRecipient encrypt to a
// custodian's Ethereum key with ECIES instead, for handing Shamir shares to
// the people who hold them.
package cryptoutils
