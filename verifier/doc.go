// Package verifier checks Groth16 proofs over BN254 against verifying keys
// kept in an indexed key set.
//
// The pairing equation is evaluated with gnark-crypto as a single
// multi-pairing check. A proof that does not satisfy it is a normal negative
// result, not an error: Verify returns (false, nil). Errors are reserved for
// an index that names no key (ErrIndexOutOfRange) or a key that has been
// invalidated (ErrKeyInvalidated), both detected before any pairing work.
//
// Keys and proofs are exchanged in the JSON layouts produced by snarkjs:
// verification_key.json for keys, and either proof.json plus public.json or
// the EVM call data layout ({"a", "b", "c", "input"}) for proofs.
//
// Trapdoor builds development setups that can prove arbitrary public inputs.
package verifier
