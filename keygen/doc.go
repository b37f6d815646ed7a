// Package keygen derives recovery identities: Baby Jubjub key pairs whose
// public key is registered with the recovery module and whose private scalar
// is the witness of the recovery proof.
//
// A key pair is derived deterministically from 32 bytes of randomness that
// form a valid secp256k1 private key. The bytes are hashed with the circomlib
// MiMCSponge permutation, pruned the EdDSA way, shifted right by three and
// used to multiply the Base8 generator:
//
//	kp, err := keygen.Generate(rand.Reader)
//	if err != nil {
//	    return err
//	}
//	input, _ := kp.MarshalInput() // {"privateKey": "...", "publicKeys": ["x", "y"]}
//
// Points are expressed in circomlib coordinates (a = 168700, d = 168696) so
// they can be fed to circuits and verifying keys built with circom. Internally
// the arithmetic runs on gnark-crypto's isomorphic a = -1 curve.
//
// SplitSecret and CombineShares spread a sealed input across custodians with
// Shamir's secret sharing.
package keygen
