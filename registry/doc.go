// Package registry keeps the indexed set of Groth16 verifying keys a recovery
// module accepts proofs against.
//
// Entries are appended and never removed, so an index keeps naming the same
// key for the lifetime of the registry. Invalidated entries stay in place
// with Valid set to false and are refused by the verifier:
//
//	reg, err := registry.New(initialKeys)
//	idx, err := reg.Add(vk)          // append, returns the new index
//	changed, err := reg.Invalidate(0) // idempotent
//	first, err := reg.Substitute(rotated)
//
// The registry itself does not check who is calling. Owner gating and event
// emission happen in the recovery module that owns it.
package registry
