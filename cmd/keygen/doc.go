// Command keygen generates recovery identities and backs them up.
//
// generate derives --count Baby Jubjub key pairs, prints their public keys
// and seals each circuit input with --passphrase. Sealed inputs are stored in
// every --storage backend and written to --out-dir. With --shares each sealed
// input is also split into Shamir shares, optionally encrypted to one
// custodian key per share with --recipient.
//
// combine reconstructs a sealed input from share files and prints the circuit
// input; fetch does the same from a storage content id.
//
//	keygen generate --count=3 --passphrase=... --storage=file:///var/lib/recovery \
//	    --out-dir=backup --shares=3 --share-threshold=2
package main
