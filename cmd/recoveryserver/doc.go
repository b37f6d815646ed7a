// Command recoveryserver runs one social recovery module behind the recovery
// HTTP API.
//
// In memory mode the protected wallet is an in-process multisig built from
// --owner and --threshold, and payments are declared amounts. In chain mode
// the module drives a deployed Safe at --safe-address, signing module
// transactions with --private-key, and payments must be mined transfers to
// the module account.
//
// Verifying keys are read from --verifying-key files and from documents
// stored under --verifying-key-id in the --storage backends.
//
//	recoveryserver --mode=memory \
//	    --owner=0x...01 --owner=0x...02 --threshold=2 \
//	    --verifying-key=verification_key.json \
//	    --waiting-period=172800
//
//	recoveryserver --mode=chain --rpc-addr=http://localhost:8545 \
//	    --safe-address=0x... --private-key=@module.key \
//	    --storage=ipfs://localhost:5001/ --verifying-key-id=<hex>
package main
