// Package recovery implements the social recovery state machine for a
// multisig wallet.
//
// A candidate who lost access to the wallet starts a recovery by paying a
// deposit. Owners can vote to cancel it while the waiting period runs; once
// enough owners voted the deposit goes to the last voter. After the waiting
// period, if the wallet saw no activity, the candidate completes the recovery
// with a Groth16 proof against one of the registered verifying keys and is
// added as an owner. The consumed key is invalidated.
//
//	mod, err := recovery.New(recovery.Config{
//	    Wallet:          adapter,
//	    Treasury:        adapter,
//	    Clock:           clock,
//	    RequiredDeposit: deposit,
//	    WaitingPeriod:   172800,
//	    VerifyingKeys:   keys,
//	})
//	err = mod.Start(candidate, deposit)
//	err = mod.CompleteRecovery(candidate, proof, 0, deposit)
//
// Every failing call returns one of the package sentinel errors and leaves the
// module unchanged.
package recovery
