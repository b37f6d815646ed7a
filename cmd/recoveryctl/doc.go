// Command recoveryctl is the command line client of the recovery API.
//
// Read-only commands need only --server-addr. start, cancel, complete and the
// key management commands are signed with --private-key, whose address is the
// caller the module sees.
//
//	recoveryctl --private-key=@candidate.key start --payment=1000000000000000000
//	recoveryctl --private-key=@candidate.key complete --index=0 \
//	    --proof=proof.json --public=public.json --payment=1000000000000000000
//	recoveryctl --private-key=@owner.key keys invalidate --index=3
package main
