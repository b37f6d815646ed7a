/*
Package httpserver serves the social recovery module over HTTP.

Routes:

	GET    /api/recovery/status     request, votes, state and balances
	GET    /api/recovery/events     event journal
	POST   /api/recovery/start      open a request (signed, non-owner)
	POST   /api/recovery/cancel     vote to cancel (signed, owner)
	POST   /api/recovery/complete   submit a proof (signed, candidate)
	GET    /api/keys                verifying key registry
	POST   /api/keys                add a verifying key (signed, owner)
	POST   /api/keys/substitute     replace the active key set (signed, owner)
	DELETE /api/keys/{index}        invalidate one key (signed, owner)

Health endpoints /livez, /readyz, /drain and /undrain follow the usual load
balancer contract, and /debug serves pprof when enabled.

Signed requests carry api.SignatureHeader, api.TimestampHeader and
api.NonceHeader; the caller is the address recovered from them. A ReplayGuard
rejects timestamps more than five minutes from server time and nonces the
signer already used. Payments are resolved by a Payments implementation:
MemoryPayments trusts declared amounts and credits them to the in-memory
module account, ChainPayments accepts only mined transfers to the module and
refuses to credit a transaction twice.

Module errors are returned as api.ErrorResponse with a stable code:

	400 zero_address, invalid_index, invalid_key, invalid_payment, invalid_body
	401 invalid_signature, stale_request
	402 insufficient_payment, payment_not_found, payment_invalid, payment_reused
	403 caller_is_owner, caller_not_owner, caller_mismatch
	409 recovery_in_progress, no_recovery_in_progress, not_started,
	    duplicate_vote, wallet_had_activity, replayed_request
	422 proof_not_verified
	425 too_early
	503 clock_unavailable, replay_cache_full
*/
package httpserver
