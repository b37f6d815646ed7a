package recovery

import "errors"

// Precondition failures. Each names one condition so callers can tell them
// apart; a failing call never changes module state.
var (
	ErrRecoveryInProgress   = errors.New("recovery already in progress")
	ErrNoRecoveryInProgress = errors.New("no recovery in progress")
	ErrNotStarted           = errors.New("recovery not started")
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrCallerIsOwner        = errors.New("caller is a wallet owner")
	ErrCallerNotOwner       = errors.New("caller is not a wallet owner")
	ErrCallerMismatch       = errors.New("caller is not the recovery candidate")
	ErrDuplicateVote        = errors.New("owner already voted to cancel")
	ErrInvalidIndex         = errors.New("invalid verifying key index")
	ErrTooEarly             = errors.New("waiting period has not elapsed")
	ErrWalletHadActivity    = errors.New("wallet had activity since recovery started")
	ErrProofNotVerified     = errors.New("proof not verified")
	ErrZeroAddress          = errors.New("caller is the zero address")
)

// ErrInvalidConfig is returned by New for unusable configuration.
var ErrInvalidConfig = errors.New("invalid recovery module configuration")
