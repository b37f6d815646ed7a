package recovery

import (
	"fmt"
	"math/big"

	"github.com/manuelog-udc/tfm-munics/interfaces"
)

// State is the lifecycle stage of the module's recovery request.
type State int

const (
	// StateIdle means no recovery request is active.
	StateIdle State = iota

	// StateAwaitingWindow means a request is active and its waiting period
	// is still running. Owners may cancel.
	StateAwaitingWindow

	// StateResolvable means the waiting period elapsed and the candidate may
	// complete the recovery.
	StateResolvable
)

func stateToString(state State) string {
	switch state {
	case StateIdle:
		return "idle"
	case StateAwaitingWindow:
		return "awaiting_window"
	case StateResolvable:
		return "resolvable"
	default:
		return "unknown"
	}
}

// String returns the state name.
func (s State) String() string {
	return stateToString(s)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateIdle, StateAwaitingWindow, StateResolvable} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown recovery state %q", text)
}

// Request is the single recovery request a module tracks.
// Active implies a non-zero Candidate and ReadyAt.
type Request struct {
	Active    bool               `json:"active"`
	Candidate interfaces.Address `json:"candidate"`
	ReadyAt   uint64             `json:"ready_at"`

	// Deposit is what the candidate paid at start, refunded to the last
	// cancelling owner.
	Deposit *big.Int `json:"deposit"`

	// WalletNonce is the wallet mutation nonce observed at start.
	WalletNonce uint64 `json:"wallet_nonce"`
}

func (r Request) clone() Request {
	if r.Deposit != nil {
		r.Deposit = new(big.Int).Set(r.Deposit)
	}
	return r
}
