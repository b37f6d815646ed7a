package interfaces

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// EventKind identifies the notification emitted by a state-changing module call.
type EventKind int

const (
	// RecoveryStarted is emitted when a candidate opens a recovery request.
	RecoveryStarted EventKind = iota
	// CancelVoteRecorded is emitted for every accepted owner cancel vote.
	CancelVoteRecorded
	// RecoveryCancelled is emitted when the vote threshold is reached.
	RecoveryCancelled
	// KeyAdded is emitted when a verifying key is appended to the registry.
	KeyAdded
	// KeyInvalidated is emitted when a registry entry is disabled.
	KeyInvalidated
	// KeysSubstituted is emitted when the active key set is replaced.
	KeysSubstituted
	// RecoveryCompleted is emitted when the candidate was added as an owner.
	RecoveryCompleted
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case RecoveryStarted:
		return "recovery_started"
	case CancelVoteRecorded:
		return "cancel_vote_recorded"
	case RecoveryCancelled:
		return "recovery_cancelled"
	case KeyAdded:
		return "key_added"
	case KeyInvalidated:
		return "key_invalidated"
	case KeysSubstituted:
		return "keys_substituted"
	case RecoveryCompleted:
		return "recovery_completed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes an event name produced by MarshalText.
func (k *EventKind) UnmarshalText(text []byte) error {
	for kind := RecoveryStarted; kind <= RecoveryCompleted; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// Event is a structured notification record. Only the fields relevant to
// Kind are set.
type Event struct {
	Seq    uint64    `json:"seq"`
	Kind   EventKind `json:"kind"`
	Wallet Address   `json:"wallet"`

	// Candidate is set for RecoveryStarted and RecoveryCompleted.
	Candidate Address `json:"candidate"`
	// ReadyAt is the earliest completion time of a started recovery.
	ReadyAt uint64 `json:"ready_at,omitempty"`

	// Voter and Votes are set for CancelVoteRecorded.
	Voter Address `json:"voter"`
	Votes int     `json:"votes,omitempty"`

	// Payee and Amount are set for RecoveryCancelled.
	Payee  Address  `json:"payee"`
	Amount *big.Int `json:"amount,omitempty"`

	// Index is set for KeyAdded and KeyInvalidated, Count for KeysSubstituted.
	Index int `json:"index"`
	Count int `json:"count,omitempty"`
}

// String renders the event as JSON, for logs.
func (e Event) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		return e.Kind.String()
	}
	return string(b)
}

// EventSink receives module notifications synchronously, in emission order.
type EventSink interface {
	Emit(Event)
}
