package api

import (
	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/manuelog-udc/tfm-munics/recovery"
	"github.com/manuelog-udc/tfm-munics/registry"
	"github.com/manuelog-udc/tfm-munics/verifier"
)

// Payment carries the funds attached to a state-changing call. Memory-mode
// servers accept a declared Amount in wei; chain-mode servers require Tx, the
// hash of a transfer from the caller to the module account.
type Payment struct {
	Amount string `json:"payment,omitempty"`
	Tx     string `json:"payment_tx,omitempty"`
}

type StartRequest struct {
	Payment
}

type CancelRequest struct {
	Payment
}

// CompleteRequest submits a recovery proof against the registry entry at Index.
// Public inputs travel inside the proof.
type CompleteRequest struct {
	Payment
	Index int             `json:"index"`
	Proof *verifier.Proof `json:"proof"`
}

type AddKeyRequest struct {
	Key *verifier.VerifyingKey `json:"key"`
}

type AddKeyResponse struct {
	Index int `json:"index"`
}

type SubstituteKeysRequest struct {
	Keys []*verifier.VerifyingKey `json:"keys"`
}

type SubstituteKeysResponse struct {
	First int `json:"first"`
	Count int `json:"count"`
}

// StatusResponse describes the module at the server's current ledger time.
type StatusResponse struct {
	Wallet          interfaces.Address   `json:"wallet"`
	State           recovery.State       `json:"state"`
	Request         recovery.Request     `json:"request"`
	Votes           []interfaces.Address `json:"votes"`
	Balance         string               `json:"balance"`
	RequiredDeposit string               `json:"required_deposit"`
	WaitingPeriod   uint64               `json:"waiting_period"`
}

type KeysResponse struct {
	Keys []registry.Entry `json:"keys"`
}

type EventsResponse struct {
	Events []interfaces.Event `json:"events"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
