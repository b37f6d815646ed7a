package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/manuelog-udc/tfm-munics/api"
	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/manuelog-udc/tfm-munics/metrics"
	"github.com/manuelog-udc/tfm-munics/recovery"
	"github.com/manuelog-udc/tfm-munics/registry"
	"github.com/manuelog-udc/tfm-munics/wallet"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Code is the machine readable error code of the response body.
	Code string

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is matched in order with errors.Is; the first hit wins.
var errorMappings = []errorMapping{
	{api.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
	{api.ErrStaleRequest, http.StatusUnauthorized, "stale_request"},
	{api.ErrReplayedRequest, http.StatusConflict, "replayed_request"},
	{ErrReplayCacheFull, http.StatusServiceUnavailable, "replay_cache_full"},
	{wallet.ErrClockUnavailable, http.StatusServiceUnavailable, "clock_unavailable"},

	{recovery.ErrZeroAddress, http.StatusBadRequest, "zero_address"},
	{recovery.ErrInvalidIndex, http.StatusBadRequest, "invalid_index"},
	{registry.ErrOutOfRange, http.StatusBadRequest, "invalid_index"},
	{registry.ErrInvalidKey, http.StatusBadRequest, "invalid_key"},
	{ErrInvalidPayment, http.StatusBadRequest, "invalid_payment"},

	{recovery.ErrCallerIsOwner, http.StatusForbidden, "caller_is_owner"},
	{recovery.ErrCallerNotOwner, http.StatusForbidden, "caller_not_owner"},
	{recovery.ErrCallerMismatch, http.StatusForbidden, "caller_mismatch"},

	{recovery.ErrRecoveryInProgress, http.StatusConflict, "recovery_in_progress"},
	{recovery.ErrNoRecoveryInProgress, http.StatusConflict, "no_recovery_in_progress"},
	{recovery.ErrNotStarted, http.StatusConflict, "not_started"},
	{recovery.ErrDuplicateVote, http.StatusConflict, "duplicate_vote"},
	{recovery.ErrWalletHadActivity, http.StatusConflict, "wallet_had_activity"},

	{recovery.ErrInsufficientPayment, http.StatusPaymentRequired, "insufficient_payment"},
	{wallet.ErrPaymentNotFound, http.StatusPaymentRequired, "payment_not_found"},
	{wallet.ErrPaymentInvalid, http.StatusPaymentRequired, "payment_invalid"},
	{wallet.ErrPaymentReused, http.StatusPaymentRequired, "payment_reused"},

	{recovery.ErrTooEarly, http.StatusTooEarly, "too_early"},
	{recovery.ErrProofNotVerified, http.StatusUnprocessableEntity, "proof_not_verified"},
}

func classify(err error) *RequestError {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return &RequestError{StatusCode: m.status, Code: m.code, Err: err}
		}
	}
	return &RequestError{StatusCode: http.StatusInternalServerError, Code: "internal", Err: err}
}

// Handler serves the recovery API for one module. Calls that move funds are
// serialized so a payment is resolved, used and settled as one step.
type Handler struct {
	module   *recovery.Module
	payments Payments
	replay   *ReplayGuard
	metrics  *metrics.RecoveryMetrics
	log      *slog.Logger

	mu sync.Mutex
}

// NewHandler creates a handler for module. metrics may be nil.
func NewHandler(module *recovery.Module, payments Payments, m *metrics.RecoveryMetrics, log *slog.Logger) *Handler {
	return &Handler{
		module:   module,
		payments: payments,
		replay:   NewReplayGuard(DefaultRequestWindow, DefaultReplayCapacity),
		metrics:  m,
		log:      log,
	}
}

// WithReplayGuard replaces the default replay guard.
func (h *Handler) WithReplayGuard(g *ReplayGuard) *Handler {
	h.replay = g
	return h
}

// HandleStatus returns the active request, its votes and the module balance.
//
// Endpoint: GET /api/recovery/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

// HandleStart opens a recovery request for the signing caller.
//
// Endpoint: POST /api/recovery/start
// Body: {"payment": "<wei>"} or {"payment_tx": "0x..."}
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	caller, body, err := h.authenticate(w, r)
	if err != nil {
		h.fail(w, "start", err)
		return
	}

	var req api.StartRequest
	if err := decodeBody(body, &req); err != nil {
		h.fail(w, "start", err)
		return
	}

	err = h.withPayment(r.Context(), caller, req.Payment, func(amount *big.Int) error {
		return h.module.Start(caller, amount)
	})
	if err != nil {
		h.fail(w, "start", err)
		return
	}

	h.observe("start", "ok")
	h.log.Info("Recovery started", "candidate", caller.String())
	writeJSON(w, http.StatusOK, h.status())
}

// HandleCancel records the signing owner's cancel vote.
//
// Endpoint: POST /api/recovery/cancel
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	caller, body, err := h.authenticate(w, r)
	if err != nil {
		h.fail(w, "cancel", err)
		return
	}

	var req api.CancelRequest
	if err := decodeBody(body, &req); err != nil {
		h.fail(w, "cancel", err)
		return
	}

	err = h.withPayment(r.Context(), caller, req.Payment, func(amount *big.Int) error {
		return h.module.Cancel(caller, amount)
	})
	if err != nil {
		h.fail(w, "cancel", err)
		return
	}

	h.observe("cancel", "ok")
	writeJSON(w, http.StatusOK, h.status())
}

// HandleComplete submits the candidate's proof.
//
// Endpoint: POST /api/recovery/complete
// Body: {"index": <int>, "proof": {"a": [...], "b": [...], "c": [...], "input": [...]}, "payment": "<wei>"}
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	caller, body, err := h.authenticate(w, r)
	if err != nil {
		h.fail(w, "complete", err)
		return
	}

	var req api.CompleteRequest
	if err := decodeBody(body, &req); err != nil {
		h.fail(w, "complete", err)
		return
	}

	err = h.withPayment(r.Context(), caller, req.Payment, func(amount *big.Int) error {
		return h.module.CompleteRecovery(caller, req.Proof, req.Index, amount)
	})
	if err != nil {
		h.fail(w, "complete", err)
		return
	}

	h.observe("complete", "ok")
	h.log.Info("Recovery completed", "candidate", caller.String(), "index", req.Index)
	writeJSON(w, http.StatusOK, h.status())
}

// HandleEvents returns the module's event journal.
//
// Endpoint: GET /api/recovery/events
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.EventsResponse{Events: h.module.Events()})
}

// HandleListKeys returns every registry entry, invalidated ones included.
//
// Endpoint: GET /api/keys
func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.KeysResponse{Keys: h.module.VerifyingKeys()})
}

// HandleAddKey appends a verifying key. Owners only.
//
// Endpoint: POST /api/keys
func (h *Handler) HandleAddKey(w http.ResponseWriter, r *http.Request) {
	caller, body, err := h.authenticate(w, r)
	if err != nil {
		h.fail(w, "add_key", err)
		return
	}

	var req api.AddKeyRequest
	if err := decodeBody(body, &req); err != nil {
		h.fail(w, "add_key", err)
		return
	}

	index, err := h.module.AddVerifyingKey(caller, req.Key)
	if err != nil {
		h.fail(w, "add_key", err)
		return
	}

	h.observe("add_key", "ok")
	writeJSON(w, http.StatusOK, api.AddKeyResponse{Index: index})
}

// HandleSubstituteKeys replaces the active key set. Owners only.
//
// Endpoint: POST /api/keys/substitute
func (h *Handler) HandleSubstituteKeys(w http.ResponseWriter, r *http.Request) {
	caller, body, err := h.authenticate(w, r)
	if err != nil {
		h.fail(w, "substitute_keys", err)
		return
	}

	var req api.SubstituteKeysRequest
	if err := decodeBody(body, &req); err != nil {
		h.fail(w, "substitute_keys", err)
		return
	}

	first, err := h.module.SubstituteVerifyingKeys(caller, req.Keys)
	if err != nil {
		h.fail(w, "substitute_keys", err)
		return
	}

	h.observe("substitute_keys", "ok")
	h.syncValidKeys()
	writeJSON(w, http.StatusOK, api.SubstituteKeysResponse{First: first, Count: len(req.Keys)})
}

// HandleInvalidateKey disables one registry entry. Owners only.
//
// Endpoint: DELETE /api/keys/{index}
func (h *Handler) HandleInvalidateKey(w http.ResponseWriter, r *http.Request) {
	caller, _, err := h.authenticate(w, r)
	if err != nil {
		h.fail(w, "invalidate_key", err)
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.fail(w, "invalidate_key", &RequestError{StatusCode: http.StatusBadRequest, Code: "invalid_index", Err: err})
		return
	}

	if err := h.module.InvalidateVerifyingKey(caller, index); err != nil {
		h.fail(w, "invalidate_key", err)
		return
	}

	h.observe("invalidate_key", "ok")
	writeJSON(w, http.StatusOK, api.KeysResponse{Keys: h.module.VerifyingKeys()})
}

// SyncMetrics sets gauges that are not derived from events.
func (h *Handler) SyncMetrics() {
	h.syncValidKeys()
}

func (h *Handler) status() api.StatusResponse {
	votes := h.module.Votes()
	if votes == nil {
		votes = []interfaces.Address{}
	}
	return api.StatusResponse{
		Wallet:          h.module.Wallet(),
		State:           h.module.State(),
		Request:         h.module.Request(),
		Votes:           votes,
		Balance:         h.module.Balance().String(),
		RequiredDeposit: h.module.RequiredDeposit().String(),
		WaitingPeriod:   h.module.WaitingPeriod(),
	}
}

// authenticate reads the request body and recovers the caller from the
// signature header.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (interfaces.Address, []byte, error) {
	signature := r.Header.Get(api.SignatureHeader)
	if signature == "" {
		return interfaces.Address{}, nil, fmt.Errorf("%w: missing %s header", api.ErrInvalidSignature, api.SignatureHeader)
	}
	timestamp, err := strconv.ParseInt(r.Header.Get(api.TimestampHeader), 10, 64)
	if err != nil {
		return interfaces.Address{}, nil, fmt.Errorf("%w: invalid %s header", api.ErrInvalidSignature, api.TimestampHeader)
	}
	sr := api.SignedRequest{
		Method:    r.Method,
		Path:      r.URL.Path,
		Timestamp: timestamp,
		Nonce:     r.Header.Get(api.NonceHeader),
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return interfaces.Address{}, nil, &RequestError{StatusCode: http.StatusBadRequest, Code: "invalid_body", Err: err}
	}

	caller, err := api.RecoverSigner(signature, sr, body)
	if err != nil {
		return interfaces.Address{}, nil, err
	}
	if err := h.replay.Admit(caller, sr); err != nil {
		h.log.Warn("Signed request rejected", "caller", caller.String(), "path", r.URL.Path, "err", err)
		return interfaces.Address{}, nil, err
	}
	h.log.Debug("Request authenticated", "caller", caller.String(), "path", r.URL.Path)
	return caller, body, nil
}

// withPayment resolves the payment, runs call with the paid amount and
// settles the payment once call succeeded.
func (h *Handler) withPayment(ctx context.Context, caller interfaces.Address, p api.Payment, call func(*big.Int) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	amount, err := h.payments.Resolve(ctx, caller, p)
	if err != nil {
		return err
	}
	if err := call(amount); err != nil {
		return err
	}
	if err := h.payments.Settle(ctx, caller, p, amount); err != nil {
		// the module call already took effect
		h.log.Error("Failed to settle payment", "err", err, "caller", caller.String(), "amount", amount.String())
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, operation string, err error) {
	reqErr := classify(err)
	h.observe(operation, reqErr.Code)
	if reqErr.StatusCode >= http.StatusInternalServerError {
		h.log.Error("Request failed", "operation", operation, "err", err)
	} else {
		h.log.Info("Request rejected", "operation", operation, "code", reqErr.Code, "err", err)
	}
	writeJSON(w, reqErr.StatusCode, api.ErrorResponse{Error: err.Error(), Code: reqErr.Code})
}

func (h *Handler) observe(operation, result string) {
	if h.metrics != nil {
		h.metrics.ObserveCall(operation, result)
	}
}

func (h *Handler) syncValidKeys() {
	if h.metrics == nil {
		return
	}
	valid := 0
	for _, e := range h.module.VerifyingKeys() {
		if e.Valid {
			valid++
		}
	}
	h.metrics.SetValidKeys(valid)
}

func decodeBody(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &RequestError{StatusCode: http.StatusBadRequest, Code: "invalid_body", Err: fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
