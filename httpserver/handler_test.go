package httpserver

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/manuelog-udc/tfm-munics/api"
	"github.com/manuelog-udc/tfm-munics/api/clients"
	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/manuelog-udc/tfm-munics/keygen"
	"github.com/manuelog-udc/tfm-munics/metrics"
	"github.com/manuelog-udc/tfm-munics/recovery"
	"github.com/manuelog-udc/tfm-munics/verifier"
	"github.com/manuelog-udc/tfm-munics/wallet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStart   = uint64(1_700_000_000)
	testWaiting = uint64(3600)
)

var oneEther = big.NewInt(params.Ether).String()

type party struct {
	key  *ecdsa.PrivateKey
	addr interfaces.Address
}

func newParty(t *testing.T) party {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return party{key: key, addr: interfaces.Address(crypto.PubkeyToAddress(key.PublicKey))}
}

type testEnv struct {
	safe      *wallet.Safe
	moduleAcc interfaces.Address
	clock     *wallet.ManualClock
	trapdoor  *verifier.Trapdoor
	inputs    []*big.Int
	metrics   *metrics.RecoveryMetrics
	owners    []party
	candidate party
	server    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		owners:    []party{newParty(t), newParty(t), newParty(t)},
		candidate: newParty(t),
		clock:     wallet.NewManualClock(testStart),
	}
	env.moduleAcc[19] = 0xBB
	var walletAddr interfaces.Address
	walletAddr[19] = 0xAA

	var err error
	env.safe, err = wallet.NewSafe(walletAddr, []interfaces.Address{env.owners[0].addr, env.owners[1].addr, env.owners[2].addr}, 2)
	require.NoError(t, err)
	require.NoError(t, env.safe.ExecTransaction(
		[]interfaces.Address{env.owners[0].addr, env.owners[1].addr},
		wallet.EnableModuleOp(env.moduleAcc)))

	kp, err := keygen.Generate(nil)
	require.NoError(t, err)
	env.inputs = []*big.Int{kp.Public.X, kp.Public.Y}
	env.trapdoor, err = verifier.NewTrapdoor(nil, 2)
	require.NoError(t, err)

	env.metrics, err = metrics.NewRecoveryMetrics("test", prometheus.NewRegistry())
	require.NoError(t, err)

	adapter := env.safe.ModuleAdapter(env.moduleAcc)
	module, err := recovery.New(recovery.Config{
		Wallet:          adapter,
		Treasury:        adapter,
		Clock:           env.clock,
		RequiredDeposit: big.NewInt(params.Ether),
		WaitingPeriod:   testWaiting,
		VerifyingKeys:   []*verifier.VerifyingKey{env.trapdoor.VerifyingKey()},
		Sink:            env.metrics,
		Log:             log,
	})
	require.NoError(t, err)

	handler := NewHandler(module, NewMemoryPayments(adapter), env.metrics, log)
	handler.SyncMetrics()
	srv, err := New(&api.HTTPServerConfig{ListenAddr: "127.0.0.1:0", Log: log}, handler, nil)
	require.NoError(t, err)

	env.server = httptest.NewServer(srv.Handler())
	t.Cleanup(env.server.Close)
	return env
}

func (env *testEnv) client(p party) *clients.RecoveryClient {
	return clients.NewRecoveryClient(env.server.URL, p.key)
}

func (env *testEnv) proof(t *testing.T) *verifier.Proof {
	t.Helper()
	proof, err := env.trapdoor.Prove(nil, env.inputs)
	require.NoError(t, err)
	return proof
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *clients.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.StatusCode, apiErr.Message)
	assert.Equal(t, code, apiErr.Code)
}

func TestRecoveryFlow_Complete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(env.candidate)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, recovery.StateIdle, status.State)
	assert.Equal(t, oneEther, status.RequiredDeposit)
	assert.Equal(t, testWaiting, status.WaitingPeriod)

	status, err = c.Start(ctx, api.Payment{Amount: oneEther})
	require.NoError(t, err)
	assert.Equal(t, recovery.StateAwaitingWindow, status.State)
	assert.Equal(t, env.candidate.addr, status.Request.Candidate)
	assert.Equal(t, testStart+testWaiting, status.Request.ReadyAt)
	assert.Equal(t, oneEther, status.Balance)
	assert.Equal(t, oneEther, env.safe.BalanceOf(env.moduleAcc).String())

	_, err = c.Complete(ctx, 0, env.proof(t), api.Payment{Amount: oneEther})
	requireAPIError(t, err, http.StatusTooEarly, "too_early")

	env.clock.Advance(testWaiting)
	status, err = c.Complete(ctx, 0, env.proof(t), api.Payment{Amount: oneEther})
	require.NoError(t, err)
	assert.Equal(t, recovery.StateIdle, status.State)
	assert.True(t, env.safe.IsOwner(env.candidate.addr))

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys.Keys, 1)
	assert.False(t, keys.Keys[0].Valid)

	events, err := c.Events(ctx)
	require.NoError(t, err)
	var kinds []interfaces.EventKind
	for _, ev := range events.Events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []interfaces.EventKind{interfaces.RecoveryStarted, interfaces.KeyInvalidated, interfaces.RecoveryCompleted}, kinds)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.CallCounter("complete", "too_early")))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.CallCounter("complete", "ok")))
}

func TestRecoveryFlow_Cancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client(env.candidate).Start(ctx, api.Payment{Amount: oneEther})
	require.NoError(t, err)

	status, err := env.client(env.owners[0]).Cancel(ctx, api.Payment{})
	require.NoError(t, err)
	assert.Equal(t, []interfaces.Address{env.owners[0].addr}, status.Votes)

	_, err = env.client(env.owners[0]).Cancel(ctx, api.Payment{})
	requireAPIError(t, err, http.StatusConflict, "duplicate_vote")

	_, err = env.client(env.candidate).Cancel(ctx, api.Payment{})
	requireAPIError(t, err, http.StatusForbidden, "caller_not_owner")

	status, err = env.client(env.owners[1]).Cancel(ctx, api.Payment{})
	require.NoError(t, err)
	assert.Equal(t, recovery.StateIdle, status.State)
	assert.Empty(t, status.Votes)

	// the last voter receives the candidate's deposit
	assert.Equal(t, oneEther, env.safe.BalanceOf(env.owners[1].addr).String())
	assert.Equal(t, "0", env.safe.BalanceOf(env.moduleAcc).String())
}

func TestStart_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client(env.owners[0]).Start(ctx, api.Payment{Amount: oneEther})
	requireAPIError(t, err, http.StatusForbidden, "caller_is_owner")

	_, err = env.client(env.candidate).Start(ctx, api.Payment{Amount: "1"})
	requireAPIError(t, err, http.StatusPaymentRequired, "insufficient_payment")

	_, err = env.client(env.candidate).Start(ctx, api.Payment{Amount: "-5"})
	requireAPIError(t, err, http.StatusBadRequest, "invalid_payment")

	_, err = env.client(env.candidate).Start(ctx, api.Payment{Tx: "0x01"})
	requireAPIError(t, err, http.StatusBadRequest, "invalid_payment")

	// failed calls leave no trace in the module account
	assert.Equal(t, "0", env.safe.BalanceOf(env.moduleAcc).String())

	_, err = env.client(env.candidate).Start(ctx, api.Payment{Amount: oneEther})
	require.NoError(t, err)
	_, err = env.client(newParty(t)).Start(ctx, api.Payment{Amount: oneEther})
	requireAPIError(t, err, http.StatusConflict, "recovery_in_progress")
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/api/recovery/start", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var errResp api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "invalid_signature", errResp.Code)

	// a signature over another body recovers another caller, who is not the candidate
	body := []byte(`{"payment":"1000000000000000000"}`)
	req, err := clients.CreateSignedRequest(context.Background(), http.MethodPost, env.server.URL+"/api/recovery/start", body, env.candidate.key)
	require.NoError(t, err)
	req.Body = io.NopCloser(bytes.NewReader([]byte(`{"payment":"2000000000000000000"}`)))
	req.ContentLength = -1
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	status, err := env.client(env.candidate).Status(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, env.candidate.addr, status.Request.Candidate)

	unknown := capture(t, env.owners[0], env.server.URL+"/api/recovery/cancel", []byte(`{"unknown":1}`))
	code, _ := unknown.send(t)
	assert.Equal(t, http.StatusBadRequest, code)

	// signatures without timestamp or nonce are refused
	for _, header := range []string{api.TimestampHeader, api.NonceHeader} {
		req := capture(t, env.owners[0], env.server.URL+"/api/recovery/cancel", []byte(`{}`))
		req.header.Del(header)
		code, errCode := req.send(t)
		assert.Equal(t, http.StatusUnauthorized, code, header)
		assert.Equal(t, "invalid_signature", errCode, header)
	}
}

// signedCall is a signed request captured on the wire, so it can be sent
// again byte for byte.
type signedCall struct {
	url    string
	header http.Header
	body   []byte
}

func capture(t *testing.T, p party, url string, body []byte) *signedCall {
	t.Helper()
	req, err := clients.CreateSignedRequest(context.Background(), http.MethodPost, url, body, p.key)
	require.NoError(t, err)
	return &signedCall{url: url, header: req.Header.Clone(), body: body}
}

func signedAt(t *testing.T, p party, url, path string, body []byte, timestamp int64) *signedCall {
	t.Helper()
	sr := api.SignedRequest{Method: http.MethodPost, Path: path, Timestamp: timestamp, Nonce: "fixed-nonce"}
	sig, err := api.SignRequest(p.key, sr, body)
	require.NoError(t, err)
	header := http.Header{}
	header.Set(api.SignatureHeader, sig)
	header.Set(api.TimestampHeader, strconv.FormatInt(timestamp, 10))
	header.Set(api.NonceHeader, sr.Nonce)
	return &signedCall{url: url, header: header, body: body}
}

func (c *signedCall) send(t *testing.T) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(c.body))
	require.NoError(t, err)
	req.Header = c.header.Clone()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var errResp api.ErrorResponse
	if resp.StatusCode != http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	}
	return resp.StatusCode, errResp.Code
}

func TestSignedRequests_CannotBeReplayed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	candidate := env.client(env.candidate)

	_, err := candidate.Start(ctx, api.Payment{Amount: oneEther})
	require.NoError(t, err)

	vote := capture(t, env.owners[0], env.server.URL+"/api/recovery/cancel", []byte(`{}`))
	code, _ := vote.send(t)
	require.Equal(t, http.StatusOK, code)

	// the same bytes again, within the same recovery cycle
	code, errCode := vote.send(t)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "replayed_request", errCode)

	_, err = env.client(env.owners[1]).Cancel(ctx, api.Payment{})
	require.NoError(t, err)
	_, err = candidate.Start(ctx, api.Payment{Amount: oneEther})
	require.NoError(t, err)

	// a vote captured in the previous cycle is not counted in the new one
	code, errCode = vote.send(t)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "replayed_request", errCode)

	status, err := candidate.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.Votes)
	assert.True(t, status.Request.Active)

	// owner-gated key changes are single use as well
	extra, err := verifier.NewTrapdoor(nil, 2)
	require.NoError(t, err)
	body, err := json.Marshal(api.AddKeyRequest{Key: extra.VerifyingKey()})
	require.NoError(t, err)
	add := capture(t, env.owners[0], env.server.URL+"/api/keys", body)
	code, _ = add.send(t)
	require.Equal(t, http.StatusOK, code)
	code, errCode = add.send(t)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "replayed_request", errCode)

	keys, err := candidate.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys.Keys, 2)
}

func TestSignedRequests_Freshness(t *testing.T) {
	env := newTestEnv(t)
	url := env.server.URL + "/api/recovery/start"
	body := []byte(`{"payment":"` + oneEther + `"}`)

	for _, offset := range []time.Duration{-time.Hour, time.Hour} {
		call := signedAt(t, env.candidate, url, "/api/recovery/start", body, time.Now().Add(offset).Unix())
		code, errCode := call.send(t)
		assert.Equal(t, http.StatusUnauthorized, code, offset)
		assert.Equal(t, "stale_request", errCode, offset)
	}

	status, err := env.client(env.candidate).Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Request.Active)

	call := signedAt(t, env.candidate, url, "/api/recovery/start", body, time.Now().Unix())
	code, _ := call.send(t)
	assert.Equal(t, http.StatusOK, code)
}

func TestKeyManagement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.client(env.owners[0])

	extra, err := verifier.NewTrapdoor(nil, 2)
	require.NoError(t, err)

	_, err = env.client(env.candidate).AddKey(ctx, extra.VerifyingKey())
	requireAPIError(t, err, http.StatusForbidden, "caller_not_owner")

	index, err := owner.AddKey(ctx, extra.VerifyingKey())
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.ValidKeysGauge()))

	keys, err := owner.InvalidateKey(ctx, 0)
	require.NoError(t, err)
	assert.False(t, keys.Keys[0].Valid)
	assert.True(t, keys.Keys[1].Valid)

	// invalidating twice is accepted
	_, err = owner.InvalidateKey(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ValidKeysGauge()))

	_, err = owner.InvalidateKey(ctx, 7)
	requireAPIError(t, err, http.StatusBadRequest, "invalid_index")

	sub, err := owner.SubstituteKeys(ctx, []*verifier.VerifyingKey{env.trapdoor.VerifyingKey(), extra.VerifyingKey()})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.First)
	assert.Equal(t, 2, sub.Count)
	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.ValidKeysGauge()))

	_, err = owner.SubstituteKeys(ctx, nil)
	requireAPIError(t, err, http.StatusBadRequest, "invalid_key")

	keys, err = owner.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys.Keys, 4)
	for i, e := range keys.Keys {
		assert.Equal(t, i >= 2, e.Valid, "entry %d", i)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	get := func(path string) (int, string) {
		resp, err := http.Get(env.server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body["status"]
	}

	code, status := get("/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", status)

	code, _ = get("/readyz")
	assert.Equal(t, http.StatusOK, code)

	_, status = get("/drain")
	assert.Equal(t, "draining", status)
	code, _ = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	_, status = get("/drain")
	assert.Equal(t, "already draining", status)

	_, status = get("/undrain")
	assert.Equal(t, "ready", status)
	code, _ = get("/readyz")
	assert.Equal(t, http.StatusOK, code)
}
