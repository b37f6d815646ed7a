package metrics

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryMetrics_Emit(t *testing.T) {
	srv, err := New("zkrecovery", "127.0.0.1:0")
	require.NoError(t, err)
	m, err := NewRecoveryMetrics(srv.Namespace(), srv.Registry())
	require.NoError(t, err)
	m.SetValidKeys(2)

	m.Emit(interfaces.Event{Kind: interfaces.RecoveryStarted, ReadyAt: 1000})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.active))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.readyAt))

	m.Emit(interfaces.Event{Kind: interfaces.CancelVoteRecorded, Votes: 1})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancelVotes))

	m.Emit(interfaces.Event{Kind: interfaces.RecoveryCancelled, Amount: big.NewInt(500)})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.active))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.cancelVotes))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.paidOut))

	m.Emit(interfaces.Event{Kind: interfaces.KeyAdded, Index: 2})
	m.Emit(interfaces.Event{Kind: interfaces.KeyInvalidated, Index: 0})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.validKeys))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.keysAdded))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("recovery_started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("recovery_cancelled")))

	m.ObserveCall("start", "ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("start", "ok")))
}

func TestMetricsServer_Handler(t *testing.T) {
	srv, err := New("zkrecovery", "127.0.0.1:0")
	require.NoError(t, err)
	m, err := NewRecoveryMetrics(srv.Namespace(), srv.Registry())
	require.NoError(t, err)
	m.Emit(interfaces.Event{Kind: interfaces.RecoveryStarted, ReadyAt: 1})

	// registering twice on the same registry fails
	_, err = NewRecoveryMetrics(srv.Namespace(), srv.Registry())
	require.Error(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `zkrecovery_events_total{kind="recovery_started"} 1`)
	assert.Contains(t, rec.Body.String(), "zkrecovery_active_request 1")
}
