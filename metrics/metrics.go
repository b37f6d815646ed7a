// Package metrics serves Prometheus metrics for the recovery service and
// derives recovery metrics from module events.
package metrics

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes a dedicated Prometheus registry on its own listener.
type MetricsServer struct {
	namespace string
	registry  *prometheus.Registry
	srv       *http.Server
}

// New creates a metrics server for namespace listening on addr. The Go
// runtime and process collectors are registered by default.
func New(namespace, addr string) (*MetricsServer, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &MetricsServer{
		namespace: namespace,
		registry:  reg,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Registry returns the registry served on /metrics.
func (m *MetricsServer) Registry() *prometheus.Registry {
	return m.registry
}

// Namespace returns the metric name prefix.
func (m *MetricsServer) Namespace() string {
	return m.namespace
}

// Handler returns the HTTP handler serving /metrics.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// RecoveryMetrics tracks module activity. It implements interfaces.EventSink.
type RecoveryMetrics struct {
	events        *prometheus.CounterVec
	calls         *prometheus.CounterVec
	active        prometheus.Gauge
	readyAt       prometheus.Gauge
	cancelVotes   prometheus.Gauge
	validKeys     prometheus.Gauge
	keysAdded     prometheus.Counter
	paidOut       prometheus.Counter
	lastEventTime prometheus.Gauge
}

// NewRecoveryMetrics creates the recovery metrics and registers them with reg.
func NewRecoveryMetrics(namespace string, reg prometheus.Registerer) (*RecoveryMetrics, error) {
	m := &RecoveryMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Recovery module events, by kind.",
		}, []string{"kind"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Recovery module calls, by operation and result.",
		}, []string{"operation", "result"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_request",
			Help:      "1 while a recovery request is active.",
		}),
		readyAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready_at_seconds",
			Help:      "Earliest completion time of the active request.",
		}),
		cancelVotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cancel_votes",
			Help:      "Cancel votes recorded against the active request.",
		}),
		validKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "valid_verifying_keys",
			Help:      "Registry entries usable for verification.",
		}),
		keysAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifying_keys_added_total",
			Help:      "Verifying keys appended to the registry.",
		}),
		paidOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancel_payouts_wei_total",
			Help:      "Deposits paid to cancelling owners, in wei.",
		}),
		lastEventTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_event_timestamp_seconds",
			Help:      "Wall-clock time of the last module event.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.events, m.calls, m.active, m.readyAt, m.cancelVotes,
		m.validKeys, m.keysAdded, m.paidOut, m.lastEventTime,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register recovery metric: %w", err)
		}
	}
	return m, nil
}

// Emit implements interfaces.EventSink.
func (m *RecoveryMetrics) Emit(ev interfaces.Event) {
	m.events.WithLabelValues(ev.Kind.String()).Inc()
	m.lastEventTime.SetToCurrentTime()

	switch ev.Kind {
	case interfaces.RecoveryStarted:
		m.active.Set(1)
		m.readyAt.Set(float64(ev.ReadyAt))
		m.cancelVotes.Set(0)
	case interfaces.CancelVoteRecorded:
		m.cancelVotes.Set(float64(ev.Votes))
	case interfaces.RecoveryCancelled:
		m.resetRequest()
		if ev.Amount != nil {
			amount, _ := new(big.Float).SetInt(ev.Amount).Float64()
			m.paidOut.Add(amount)
		}
	case interfaces.RecoveryCompleted:
		m.resetRequest()
	case interfaces.KeyAdded:
		m.keysAdded.Inc()
		m.validKeys.Inc()
	case interfaces.KeyInvalidated:
		m.validKeys.Dec()
	case interfaces.KeysSubstituted:
		m.keysAdded.Add(float64(ev.Count))
	}
}

// SetValidKeys sets the valid key gauge, after startup or a substitution.
func (m *RecoveryMetrics) SetValidKeys(n int) {
	m.validKeys.Set(float64(n))
}

// ObserveCall counts a module call. result is "ok" or a short error label.
func (m *RecoveryMetrics) ObserveCall(operation, result string) {
	m.calls.WithLabelValues(operation, result).Inc()
}

// CallCounter returns the counter of one operation and result.
func (m *RecoveryMetrics) CallCounter(operation, result string) prometheus.Counter {
	return m.calls.WithLabelValues(operation, result)
}

func (m *RecoveryMetrics) ValidKeysGauge() prometheus.Gauge {
	return m.validKeys
}

func (m *RecoveryMetrics) resetRequest() {
	m.active.Set(0)
	m.readyAt.Set(0)
	m.cancelVotes.Set(0)
}
