package flow

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects engine and routing metrics.
//
// Metrics exposed (namespace "devflow"):
//
//  1. step_latency_ms (histogram): step duration. Labels: specialization, status.
//  2. workflows_total (counter): finished executions. Labels: status.
//  3. route_resolutions_total (counter): router decisions.
//     Labels: category, provider, fallback.
//  4. provider_invocations_total (counter): model calls. Labels: provider, status.
//  5. provider_tokens_total (counter): tokens reported by providers. Labels: provider.
//  6. inflight_workflows (gauge): executions currently running.
//
// Labels never carry workflow IDs so cardinality stays bounded.
type PrometheusMetrics struct {
	stepLatency *prometheus.HistogramVec
	workflows   *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	invocations *prometheus.CounterVec
	tokens      *prometheus.CounterVec
	inflight    prometheus.Gauge

	enabled atomic.Bool
}

// NewPrometheusMetrics registers the collectors on registry. A nil registry
// uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	pm := &PrometheusMetrics{}
	pm.enabled.Store(true)

	pm.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "devflow",
		Name:      "step_latency_ms",
		Help:      "Workflow step duration in milliseconds",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 15000, 60000, 300000},
	}, []string{"specialization", "status"}) // status: completed, failed, timeout

	pm.workflows = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devflow",
		Name:      "workflows_total",
		Help:      "Workflow executions by final status",
	}, []string{"status"})

	pm.resolutions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devflow",
		Name:      "route_resolutions_total",
		Help:      "Task category resolutions by chosen provider",
	}, []string{"category", "provider", "fallback"}) // provider "none" when unroutable

	pm.invocations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devflow",
		Name:      "provider_invocations_total",
		Help:      "Model invocations by provider and outcome",
	}, []string{"provider", "status"})

	pm.tokens = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devflow",
		Name:      "provider_tokens_total",
		Help:      "Tokens consumed per provider as reported by the provider",
	}, []string{"provider"})

	pm.inflight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "devflow",
		Name:      "inflight_workflows",
		Help:      "Workflow executions currently running",
	})

	return pm
}

// RecordStepLatency observes a step duration.
func (pm *PrometheusMetrics) RecordStepLatency(sp Specialization, latency time.Duration, status string) {
	if pm == nil || !pm.enabled.Load() {
		return
	}
	pm.stepLatency.WithLabelValues(string(sp), status).Observe(float64(latency.Milliseconds()))
}

// RecordWorkflow counts a finished execution.
func (pm *PrometheusMetrics) RecordWorkflow(status WorkflowStatus) {
	if pm == nil || !pm.enabled.Load() {
		return
	}
	pm.workflows.WithLabelValues(string(status)).Inc()
}

// RecordResolution counts a router decision. A failed resolution is recorded
// with provider "none".
func (pm *PrometheusMetrics) RecordResolution(category TaskCategory, res Resolution, err error) {
	if pm == nil || !pm.enabled.Load() {
		return
	}
	provider := string(res.Chosen.ID)
	if err != nil {
		provider = "none"
	}
	pm.resolutions.WithLabelValues(string(category), provider, strconv.FormatBool(res.UsedFallback)).Inc()
}

// RecordInvocation counts a model call.
func (pm *PrometheusMetrics) RecordInvocation(provider string, err error) {
	if pm == nil || !pm.enabled.Load() {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	pm.invocations.WithLabelValues(provider, status).Inc()
}

// RecordTokens adds a call's token usage.
func (pm *PrometheusMetrics) RecordTokens(provider string, tokens int) {
	if pm == nil || !pm.enabled.Load() || tokens <= 0 {
		return
	}
	pm.tokens.WithLabelValues(provider).Add(float64(tokens))
}

func (pm *PrometheusMetrics) addInflight(delta float64) {
	if pm == nil || !pm.enabled.Load() {
		return
	}
	pm.inflight.Add(delta)
}

// Disable temporarily disables metric recording.
func (pm *PrometheusMetrics) Disable() {
	pm.enabled.Store(false)
}

// Enable re-enables metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.enabled.Store(true)
}
