package flow

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dshills/devflow/flow/store"
)

func TestPrometheusMetrics_Record(t *testing.T) {
	metrics := NewPrometheusMetrics(prometheus.NewRegistry())

	metrics.RecordInvocation("anthropic", nil)
	metrics.RecordInvocation("anthropic", errors.New("boom"))
	metrics.RecordTokens("anthropic", 120)
	metrics.RecordTokens("anthropic", 30)
	metrics.RecordTokens("google", 0)
	metrics.RecordStepLatency(store.Design, 250*time.Millisecond, "completed")

	if got := testutil.ToFloat64(metrics.invocations.WithLabelValues("anthropic", "success")); got != 1 {
		t.Errorf("success invocations = %v", got)
	}
	if got := testutil.ToFloat64(metrics.invocations.WithLabelValues("anthropic", "error")); got != 1 {
		t.Errorf("error invocations = %v", got)
	}
	if got := testutil.ToFloat64(metrics.tokens.WithLabelValues("anthropic")); got != 150 {
		t.Errorf("tokens = %v, want 150", got)
	}
	if got := testutil.CollectAndCount(metrics.stepLatency); got != 1 {
		t.Errorf("step latency series = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(metrics.tokens); got != 1 {
		t.Errorf("zero usage should not create a series, got %d series", got)
	}

	metrics.Disable()
	metrics.RecordTokens("anthropic", 50)
	metrics.Enable()
	if got := testutil.ToFloat64(metrics.tokens.WithLabelValues("anthropic")); got != 150 {
		t.Errorf("disabled metrics recorded tokens: %v", got)
	}
}

func TestPrometheusMetrics_NilSafe(t *testing.T) {
	var metrics *PrometheusMetrics
	metrics.RecordInvocation("openai", nil)
	metrics.RecordTokens("openai", 10)
	metrics.RecordWorkflow(WorkflowStatus("completed"))
	metrics.RecordStepLatency(store.Testing, time.Second, "failed")
	metrics.addInflight(1)

	record := metrics.RecordTokens
	record("openai", 5)
}

func TestInstrumentInvoker(t *testing.T) {
	metrics := NewPrometheusMetrics(prometheus.NewRegistry())
	inv := InstrumentInvoker(&fakeInvoker{}, metrics)

	for i := 0; i < 3; i++ {
		if _, err := inv.Invoke(t.Context(), "google", "p"); err != nil {
			t.Fatal(err)
		}
	}
	if got := testutil.ToFloat64(metrics.invocations.WithLabelValues("google", "success")); got != 3 {
		t.Errorf("invocations = %v, want 3", got)
	}

	if same := InstrumentInvoker(&fakeInvoker{}, nil); same == nil {
		t.Error("nil metrics should return the invoker unchanged")
	}
}
