package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveGeneration(t *testing.T) {
	before := testutil.ToFloat64(insightGenerations.WithLabelValues("weekly", "skipped", "no_records"))
	ObserveGeneration("weekly", "skipped", "no_records")
	after := testutil.ToFloat64(insightGenerations.WithLabelValues("weekly", "skipped", "no_records"))
	if after-before != 1 {
		t.Fatalf("counter delta = %v, want 1", after-before)
	}
}

func TestObservePublish_Outcomes(t *testing.T) {
	okBefore := testutil.ToFloat64(queuePublishes.WithLabelValues("batch", "ok"))
	errBefore := testutil.ToFloat64(queuePublishes.WithLabelValues("batch", "error"))

	ObservePublish("batch", nil)
	ObservePublish("batch", errors.New("boom"))
	ObservePublish("batch", nil)

	if d := testutil.ToFloat64(queuePublishes.WithLabelValues("batch", "ok")) - okBefore; d != 2 {
		t.Fatalf("ok delta = %v", d)
	}
	if d := testutil.ToFloat64(queuePublishes.WithLabelValues("batch", "error")) - errBefore; d != 1 {
		t.Fatalf("error delta = %v", d)
	}
}

func TestObserveSchedulerPage_Labels(t *testing.T) {
	before := testutil.ToFloat64(schedulerPages.WithLabelValues("monthly", "true"))
	ObserveSchedulerPage("monthly", true)
	ObserveSchedulerPage("monthly", false)
	if d := testutil.ToFloat64(schedulerPages.WithLabelValues("monthly", "true")) - before; d != 1 {
		t.Fatalf("delta = %v", d)
	}
	ObserveRedelivery()
	ObserveAIRetry("weekly")
}

func TestObserveDispatch_NonSuccessStatusIsError(t *testing.T) {
	okBefore := testutil.ToFloat64(queueDispatches.WithLabelValues("continuation", "ok"))
	errBefore := testutil.ToFloat64(queueDispatches.WithLabelValues("continuation", "error"))

	ObserveDispatch("continuation", 200, nil)
	ObserveDispatch("continuation", 503, nil)
	ObserveDispatch("continuation", 0, errors.New("dial"))

	if d := testutil.ToFloat64(queueDispatches.WithLabelValues("continuation", "ok")) - okBefore; d != 1 {
		t.Fatalf("ok delta = %v", d)
	}
	if d := testutil.ToFloat64(queueDispatches.WithLabelValues("continuation", "error")) - errBefore; d != 2 {
		t.Fatalf("error delta = %v", d)
	}
}
