package wallet

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveOp_IncrementsCounter(t *testing.T) {
	WalletOpsTotal.Reset()

	done := observeOp("test_op")
	done()

	m := &dto.Metric{}
	counter, err := WalletOpsTotal.GetMetricWithLabelValues("test_op")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	_ = counter.Write(m)

	if m.Counter.GetValue() != 1.0 {
		t.Errorf("expected counter value 1, got %f", m.Counter.GetValue())
	}
}

func TestObserveOp_ObservesHistogram(t *testing.T) {
	WalletOpDuration.Reset()

	done := observeOp("hist_test")
	done()

	ch := make(chan prometheus.Metric, 10)
	WalletOpDuration.Collect(ch)
	close(ch)

	found := false
	for metric := range ch {
		m := &dto.Metric{}
		_ = metric.Write(m)
		if m.Histogram != nil && m.Histogram.GetSampleCount() == 1 {
			found = true
		}
	}
	if !found {
		t.Error("expected histogram with 1 sample")
	}
}
