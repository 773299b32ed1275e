package control

import "testing"

func TestMetricsRegistrySetAndSnapshot(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Set(MetricLiveConnections, 3)
	mr.Set(MetricTick, 128)

	snap := mr.GetSnapshot()
	if snap[MetricLiveConnections] != 3 {
		t.Fatalf("expected %s=3, got %d", MetricLiveConnections, snap[MetricLiveConnections])
	}
	if snap[MetricTick] != 128 {
		t.Fatalf("expected %s=128, got %d", MetricTick, snap[MetricTick])
	}
}

func TestMetricsRegistrySnapshotIsACopy(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Set(MetricRestartsTotal, 1)

	snap := mr.GetSnapshot()
	snap[MetricRestartsTotal] = 99

	if got := mr.GetSnapshot()[MetricRestartsTotal]; got != 1 {
		t.Fatalf("expected registry unaffected by snapshot mutation, got %d", got)
	}
}
