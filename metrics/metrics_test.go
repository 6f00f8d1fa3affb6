package metrics

import (
	"testing"
)

// Global metrics instance (reused across enabled tests to avoid Prometheus registry conflicts)
var globalMetrics *Metrics

func init() {
	globalMetrics = New(true)
}

func TestMetricsEnabled(t *testing.T) {
	if globalMetrics == nil {
		t.Fatal("metrics should not be nil")
	}
}

func TestMetricsDisabled(t *testing.T) {
	metrics := New(false)

	if metrics == nil {
		t.Fatal("metrics should not be nil (noop)")
	}

	// These should not panic even though they're noop
	metrics.RecordRequest("GET", 200, 0.001)
	metrics.RecordRefresh("success")
	metrics.RecordRefreshCoalesced()
	metrics.RecordAuthFailure("login", "invalid_credentials")
	metrics.RecordSessionRestored()
}

func TestRecordRequest(t *testing.T) {
	// Should not panic
	globalMetrics.RecordRequest("GET", 200, 0.002)
	globalMetrics.RecordRequest("POST", 401, 0.01)
}

func TestRecordRefresh(t *testing.T) {
	globalMetrics.RecordRefresh("success")
	globalMetrics.RecordRefresh("failure")
	globalMetrics.RecordRefreshCoalesced()
}

func TestRecordAuthFailure(t *testing.T) {
	globalMetrics.RecordAuthFailure("verify_otp", "invalid_passcode")
	globalMetrics.RecordAuthFailure("login", "network")
}
