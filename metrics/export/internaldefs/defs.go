package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goAuthClient.MetricLoginSuccess, Name: "goauthclient_login_success_total", Help: "Successful logins."},
	{ID: goAuthClient.MetricLoginFailure, Name: "goauthclient_login_failure_total", Help: "Failed logins."},
	{ID: goAuthClient.MetricRegisterSuccess, Name: "goauthclient_register_success_total", Help: "Successful registrations."},
	{ID: goAuthClient.MetricRegisterFailure, Name: "goauthclient_register_failure_total", Help: "Failed registrations."},
	{ID: goAuthClient.MetricNetworkFailure, Name: "goauthclient_network_failure_total", Help: "Requests that never reached the server."},
	{ID: goAuthClient.MetricRefreshSuccess, Name: "goauthclient_refresh_success_total", Help: "Successful token refreshes."},
	{ID: goAuthClient.MetricRefreshFailure, Name: "goauthclient_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: goAuthClient.MetricRefreshCoalesced, Name: "goauthclient_refresh_coalesced_total", Help: "Callers that joined an in-flight refresh."},
	{ID: goAuthClient.MetricRefreshDiscarded, Name: "goauthclient_refresh_discarded_total", Help: "Refresh results discarded because the session ended."},
	{ID: goAuthClient.MetricPreemptiveRefresh, Name: "goauthclient_preemptive_refresh_total", Help: "Refreshes started before the access token expired."},
	{ID: goAuthClient.MetricUnauthorized, Name: "goauthclient_unauthorized_total", Help: "Protected calls answered with 401."},
	{ID: goAuthClient.MetricRetryUnauthorized, Name: "goauthclient_retry_unauthorized_total", Help: "Retried protected calls answered with 401 again."},
	{ID: goAuthClient.MetricLogout, Name: "goauthclient_logout_total", Help: "User initiated logouts."},
	{ID: goAuthClient.MetricForcedLogout, Name: "goauthclient_forced_logout_total", Help: "Sessions ended by a rejected refresh."},
	{ID: goAuthClient.MetricSessionRestored, Name: "goauthclient_session_restored_total", Help: "Sessions restored from the credential store."},
	{ID: goAuthClient.MetricStoreFailure, Name: "goauthclient_store_failure_total", Help: "Credential store operations that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: goAuthClient.MetricRequestLatency, Name: "goauthclient_request_latency_seconds", Help: "API request latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "goauthclient_audit_dropped_total"

// HistogramUpperBounds are the bucket bounds in seconds. The final +Inf
// bucket is implied.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero filling short input.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
