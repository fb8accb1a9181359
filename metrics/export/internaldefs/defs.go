package internaldefs

import (
	sessionkit "github.com/entportal/sessionkit"
)

// CounterDef defines a public type used by sessionkit APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by sessionkit APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session manager.
var CounterDefs = []CounterDef{
	{ID: sessionkit.MetricLoginSuccess, Name: "sessionkit_login_success_total", Help: "Successful login attempts."},
	{ID: sessionkit.MetricLoginFailure, Name: "sessionkit_login_failure_total", Help: "Failed login attempts."},
	{ID: sessionkit.MetricResumeSuccess, Name: "sessionkit_resume_success_total", Help: "Sessions resumed from the credential store."},
	{ID: sessionkit.MetricResumeAbsent, Name: "sessionkit_resume_absent_total", Help: "Resume attempts with no stored session."},
	{ID: sessionkit.MetricResumeFailure, Name: "sessionkit_resume_failure_total", Help: "Failed resume attempts."},
	{ID: sessionkit.MetricRenewSuccess, Name: "sessionkit_renew_success_total", Help: "Successful credential renewals."},
	{ID: sessionkit.MetricRenewSoftFailure, Name: "sessionkit_renew_soft_failure_total", Help: "Transient renewal failures within the retry budget."},
	{ID: sessionkit.MetricRenewHardFailure, Name: "sessionkit_renew_hard_failure_total", Help: "Renewal failures that ended the session."},
	{ID: sessionkit.MetricRenewCoalesced, Name: "sessionkit_renew_coalesced_total", Help: "Renewal triggers that joined an in-flight attempt."},
	{ID: sessionkit.MetricRenewDiscarded, Name: "sessionkit_renew_discarded_total", Help: "Renewal results discarded after a logout or new login."},
	{ID: sessionkit.MetricLogout, Name: "sessionkit_logout_total", Help: "Caller-initiated logout operations."},
	{ID: sessionkit.MetricForcedLogout, Name: "sessionkit_forced_logout_total", Help: "Logouts forced by renewal or credential failures."},
	{ID: sessionkit.MetricCredentialCorrupt, Name: "sessionkit_credential_corrupt_total", Help: "Credentials that failed to decode."},
	{ID: sessionkit.MetricStorePersistFailure, Name: "sessionkit_store_persist_failure_total", Help: "Failed writes to the credential store."},
}

// HistogramDefs is an exported constant or variable used by the session manager.
var HistogramDefs = []HistogramDef{
	{ID: sessionkit.MetricRenewLatency, Name: "sessionkit_renew_latency_seconds", Help: "Renewal grant latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session manager.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session manager.
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

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
