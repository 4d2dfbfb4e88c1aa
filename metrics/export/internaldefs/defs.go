package internaldefs

import (
	"github.com/MrEthical07/fastauth"
)

type CounterDef struct {
	ID   fastauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   fastauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: fastauth.MetricRegisterSuccess, Name: "fastauth_register_success_total", Help: "Successful registrations."},
	{ID: fastauth.MetricRegisterDuplicate, Name: "fastauth_register_duplicate_total", Help: "Registrations rejected for a taken email or username."},
	{ID: fastauth.MetricRegisterFailure, Name: "fastauth_register_failure_total", Help: "Registrations rejected by validation or failed in the store."},
	{ID: fastauth.MetricLoginSuccess, Name: "fastauth_login_success_total", Help: "Successful logins."},
	{ID: fastauth.MetricLoginFailure, Name: "fastauth_login_failure_total", Help: "Failed logins."},
	{ID: fastauth.MetricPasswordHashUpgraded, Name: "fastauth_password_hash_upgraded_total", Help: "Password hashes rewritten with current parameters on login."},
	{ID: fastauth.MetricRefreshSuccess, Name: "fastauth_refresh_success_total", Help: "Refresh tokens exchanged."},
	{ID: fastauth.MetricRefreshInvalid, Name: "fastauth_refresh_invalid_total", Help: "Refresh attempts with malformed, unknown or reused tokens."},
	{ID: fastauth.MetricRefreshExpired, Name: "fastauth_refresh_expired_total", Help: "Refresh attempts with expired tokens."},
	{ID: fastauth.MetricRefreshFailure, Name: "fastauth_refresh_failure_total", Help: "Refresh attempts that failed for other reasons."},
	{ID: fastauth.MetricTokensIssued, Name: "fastauth_tokens_issued_total", Help: "Token pairs issued by register, login and refresh."},
	{ID: fastauth.MetricLogout, Name: "fastauth_logout_total", Help: "Single refresh token logouts."},
	{ID: fastauth.MetricLogoutAll, Name: "fastauth_logout_all_total", Help: "Logout-all operations."},
	{ID: fastauth.MetricPasswordChangeSuccess, Name: "fastauth_password_change_success_total", Help: "Successful password changes."},
	{ID: fastauth.MetricPasswordChangeInvalidOld, Name: "fastauth_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: fastauth.MetricPasswordChangeReuseRejected, Name: "fastauth_password_change_reuse_rejected_total", Help: "Password changes rejected for reusing the current password."},
	{ID: fastauth.MetricPasswordChangeFailure, Name: "fastauth_password_change_failure_total", Help: "Password changes rejected by policy or failed in the store."},
	{ID: fastauth.MetricValidateSuccess, Name: "fastauth_validate_success_total", Help: "Access tokens accepted."},
	{ID: fastauth.MetricValidateInvalid, Name: "fastauth_validate_invalid_total", Help: "Access tokens rejected as invalid."},
	{ID: fastauth.MetricValidateExpired, Name: "fastauth_validate_expired_total", Help: "Access tokens rejected as expired."},
}

var HistogramDefs = []HistogramDef{
	{ID: fastauth.MetricValidateLatency, Name: "fastauth_validate_latency_seconds", Help: "Access token validation latency."},
}

// AuditDropped is published next to the engine counters.
const (
	AuditDroppedName = "fastauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// BucketCount matches the engine's latency histogram.
const BucketCount = 8

// HistogramBounds are the upper bounds in seconds, as Prometheus le labels.
var HistogramBounds = [BucketCount]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names the per-bucket OTel gauges.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
