package internaldefs

import (
	estateAuth "github.com/MrEthical07/estateAuth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   estateAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   estateAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: estateAuth.MetricSessionValid, Name: "estate_session_valid_total", Help: "Requests carrying a readable session cookie."},
	{ID: estateAuth.MetricSessionAbsent, Name: "estate_session_absent_total", Help: "Requests without a session cookie."},
	{ID: estateAuth.MetricSessionMalformed, Name: "estate_session_malformed_total", Help: "Session cookies that did not decode."},
	{ID: estateAuth.MetricSessionInvalid, Name: "estate_session_invalid_total", Help: "Session cookies rejected for signature, role or age."},
	{ID: estateAuth.MetricLoginSuccess, Name: "estate_login_success_total", Help: "Successful logins."},
	{ID: estateAuth.MetricLoginFailure, Name: "estate_login_failure_total", Help: "Failed logins."},
	{ID: estateAuth.MetricLoginRateLimited, Name: "estate_login_rate_limited_total", Help: "Logins refused by the attempt budget."},
	{ID: estateAuth.MetricLogout, Name: "estate_logout_total", Help: "Logouts."},
	{ID: estateAuth.MetricRegisterSuccess, Name: "estate_register_success_total", Help: "Successful registrations."},
	{ID: estateAuth.MetricRegisterDuplicate, Name: "estate_register_duplicate_total", Help: "Registrations rejected for an email in use."},
	{ID: estateAuth.MetricRegisterRateLimited, Name: "estate_register_rate_limited_total", Help: "Registrations refused by the per-IP budget."},
	{ID: estateAuth.MetricPermissionDenied, Name: "estate_permission_denied_total", Help: "Operations denied by role or ownership."},
	{ID: estateAuth.MetricListingCreated, Name: "estate_listing_created_total", Help: "Listings created."},
	{ID: estateAuth.MetricListingUpdated, Name: "estate_listing_updated_total", Help: "Listings updated."},
	{ID: estateAuth.MetricListingDeleted, Name: "estate_listing_deleted_total", Help: "Listings deleted."},
	{ID: estateAuth.MetricListingStatusChanged, Name: "estate_listing_status_changed_total", Help: "Moderation status changes."},
	{ID: estateAuth.MetricAgentUpdated, Name: "estate_agent_updated_total", Help: "Agent profile updates."},
	{ID: estateAuth.MetricAgentCacheHit, Name: "estate_agent_cache_hit_total", Help: "Agent lookups served from memory."},
	{ID: estateAuth.MetricAgentCacheMiss, Name: "estate_agent_cache_miss_total", Help: "Agent lookups that reached the database."},
	{ID: estateAuth.MetricAgentCacheInvalidated, Name: "estate_agent_cache_invalidated_total", Help: "Local and peer agent cache invalidations."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: estateAuth.MetricLoginLatency, Name: "estate_login_latency_seconds", Help: "Password verification latency during login."},
}

// AuditDroppedName is the counter for events the audit dispatcher discarded.
const AuditDroppedName = "estate_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events dropped because the dispatcher queue was full."

// HistogramBounds are the upper bounds in seconds, matching the engine's buckets.
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

// NormalizeBuckets copies raw into a fixed array, padding or truncating to eight buckets.
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
