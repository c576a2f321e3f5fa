package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Upstream hydrology service
	MetricUpstreamLatency = "upstream.call_latency"
	MetricUpstreamErrors  = "upstream.error_rate"
	MetricProbeFreshness  = "upstream.probe_age_seconds"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricAnalysesCompleted = "business.analyses_completed"
	MetricAnalysesFailed    = "business.analyses_failed"
	MetricCacheHitRatio     = "business.delineation_cache_hit_ratio"
)
