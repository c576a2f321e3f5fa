package domain

import "time"

// UpstreamStatusKey is the cache key the sentinel writes its latest
// probe result under and the API reads it back from.
const UpstreamStatusKey = "upstream:status"

// EndpointStatus is one sentinel probe result for a single upstream
// endpoint.
type EndpointStatus struct {
	Endpoint   string `json:"endpoint"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

// UpstreamStatus is the sentinel's view of the hydrology service: one
// entry per probed endpoint plus the overall verdict. Healthy means
// every endpoint answered; an HTTP error status still counts as
// answering, only transport failures do not.
type UpstreamStatus struct {
	BaseURL   string           `json:"base_url"`
	Healthy   bool             `json:"healthy"`
	Endpoints []EndpointStatus `json:"endpoints"`
	CheckedAt time.Time        `json:"checked_at"`
}
