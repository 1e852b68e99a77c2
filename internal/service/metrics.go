package service

import "sync/atomic"

// Metrics counts stream outcomes since startup. Counters are read by
// the readiness endpoint for a coarse health picture.
type Metrics struct {
	upstreamErrors atomic.Int64
	networkErrors  atomic.Int64
	internalErrors atomic.Int64
	resultHits     atomic.Int64
	turns          atomic.Int64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot is a point-in-time view of the counters
type Snapshot struct {
	Turns          int64 `json:"turns"`
	UpstreamErrors int64 `json:"upstream_errors"`
	NetworkErrors  int64 `json:"network_errors"`
	InternalErrors int64 `json:"internal_errors"`
	ResultHits     int64 `json:"result_cache_hits"`
}

// Snapshot returns current counter values
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Turns:          m.turns.Load(),
		UpstreamErrors: m.upstreamErrors.Load(),
		NetworkErrors:  m.networkErrors.Load(),
		InternalErrors: m.internalErrors.Load(),
		ResultHits:     m.resultHits.Load(),
	}
}
