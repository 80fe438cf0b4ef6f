package domain

// Stats are the bridge's running call counters. Monotonic; never reset
// except by process restart.
type Stats struct {
	TotalCalls          int64 `json:"total_calls"`
	SuccessfulCalls     int64 `json:"successful_calls"`
	FailedCalls         int64 `json:"failed_calls"`
	TimedOutCalls       int64 `json:"timed_out_calls"`
	TotalResponseTimeMs int64 `json:"total_response_time_ms"`
}

// AverageResponseTimeMs derives the mean call latency, 0 when no calls have
// completed yet.
func (s Stats) AverageResponseTimeMs() int64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return s.TotalResponseTimeMs / s.TotalCalls
}

// Health is the snapshot returned by the bridge's health query.
type Health struct {
	State           ConnectionState `json:"state"`
	Healthy         bool            `json:"healthy"`
	Stats           Stats           `json:"stats"`
	AverageMs       int64           `json:"average_response_time_ms"`
	PendingRequests int             `json:"pending_requests"`
	UptimeMs        int64           `json:"uptime_ms"`
	AvailableTools  []string        `json:"available_tools"`
}
