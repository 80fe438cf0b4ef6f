package bridge

import (
	"sync"

	"github.com/conduit-ai/conduit/pkg/domain"
)

// counters is the statistics accumulator. Updated only from the call
// completion paths; never reset.
type counters struct {
	mu sync.Mutex
	s  domain.Stats
}

func (c *counters) record(status domain.CallStatus, durationMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.TotalCalls++
	c.s.TotalResponseTimeMs += durationMs
	switch status {
	case domain.StatusSuccess:
		c.s.SuccessfulCalls++
	case domain.StatusTimeout:
		c.s.TimedOutCalls++
	default:
		c.s.FailedCalls++
	}
}

func (c *counters) snapshot() domain.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
