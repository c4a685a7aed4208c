package monitoring

import (
	"sync/atomic"
	"time"
)

// Counters tracks classification traffic for one adapter. Every method is
// lock-free so it can sit on the native callback path.
type Counters struct {
	requests  atomic.Uint64
	failures  atomic.Uint64
	malformed atomic.Uint64

	startTime time.Time
}

// NewCounters starts the uptime clock.
func NewCounters() *Counters {
	return &Counters{startTime: time.Now()}
}

func (c *Counters) RecordRequest() { c.requests.Add(1) }

func (c *Counters) RecordFailure() { c.failures.Add(1) }

func (c *Counters) RecordMalformed() { c.malformed.Add(1) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests  uint64        `json:"requests"`
	Failures  uint64        `json:"failures"`
	Malformed uint64        `json:"malformed"`
	Uptime    time.Duration `json:"uptime"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Requests:  c.requests.Load(),
		Failures:  c.failures.Load(),
		Malformed: c.malformed.Load(),
		Uptime:    time.Since(c.startTime),
	}
}

// Succeeded is the number of requests that produced a label.
func (s Snapshot) Succeeded() uint64 {
	failed := s.Failures + s.Malformed
	if failed > s.Requests {
		return 0
	}
	return s.Requests - failed
}
