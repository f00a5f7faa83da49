package conversion

import (
	"sync/atomic"

	"pdfconvert/internal/domain"
)

var serverKinds = []domain.ErrorKind{
	domain.KindRenderFailed,
	domain.KindEmptyOutput,
	domain.KindRenderTimeout,
	domain.KindInternalError,
}

// Stats counts conversions without locks. The failures map is built once
// and only its counters change afterwards.
type Stats struct {
	inFlight  atomic.Int64
	total     atomic.Int64
	succeeded atomic.Int64
	failures  map[domain.ErrorKind]*atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	InFlight  int64            `json:"in_flight"`
	Total     int64            `json:"total"`
	Succeeded int64            `json:"succeeded"`
	Failures  map[string]int64 `json:"failures"`
}

func newStats() *Stats {
	s := &Stats{failures: make(map[domain.ErrorKind]*atomic.Int64, len(serverKinds))}
	for _, k := range serverKinds {
		s.failures[k] = new(atomic.Int64)
	}
	return s
}

func (s *Stats) begin() {
	s.inFlight.Add(1)
}

func (s *Stats) end(kind domain.ErrorKind) {
	s.inFlight.Add(-1)
	s.total.Add(1)
	if kind == "" {
		s.succeeded.Add(1)
		return
	}
	if c, ok := s.failures[kind]; ok {
		c.Add(1)
	}
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		InFlight:  s.inFlight.Load(),
		Total:     s.total.Load(),
		Succeeded: s.succeeded.Load(),
		Failures:  make(map[string]int64, len(s.failures)),
	}
	for k, c := range s.failures {
		snap.Failures[string(k)] = c.Load()
	}
	return snap
}
