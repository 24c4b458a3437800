package relay

import "time"

// Outcome is the per-work-item dispatch result.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeSkippedNotFound
	OutcomeSkippedFiltered
	OutcomeThrottled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeSkippedNotFound:
		return "skipped_not_found"
	case OutcomeSkippedFiltered:
		return "skipped_filtered"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes one dispatched work item.
type Result struct {
	ItemID     int64 // 0 for literal message sends
	Outcome    Outcome
	Err        error
	RetryAfter time.Duration // set for OutcomeThrottled
}

// Stats accumulates outcomes across a single run. It is mutated only by the
// dispatcher during the run and read once at the end for the summary; it has
// no persistence beyond the process.
type Stats struct {
	Delivered       int
	SkippedNotFound int
	SkippedFiltered int
	Throttled       int
	Failed          int

	StartedAt  time.Time
	FinishedAt time.Time
}

func (s *Stats) record(o Outcome) {
	switch o {
	case OutcomeDelivered:
		s.Delivered++
	case OutcomeSkippedNotFound:
		s.SkippedNotFound++
	case OutcomeSkippedFiltered:
		s.SkippedFiltered++
	case OutcomeThrottled:
		s.Throttled++
	case OutcomeFailed:
		s.Failed++
	}
}

// Skipped is the total of both skip flavors.
func (s *Stats) Skipped() int { return s.SkippedNotFound + s.SkippedFiltered }

// Errors counts items that neither delivered nor skipped cleanly. A
// throttled item is never retried (skip-forward policy), so it lands here.
func (s *Stats) Errors() int { return s.Failed + s.Throttled }

// Total is the number of work items dispatched.
func (s *Stats) Total() int { return s.Delivered + s.Skipped() + s.Errors() }

// Elapsed is the wall-clock duration of the run.
func (s *Stats) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := s.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}
