package executor

import (
	"maps"

	"sift/internal/ledger"
)

// Stats counts Execute outcomes. Attempted counts every call; a call lands
// in exactly one of Executed, Failed, ManualReview, Skipped, NoOperation or
// DryRun.
type Stats struct {
	Attempted    int                       `json:"attempted"`
	Executed     int                       `json:"executed"`
	Failed       int                       `json:"failed"`
	ManualReview int                       `json:"manual_review"`
	Skipped      int                       `json:"skipped"`
	NoOperation  int                       `json:"no_operation"`
	DryRun       int                       `json:"dry_run"`
	ByOperation  map[ledger.ActionType]int `json:"by_operation"`
}

func newStats() Stats {
	return Stats{ByOperation: make(map[ledger.ActionType]int)}
}

func (s *Stats) add(res Result) {
	s.Attempted++
	switch {
	case res.Executed:
		s.Executed++
		s.ByOperation[res.Operation]++
	case res.Err != nil:
		s.Failed++
	case res.Method == MethodManualReview:
		s.ManualReview++
	case res.Method == MethodSkipped:
		s.Skipped++
	case res.Operation == "":
		s.NoOperation++
	default:
		s.DryRun++
	}
}

func (s Stats) clone() Stats {
	out := s
	out.ByOperation = maps.Clone(s.ByOperation)
	return out
}

// SuccessRate is Executed over Attempted.
func (s Stats) SuccessRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Executed) / float64(s.Attempted)
}
