package risk

import (
	"cmp"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"sift/internal/logging"
	"sift/internal/scan"
	"sift/internal/services"
)

// Option customizes a Scorer.
type Option func(*Scorer)

// WithClock injects the time source used for age scoring.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a logger for degraded scoring reports.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = logging.NewComponentLogger(logger, "risk")
	}
}

// Scorer computes assessments from file metadata.
type Scorer struct {
	profile    Profile
	typeScores map[string]float64
	// locations is longest key first; equal lengths keep table order.
	locations []LocationScore
	now       func() time.Time
	logger    *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewScorer validates profile and returns a scorer bound to it.
func NewScorer(profile Profile, opts ...Option) (*Scorer, error) {
	if err := profile.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "risk", "new scorer", "invalid scoring profile", err)
	}
	profile = profile.clone()
	s := &Scorer{
		profile:    profile,
		typeScores: make(map[string]float64, len(profile.TypeScores)),
		locations:  make([]LocationScore, 0, len(profile.LocationScores)),
		now:        time.Now,
		logger:     logging.NewNop(),
		stats:      newStats(),
	}
	for ext, score := range profile.TypeScores {
		s.typeScores[fold(ext)] = score
	}
	for _, l := range profile.LocationScores {
		s.locations = append(s.locations, LocationScore{Key: fold(l.Key), Score: l.Score})
	}
	slices.SortStableFunc(s.locations, func(a, b LocationScore) int {
		return cmp.Compare(len(b.Key), len(a.Key))
	})
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Profile returns a copy of the tables in use.
func (s *Scorer) Profile() Profile {
	return s.profile.clone()
}

// Score assesses file. It never fails; unavailable inputs degrade to the
// neutral score and are listed in Assessment.Degraded.
func (s *Scorer) Score(file scan.FileDescriptor) Assessment {
	scores := make(DimensionScores, len(Dimensions))
	var degraded []Dimension

	scores[DimensionType] = s.typeScore(file.Extension)
	scores[DimensionLocation] = s.locationScore(file.Path)

	if file.Missing || file.ModTime.IsZero() {
		scores[DimensionAge] = s.profile.Neutral
		degraded = append(degraded, DimensionAge)
	} else {
		days := s.now().Sub(file.ModTime).Hours() / 24
		scores[DimensionAge] = binScore(s.profile.AgeBins, s.profile.AgeFloor, days)
	}

	if file.Missing {
		scores[DimensionSize] = s.profile.Neutral
		degraded = append(degraded, DimensionSize)
	} else {
		megabytes := float64(file.Size) / (1024 * 1024)
		scores[DimensionSize] = binScore(s.profile.SizeBins, s.profile.SizeFloor, megabytes)
	}

	for _, dim := range Dimensions {
		if !hintable[dim] {
			continue
		}
		value, ok := file.Hint(string(dim))
		switch {
		case !ok:
			scores[dim] = s.profile.Neutral
		case math.IsNaN(value):
			scores[dim] = s.profile.Neutral
			degraded = append(degraded, dim)
		default:
			scores[dim] = clamp01(value)
		}
	}

	confidence := s.combine(scores)
	tier := TierFor(confidence)
	assessment := Assessment{
		Scores:     scores,
		Confidence: confidence,
		Tier:       tier,
		Action:     s.profile.ActionFor(tier, confidence),
		Degraded:   degraded,
	}

	if len(degraded) > 0 {
		s.logger.Debug("scoring degraded",
			logging.String(logging.FieldPath, file.Path),
			logging.Any("dimensions", degraded),
			logging.String(logging.FieldErrorHint, services.ErrScoringDegraded.Error()),
		)
	}
	s.record(assessment)
	return assessment
}

// Stats returns a snapshot of per-instance statistics.
func (s *Scorer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.clone()
}

func (s *Scorer) typeScore(ext string) float64 {
	if score, ok := s.typeScores[fold(ext)]; ok {
		return score
	}
	return s.profile.Neutral
}

func (s *Scorer) locationScore(path string) float64 {
	folded := fold(path)
	for _, l := range s.locations {
		if strings.Contains(folded, l.Key) {
			return l.Score
		}
	}
	return s.profile.Neutral
}

func (s *Scorer) combine(scores DimensionScores) float64 {
	var weighted, total float64
	for _, dim := range Dimensions {
		weight := float64(s.profile.Weights[dim])
		weighted += scores[dim] * weight
		total += weight
	}
	if total == 0 {
		return s.profile.Neutral
	}
	return clamp01(weighted / total)
}

func (s *Scorer) record(a Assessment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FilesAnalyzed++
	s.stats.confidenceSum += a.Confidence
	s.stats.TierCounts[a.Tier]++
	s.stats.ActionCounts[a.Action]++
	if len(a.Degraded) > 0 {
		s.stats.Degraded++
	}
}

// fold applies Unicode case folding. Casers carry state, so one is built per call.
func fold(value string) string {
	return cases.Fold().String(value)
}

func clamp01(value float64) float64 {
	return math.Max(0, math.Min(1, value))
}

// Stats summarizes scorer activity.
type Stats struct {
	FilesAnalyzed int            `json:"files_analyzed"`
	Degraded      int            `json:"degraded"`
	TierCounts    map[Tier]int   `json:"tier_counts"`
	ActionCounts  map[Action]int `json:"action_counts"`
	confidenceSum float64
}

func newStats() Stats {
	return Stats{
		TierCounts:   map[Tier]int{},
		ActionCounts: map[Action]int{},
	}
}

// AverageConfidence is the mean confidence over analyzed files.
func (s Stats) AverageConfidence() float64 {
	if s.FilesAnalyzed == 0 {
		return 0
	}
	return s.confidenceSum / float64(s.FilesAnalyzed)
}

func (s Stats) String() string {
	return fmt.Sprintf("analyzed=%d avg_confidence=%.3f degraded=%d", s.FilesAnalyzed, s.AverageConfidence(), s.Degraded)
}

func (s Stats) clone() Stats {
	out := s
	out.TierCounts = maps.Clone(s.TierCounts)
	out.ActionCounts = maps.Clone(s.ActionCounts)
	return out
}
