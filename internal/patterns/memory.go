package patterns

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"sift/internal/logging"
	"sift/internal/risk"
	"sift/internal/services"
)

const (
	decayWindowDays = 30
	maxHistory      = 1000
)

// Pattern is a learned association between a file-name shape and an action.
// Confidence is the raw stored value; see Memory.Effective for the decayed one.
type Pattern struct {
	Key         string      `json:"key" yaml:"key"`
	Action      risk.Action `json:"action" yaml:"action"`
	Count       int         `json:"count" yaml:"count"`
	Confidence  float64     `json:"confidence" yaml:"confidence"`
	Destination string      `json:"destination,omitempty" yaml:"destination,omitempty"`
	LastUpdated time.Time   `json:"last_updated" yaml:"last_updated"`
}

// Correction is one human override of a recommended action.
type Correction struct {
	File      string      `json:"file" yaml:"file"`
	Original  risk.Action `json:"original" yaml:"original"`
	Corrected risk.Action `json:"corrected" yaml:"corrected"`
	Reason    string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	At        time.Time   `json:"at" yaml:"at"`
}

// Feedback records whether a suggested destination was accepted.
type Feedback struct {
	File      string    `json:"file"`
	Suggested string    `json:"suggested"`
	Actual    string    `json:"actual"`
	Accepted  bool      `json:"accepted"`
	At        time.Time `json:"at"`
}

// Options configures a Memory.
type Options struct {
	// Path is the JSON file backing the memory. Empty keeps everything in memory.
	Path                string
	DecayRate           float64
	SimilarityThreshold float64
	MinConfidence       float64
	Clock               func() time.Time
	Logger              *slog.Logger
}

// Memory stores patterns and answers lookups. Safe for concurrent use.
type Memory struct {
	path          string
	decayRate     float64
	threshold     float64
	minConfidence float64
	now           func() time.Time
	logger        *slog.Logger

	mu          sync.RWMutex
	patterns    map[string]Pattern
	corrections []Correction
	feedback    []Feedback
}

// Open builds a Memory and loads any persisted state from opts.Path.
func Open(opts Options) (*Memory, error) {
	if opts.DecayRate <= 0 || opts.DecayRate > 1 {
		opts.DecayRate = 0.1
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = 0.7
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	m := &Memory{
		path:          opts.Path,
		decayRate:     opts.DecayRate,
		threshold:     opts.SimilarityThreshold,
		minConfidence: opts.MinConfidence,
		now:           opts.Clock,
		logger:        logging.NewComponentLogger(opts.Logger, "patterns"),
		patterns:      make(map[string]Pattern),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCorrection learns from a human override. The corrected action becomes
// the pattern's recommendation and the correction count increases by one.
func (m *Memory) RecordCorrection(file string, original, corrected risk.Action, reason string) (Pattern, error) {
	if strings.TrimSpace(file) == "" {
		return Pattern{}, services.Wrap(services.ErrValidation, "patterns", "record correction", "file is required", nil)
	}
	if _, ok := risk.ParseAction(string(corrected)); !ok {
		return Pattern{}, services.Wrap(services.ErrValidation, "patterns", "record correction",
			fmt.Sprintf("unknown action %q", corrected), nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prevPatterns := maps.Clone(m.patterns)
	prevCorrections := m.corrections

	learned := m.learnLocked(Correction{
		File:      file,
		Original:  original,
		Corrected: corrected,
		Reason:    reason,
		At:        m.now(),
	})

	if err := m.save(); err != nil {
		m.patterns = prevPatterns
		m.corrections = prevCorrections
		return Pattern{}, fmt.Errorf("persist patterns: %w", err)
	}

	m.logger.Info("correction recorded",
		logging.String(logging.FieldEventType, "pattern_learned"),
		logging.String(logging.FieldPath, file),
		logging.String("pattern", learned.Key),
		logging.String("action", string(learned.Action)),
		logging.Int("count", learned.Count),
		logging.Float64("confidence", learned.Confidence),
	)
	return learned, nil
}

// BatchLearn applies several corrections with one save.
func (m *Memory) BatchLearn(corrections []Correction) error {
	for _, c := range corrections {
		if strings.TrimSpace(c.File) == "" {
			return services.Wrap(services.ErrValidation, "patterns", "batch learn", "file is required", nil)
		}
		if _, ok := risk.ParseAction(string(c.Corrected)); !ok {
			return services.Wrap(services.ErrValidation, "patterns", "batch learn",
				fmt.Sprintf("unknown action %q", c.Corrected), nil)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prevPatterns := maps.Clone(m.patterns)
	prevCorrections := m.corrections
	for _, c := range corrections {
		if c.At.IsZero() {
			c.At = m.now()
		}
		m.learnLocked(c)
	}
	if err := m.save(); err != nil {
		m.patterns = prevPatterns
		m.corrections = prevCorrections
		return fmt.Errorf("persist patterns: %w", err)
	}
	return nil
}

// learnLocked counts c against its pattern. The action is fixed by the first
// correction that creates the pattern; later ones only add corroboration.
// Forget the pattern to relearn a different action.
func (m *Memory) learnLocked(c Correction) Pattern {
	key := Key(c.File)
	p, ok := m.patterns[key]
	if !ok {
		p = Pattern{Key: key, Action: c.Corrected}
	}
	p.Count++
	p.Confidence = confidenceFor(p.Count)
	p.LastUpdated = c.At
	m.patterns[key] = p
	m.corrections = appendBounded(m.corrections, c)
	return p
}

// RecordFeedback records whether a suggested destination was accepted. A
// rejection nudges the matching pattern: its destination becomes the
// directory of actual and its count drops by one, never below zero. The
// returned bool reports whether a pattern was adjusted.
func (m *Memory) RecordFeedback(file, suggested, actual string, accepted bool) (Pattern, bool, error) {
	if strings.TrimSpace(file) == "" {
		return Pattern{}, false, services.Wrap(services.ErrValidation, "patterns", "record feedback", "file is required", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prevPatterns := maps.Clone(m.patterns)
	prevFeedback := m.feedback
	m.feedback = appendBounded(m.feedback, Feedback{
		File:      file,
		Suggested: suggested,
		Actual:    actual,
		Accepted:  accepted,
		At:        m.now(),
	})

	var (
		adjusted Pattern
		changed  bool
	)
	if !accepted {
		if key, ok := m.resolveLocked(file); ok {
			p := m.patterns[key]
			if strings.TrimSpace(actual) != "" {
				p.Destination = filepath.Dir(actual)
			}
			if p.Count == 0 {
				m.logger.Debug("feedback on exhausted pattern",
					logging.String("pattern", key),
					logging.String(logging.FieldErrorHint, services.ErrPatternConflict.Error()),
				)
			} else {
				p.Count--
			}
			p.Confidence = confidenceFor(p.Count)
			m.patterns[key] = p
			adjusted, changed = p, true
		}
	}

	if err := m.save(); err != nil {
		m.patterns = prevPatterns
		m.feedback = prevFeedback
		return Pattern{}, false, fmt.Errorf("persist patterns: %w", err)
	}

	if changed {
		m.logger.Info("pattern nudged by feedback",
			logging.String(logging.FieldEventType, "pattern_feedback"),
			logging.String(logging.FieldPath, file),
			logging.String("pattern", adjusted.Key),
			logging.String("destination", adjusted.Destination),
			logging.Int("count", adjusted.Count),
		)
	}
	return adjusted, changed, nil
}

// Lookup returns the decayed pattern for file, trying the exact key first and
// then the most similar known key.
func (m *Memory) Lookup(file string) (Pattern, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.resolveLocked(file)
	if !ok {
		return Pattern{}, false
	}
	p := m.patterns[key]
	p.Confidence = m.decayed(p)
	if p.Confidence < m.minConfidence {
		return Pattern{}, false
	}
	return p, true
}

// BestMatch reports the most similar known key for file and its ratio,
// regardless of the acceptance threshold.
func (m *Memory) BestMatch(file string) (string, float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bestMatchLocked(filepath.Base(file))
}

func (m *Memory) resolveLocked(file string) (string, bool) {
	key := Key(file)
	if _, ok := m.patterns[key]; ok {
		return key, true
	}
	best, ratio := m.bestMatchLocked(filepath.Base(file))
	if best == "" || ratio < m.threshold {
		return "", false
	}
	return best, true
}

func (m *Memory) bestMatchLocked(name string) (string, float64) {
	keys := slices.Sorted(maps.Keys(m.patterns))
	var (
		best      string
		bestRatio float64
	)
	for _, key := range keys {
		if ratio := Similarity(name, key); ratio > bestRatio {
			best, bestRatio = key, ratio
		}
	}
	return best, bestRatio
}

// Effective returns p's confidence after read-time decay.
func (m *Memory) Effective(p Pattern) float64 {
	return m.decayed(p)
}

func (m *Memory) decayed(p Pattern) float64 {
	if p.LastUpdated.IsZero() {
		return p.Confidence
	}
	days := math.Floor(m.now().Sub(p.LastUpdated).Hours() / 24)
	if days <= decayWindowDays {
		return p.Confidence
	}
	return p.Confidence * math.Pow(m.decayRate, days/decayWindowDays)
}

// Patterns returns raw copies of every pattern sorted by key.
func (m *Memory) Patterns() []Pattern {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Pattern, 0, len(m.patterns))
	for _, key := range slices.Sorted(maps.Keys(m.patterns)) {
		out = append(out, m.patterns[key])
	}
	return out
}

// Corrections returns the recorded correction history, oldest first.
func (m *Memory) Corrections() []Correction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.corrections)
}

// RecentFeedback returns up to n of the latest feedback entries, oldest first.
func (m *Memory) RecentFeedback(n int) []Feedback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := max(0, len(m.feedback)-n)
	return slices.Clone(m.feedback[start:])
}

// Forget removes a pattern by key.
func (m *Memory) Forget(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.patterns[key]
	if !ok {
		return services.Wrap(services.ErrNotFound, "patterns", "forget", fmt.Sprintf("pattern %q", key), nil)
	}
	delete(m.patterns, key)
	if err := m.save(); err != nil {
		m.patterns[key] = p
		return fmt.Errorf("persist patterns: %w", err)
	}
	return nil
}

// Stats summarizes the learned state.
type Stats struct {
	PatternCount        int                 `json:"pattern_count"`
	AverageConfidence   float64             `json:"average_confidence"`
	TotalCorrections    int                 `json:"total_corrections"`
	CorrectionsByAction map[risk.Action]int `json:"corrections_by_action"`
	MostCommonAction    risk.Action         `json:"most_common_action,omitempty"`
	TotalFeedback       int                 `json:"total_feedback"`
	AcceptedFeedback    int                 `json:"accepted_feedback"`
}

// Stats computes statistics over raw pattern confidences.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		PatternCount:        len(m.patterns),
		TotalCorrections:    len(m.corrections),
		CorrectionsByAction: map[risk.Action]int{},
		TotalFeedback:       len(m.feedback),
	}
	var sum float64
	for _, p := range m.patterns {
		sum += p.Confidence
	}
	if len(m.patterns) > 0 {
		stats.AverageConfidence = sum / float64(len(m.patterns))
	}
	for _, c := range m.corrections {
		stats.CorrectionsByAction[c.Corrected]++
	}
	best := 0
	for _, action := range slices.Sorted(maps.Keys(stats.CorrectionsByAction)) {
		if n := stats.CorrectionsByAction[action]; n > best {
			best, stats.MostCommonAction = n, action
		}
	}
	for _, f := range m.feedback {
		if f.Accepted {
			stats.AcceptedFeedback++
		}
	}
	return stats
}

func appendBounded[T any](items []T, item T) []T {
	items = append(items, item)
	if len(items) > maxHistory {
		items = slices.Clone(items[len(items)-maxHistory:])
	}
	return items
}

var errEmptyKey = errors.New("pattern key is empty")
