// Package decision merges risk scores with learned patterns into a single
// recommendation per file.
package decision

import (
	"sift/internal/patterns"
	"sift/internal/risk"
	"sift/internal/scan"
)

// Source names what produced a decision's action.
type Source string

const (
	SourceScorer  Source = "scorer"
	SourcePattern Source = "pattern"
)

// patternFloor is the minimum confidence granted to a decision backed by a
// learned pattern.
const patternFloor = 0.95

// Decision is the recommendation for one file.
type Decision struct {
	File       scan.FileDescriptor  `json:"file"`
	Confidence float64              `json:"confidence"`
	Tier       risk.Tier            `json:"tier"`
	Action     risk.Action          `json:"action"`
	Target     string               `json:"target,omitempty"`
	Source     Source               `json:"source"`
	PatternKey string               `json:"pattern_key,omitempty"`
	Scores     risk.DimensionScores `json:"scores,omitempty"`
	Degraded   []risk.Dimension     `json:"degraded,omitempty"`
}

// Scorer is the subset of risk.Scorer the combiner needs.
type Scorer interface {
	Score(file scan.FileDescriptor) risk.Assessment
}

// PatternSource is the subset of patterns.Memory the combiner needs.
type PatternSource interface {
	Lookup(file string) (patterns.Pattern, bool)
}

// Combiner produces decisions. It holds no state of its own.
type Combiner struct {
	scorer   Scorer
	patterns PatternSource
}

// NewCombiner wires a scorer and an optional pattern source.
func NewCombiner(scorer Scorer, source PatternSource) *Combiner {
	return &Combiner{scorer: scorer, patterns: source}
}

// Decide scores file and lets a matching pattern override the action. With
// a pattern hit the confidence is raised to at least 0.95 and the pattern's
// destination becomes the target. The tier always follows the final
// confidence.
func (c *Combiner) Decide(file scan.FileDescriptor) Decision {
	assessment := c.scorer.Score(file)
	d := Decision{
		File:       file,
		Confidence: assessment.Confidence,
		Action:     assessment.Action,
		Source:     SourceScorer,
		Scores:     assessment.Scores,
		Degraded:   assessment.Degraded,
	}

	if c.patterns != nil {
		if p, ok := c.patterns.Lookup(file.Path); ok {
			d.Action = p.Action
			d.Confidence = max(d.Confidence, patternFloor)
			d.Source = SourcePattern
			d.PatternKey = p.Key
			if p.Destination != "" {
				d.Target = p.Destination
			}
		}
	}

	d.Tier = risk.TierFor(d.Confidence)
	return d
}

// DecideAll applies Decide to each file in order.
func (c *Combiner) DecideAll(files []scan.FileDescriptor) []Decision {
	out := make([]Decision, 0, len(files))
	for _, f := range files {
		out = append(out, c.Decide(f))
	}
	return out
}
