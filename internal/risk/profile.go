package risk

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Bin maps values strictly above Above to Score. Bins are checked in order.
type Bin struct {
	Above float64
	Score float64
}

// TierActions associates an action with the tiers it is a default for.
type TierActions struct {
	Action Action
	Tiers  []Tier
}

// LocationScore scores paths containing Key.
type LocationScore struct {
	Key   string
	Score float64
}

// Profile carries every table the scorer reads.
type Profile struct {
	TypeScores map[string]float64
	// LocationScores is ordered: among matching keys of equal length the
	// earlier entry wins.
	LocationScores []LocationScore
	Weights        map[Dimension]int
	// AgeBins are in days, SizeBins in megabytes.
	AgeBins   []Bin
	AgeFloor  float64
	SizeBins  []Bin
	SizeFloor float64
	// Neutral is used for unknown extensions, unmatched locations, and
	// unavailable dimensions.
	Neutral float64
	// Defaults is ordered; the first entry listing a tier wins.
	Defaults []TierActions
}

// DefaultProfile returns the built-in scoring tables.
func DefaultProfile() Profile {
	return Profile{
		TypeScores: map[string]float64{
			".exe":  0.9,
			".sh":   0.85,
			".bat":  0.85,
			".cmd":  0.85,
			".ps1":  0.85,
			".pdf":  0.6,
			".zip":  0.6,
			".tar":  0.6,
			".gz":   0.6,
			".rar":  0.6,
			".docx": 0.55,
			".doc":  0.55,
			".pptx": 0.55,
			".xlsx": 0.55,
			".xls":  0.55,
			".txt":  0.3,
			".md":   0.3,
			".csv":  0.4,
			".json": 0.4,
			".xml":  0.4,
			".yml":  0.35,
			".yaml": 0.35,
			".png":  0.35,
			".jpg":  0.35,
			".jpeg": 0.35,
			".gif":  0.35,
			".svg":  0.35,
		},
		LocationScores: []LocationScore{
			{"downloads", 0.8},
			{"desktop", 0.75},
			{"temp", 0.85},
			{"tmp", 0.85},
			{"root", 0.7},
			{"/", 0.7},
			{"documents", 0.5},
			{"home", 0.5},
			{"user", 0.5},
			{"archived", 0.2},
			{"backup", 0.2},
			{"organized", 0.3},
		},
		Weights: map[Dimension]int{
			DimensionType:          15,
			DimensionLocation:      15,
			DimensionAge:           20,
			DimensionSize:          15,
			DimensionActivity:      10,
			DimensionReversibility: 10,
			DimensionSensitivity:   25,
			DimensionContext:       8,
			DimensionPredictive:    7,
		},
		AgeBins:   []Bin{{365, 0.9}, {90, 0.7}, {30, 0.5}, {7, 0.3}},
		AgeFloor:  0.1,
		SizeBins:  []Bin{{100, 0.8}, {50, 0.7}, {10, 0.5}, {1, 0.3}},
		SizeFloor: 0.2,
		Neutral:   0.5,
		Defaults: []TierActions{
			{ActionDeleteImmediate, []Tier{TierCritical}},
			{ActionReviewManual, []Tier{TierHigh}},
			{ActionKeepActive, []Tier{TierLow, TierMedium}},
			{ActionMoveCorrect, []Tier{TierMedium}},
			{ActionBackupCloud, []Tier{TierHigh}},
			{ActionCompress, []Tier{TierMedium}},
		},
	}
}

// WithOverrides returns a copy of p with table entries replaced. An
// overridden location keeps its table position; new locations are appended in
// key order. Weight keys must name known dimensions.
func (p Profile) WithOverrides(types, locations map[string]float64, weights map[string]int) (Profile, error) {
	out := p.clone()
	maps.Copy(out.TypeScores, types)
	for _, key := range slices.Sorted(maps.Keys(locations)) {
		i := slices.IndexFunc(out.LocationScores, func(l LocationScore) bool { return l.Key == key })
		if i >= 0 {
			out.LocationScores[i].Score = locations[key]
			continue
		}
		out.LocationScores = append(out.LocationScores, LocationScore{Key: key, Score: locations[key]})
	}
	for name, weight := range weights {
		dim := Dimension(name)
		if !slices.Contains(Dimensions, dim) {
			return Profile{}, fmt.Errorf("unknown scoring dimension %q", name)
		}
		out.Weights[dim] = weight
	}
	return out, nil
}

// Validate checks that the tables are usable. Weights are relative: the
// scorer divides by their total, which only has to be positive.
func (p Profile) Validate() error {
	total := 0
	for _, dim := range Dimensions {
		weight, ok := p.Weights[dim]
		if !ok {
			return fmt.Errorf("missing weight for dimension %q", dim)
		}
		if weight < 0 {
			return fmt.Errorf("weight for %q must be non-negative", dim)
		}
		total += weight
	}
	if total <= 0 {
		return errors.New("dimension weights must have a positive total")
	}
	for ext, score := range p.TypeScores {
		if score < 0 || score > 1 {
			return fmt.Errorf("type score for %q out of range", ext)
		}
	}
	for _, l := range p.LocationScores {
		if l.Key == "" {
			return errors.New("location key is empty")
		}
		if l.Score < 0 || l.Score > 1 {
			return fmt.Errorf("location score for %q out of range", l.Key)
		}
	}
	if p.Neutral < 0 || p.Neutral > 1 {
		return errors.New("neutral score out of range")
	}
	if len(p.Defaults) == 0 {
		return errors.New("tier action defaults are empty")
	}
	return nil
}

func (p Profile) clone() Profile {
	out := p
	out.TypeScores = maps.Clone(p.TypeScores)
	if out.TypeScores == nil {
		out.TypeScores = map[string]float64{}
	}
	out.LocationScores = slices.Clone(p.LocationScores)
	out.Weights = maps.Clone(p.Weights)
	if out.Weights == nil {
		out.Weights = map[Dimension]int{}
	}
	out.AgeBins = slices.Clone(p.AgeBins)
	out.SizeBins = slices.Clone(p.SizeBins)
	out.Defaults = slices.Clone(p.Defaults)
	return out
}

// ActionFor picks the action for a tier and confidence.
func (p Profile) ActionFor(tier Tier, confidence float64) Action {
	switch {
	case tier == TierCritical && confidence < 0.5:
		return ActionDeleteImmediate
	case tier == TierHigh && confidence < 0.7:
		return ActionReviewManual
	case tier == TierLow && confidence > 0.85:
		return ActionKeepActive
	}
	for _, entry := range p.Defaults {
		if slices.Contains(entry.Tiers, tier) {
			return entry.Action
		}
	}
	return ActionReviewManual
}

func binScore(bins []Bin, floor, value float64) float64 {
	for _, bin := range bins {
		if value > bin.Above {
			return bin.Score
		}
	}
	return floor
}
