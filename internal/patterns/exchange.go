package patterns

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sift/internal/risk"
	"sift/internal/services"
)

// Format selects the serialization used by Export and Import.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the format from a file extension. Anything that is
// not .yml or .yaml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Bundle is the shareable form of learned state.
type Bundle struct {
	ExportedAt  time.Time    `json:"exported_at" yaml:"exported_at"`
	Patterns    []Pattern    `json:"patterns" yaml:"patterns"`
	Corrections []Correction `json:"corrections,omitempty" yaml:"corrections,omitempty"`
}

// Export writes every pattern and the correction history to w.
func (m *Memory) Export(w io.Writer, format Format) error {
	bundle := Bundle{
		ExportedAt:  m.now().UTC(),
		Patterns:    m.Patterns(),
		Corrections: m.Corrections(),
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(bundle); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(bundle); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return services.Wrap(services.ErrValidation, "patterns", "export", fmt.Sprintf("unsupported format %q", format), nil)
	}
}

// Import merges a bundle into memory. Imported patterns replace existing ones
// with the same key; corrections are appended. It returns the number of
// patterns imported.
func (m *Memory) Import(r io.Reader, format Format) (int, error) {
	var bundle Bundle
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&bundle); err != nil {
			return 0, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&bundle); err != nil {
			return 0, fmt.Errorf("decode json: %w", err)
		}
	default:
		return 0, services.Wrap(services.ErrValidation, "patterns", "import", fmt.Sprintf("unsupported format %q", format), nil)
	}

	for i, p := range bundle.Patterns {
		if err := validatePattern(p); err != nil {
			return 0, services.Wrap(services.ErrValidation, "patterns", "import", fmt.Sprintf("pattern %d", i), err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prevPatterns := maps.Clone(m.patterns)
	prevCorrections := m.corrections
	for _, p := range bundle.Patterns {
		m.patterns[p.Key] = p
	}
	for _, c := range bundle.Corrections {
		m.corrections = appendBounded(m.corrections, c)
	}
	if err := m.save(); err != nil {
		m.patterns = prevPatterns
		m.corrections = prevCorrections
		return 0, fmt.Errorf("persist patterns: %w", err)
	}
	return len(bundle.Patterns), nil
}

func validatePattern(p Pattern) error {
	if strings.TrimSpace(p.Key) == "" {
		return errEmptyKey
	}
	if _, ok := risk.ParseAction(string(p.Action)); !ok {
		return fmt.Errorf("unknown action %q", p.Action)
	}
	if p.Count < 0 {
		return fmt.Errorf("negative count %d", p.Count)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", p.Confidence)
	}
	return nil
}
