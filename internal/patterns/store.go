package patterns

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"

	"sift/internal/fileutil"
)

const documentVersion = 1

type document struct {
	Version     int          `json:"version"`
	Patterns    []Pattern    `json:"patterns"`
	Corrections []Correction `json:"corrections,omitempty"`
	Feedback    []Feedback   `json:"feedback,omitempty"`
}

// load reads the pattern file from disk into memory.
func (m *Memory) load() error {
	if m.path == "" {
		return nil
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read patterns file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse patterns file: %w", err)
	}
	for _, p := range doc.Patterns {
		if p.Key == "" {
			continue
		}
		m.patterns[p.Key] = p
	}
	m.corrections = doc.Corrections
	m.feedback = doc.Feedback
	return nil
}

// save writes the whole collection atomically. Caller must hold the write lock.
func (m *Memory) save() error {
	if m.path == "" {
		return nil
	}
	doc := document{
		Version:     documentVersion,
		Patterns:    make([]Pattern, 0, len(m.patterns)),
		Corrections: m.corrections,
		Feedback:    m.feedback,
	}
	for _, key := range slices.Sorted(maps.Keys(m.patterns)) {
		doc.Patterns = append(doc.Patterns, m.patterns[key])
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode patterns: %w", err)
	}
	return fileutil.WriteFileAtomic(m.path, data, 0o644)
}
