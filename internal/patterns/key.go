package patterns

import (
	"path/filepath"
	"strings"

	"sift/internal/fileutil"
)

const keyPrefixLength = 10

// Key derives the pattern key for a file reference.
func Key(file string) string {
	stem, ext := fileutil.SplitExt(filepath.Base(file))
	runes := []rune(stem)
	if len(runes) > keyPrefixLength {
		runes = runes[:keyPrefixLength]
	}
	return strings.ToLower(ext) + ":" + string(runes)
}

// confidenceFor is the saturating heuristic applied after every count change.
func confidenceFor(count int) float64 {
	return min(0.99, 0.5+float64(count)*0.1)
}
