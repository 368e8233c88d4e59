// Package patterns learns file-name-shape to action associations from human
// corrections and answers lookups for the decision combiner.
//
// A pattern key is the lower-cased extension plus the first ten characters of
// the base name. The cut is intentionally coarse so near-duplicate names
// collapse onto one pattern. Confidence saturates at 0.99 as corrections
// accumulate and decays lazily at read time once a pattern has been idle for
// more than thirty days; decayed values are never persisted.
package patterns
