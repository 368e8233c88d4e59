// Package risk scores files across nine weighted dimensions and maps the
// result to a tier and a recommended action.
//
// Confidence is a deletion-safety measure: low confidence means the file is
// a strong deletion candidate and lands in the CRITICAL tier, high confidence
// means it should be kept. The scoring tables live in a Profile handed to
// NewScorer so callers can swap or override them from configuration.
package risk
