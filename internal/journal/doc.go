// Package journal keeps an append-only SQLite audit trail of pattern
// corrections, destination feedback and organizer runs.
//
// The ledger and pattern memory remain the sources of truth; the journal
// answers "what happened when" questions across runs and survives history
// clears. Schema changes ship as numbered files under migrations/ and are
// applied in order on Open.
package journal
