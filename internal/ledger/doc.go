// Package ledger keeps the append-only record of executed file actions and
// reverses them on request.
//
// Entries are stored as one JSON document rewritten atomically after every
// change. Writers are linearized by a mutex inside the process and by a file
// lock across processes, so the CLI and the daemon can share one ledger. Ids
// are monotonic and never reused, even after history is cleared.
//
// Local deletions are made reversible by snapshotting the file into the
// backup area before removal; the snapshot is named action_<id>_<basename>
// once the entry is recorded.
package ledger
