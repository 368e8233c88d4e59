// Package executor gates decisions on confidence and carries out the
// resulting file operations against the local filesystem or a remote object
// store, recording every completed action in the ledger.
//
// Execute never returns an error or panics; each call yields a Result whose
// Executed flag and Reason explain the outcome. Calls for the same file are
// serialized, and once an operation starts it is detached from the caller's
// cancellation so a half-finished move cannot be abandoned. Remote calls are
// bounded by a timeout and never retried.
package executor
