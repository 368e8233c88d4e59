// Package organizer runs the end-to-end pass over a directory: enumerate,
// optionally flag duplicates, decide in parallel, execute through the router,
// then journal and announce the summary.
//
// Build wires every collaborator from config so the CLI and daemon share one
// construction path. Per-file failures are carried in the report; only setup
// problems (unreadable root, cancelled context) abort a run.
package organizer
