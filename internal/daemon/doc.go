// Package daemon runs organizer passes on a cron schedule as a single
// long-lived process.
//
// An exclusive flock on the data directory keeps a second instance from
// starting. Scheduled passes never overlap: a tick that arrives while the
// previous pass is still running is skipped. Stop cancels the in-progress
// pass between files and waits for it to return.
package daemon
