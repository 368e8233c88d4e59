// Package logs tails sift's log file for the CLI.
//
// Reads use bounded memory: Last keeps a ring of the newest lines and Follow
// polls from a byte offset, so a large sift.log never has to be loaded whole.
// Follow stops when its context is cancelled.
package logs
