// Package scan enumerates files into immutable FileDescriptor snapshots.
//
// Walk applies the configured filters (recursion, hidden entries, extension
// allow-list, size window, file cap) and Describe stats a single path. A path
// that cannot be stat'ed still yields a descriptor with Missing set so the
// scorer can degrade instead of failing.
package scan
