// Package preflight provides readiness checks for the paths and services
// sift depends on.
//
// The CLI "sift doctor" command prints every result. siftd runs the same
// checks at startup and logs failures so a misconfigured root or an
// unreachable bucket shows up before the first scheduled pass.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
