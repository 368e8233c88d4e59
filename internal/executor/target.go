package executor

import (
	"context"
	"strings"
)

// Target performs file operations for one address space.
type Target interface {
	Kind() string
	// ResolveFolder maps a destination folder to the id operations accept.
	// A missing folder yields services.ErrNotFound.
	ResolveFolder(ctx context.Context, folder string) (string, error)
	// CreateFolder makes folder usable and returns its id.
	CreateFolder(ctx context.Context, folder string) (string, error)
	// Move and Copy return the reference of the file at its new location.
	Move(ctx context.Context, ref, folderID string) (string, error)
	Copy(ctx context.Context, ref, folderID string) (string, error)
	// Delete removes ref and records the ledger entry itself, because a local
	// delete must claim its snapshot in the same step. It returns the action id.
	Delete(ctx context.Context, ref string, metadata map[string]string) (int, error)
}

// targetFor picks the target for a file reference. It is the only place the
// address scheme is inspected.
func (r *Router) targetFor(ref string) (Target, bool) {
	if r.scheme != "" && strings.HasPrefix(ref, r.scheme) {
		if r.remote == nil {
			return nil, false
		}
		return r.remote, true
	}
	return r.local, true
}
