// Package dupes finds files with identical content. Files are bucketed by
// size first so only same-size candidates are hashed.
package dupes

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"sift/internal/fileutil"
	"sift/internal/logging"
	"sift/internal/risk"
	"sift/internal/scan"
)

// RedundantContext is the context hint given to every copy after the first
// in a group.
const RedundantContext = 0.9

// Group is a set of files sharing one content hash. Files[0] is the copy to
// keep: the oldest, ties broken by path.
type Group struct {
	Hash  string                `json:"hash"`
	Size  int64                 `json:"size"`
	Files []scan.FileDescriptor `json:"files"`
}

// Wasted is the space the redundant copies occupy.
func (g Group) Wasted() int64 {
	if len(g.Files) < 2 {
		return 0
	}
	return g.Size * int64(len(g.Files)-1)
}

// Options tunes Find.
type Options struct {
	Workers int
	// MinSize skips files smaller than this many bytes. Empty files are
	// always skipped.
	MinSize int64
	Logger  *slog.Logger
}

// Find groups files by content. Remote and missing descriptors are ignored,
// and files that cannot be read are logged and left out.
func Find(ctx context.Context, files []scan.FileDescriptor, opts Options) ([]Group, error) {
	logger := logging.NewComponentLogger(opts.Logger, "dupes")
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	bySize := make(map[int64][]scan.FileDescriptor)
	for _, f := range files {
		if f.Remote || f.Missing || f.Size == 0 || f.Size < opts.MinSize {
			continue
		}
		bySize[f.Size] = append(bySize[f.Size], f)
	}

	var (
		mu     sync.Mutex
		byHash = make(map[string][]scan.FileDescriptor)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, candidates := range bySize {
		if len(candidates) < 2 {
			continue
		}
		for _, f := range candidates {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				sum, err := fileutil.HashFile(f.Path)
				if err != nil {
					logger.Warn("hash failed; file excluded from duplicate check",
						logging.String(logging.FieldEventType, "dupes_hash_failed"),
						logging.String(logging.FieldPath, f.Path),
						logging.Error(err),
						logging.String(logging.FieldImpact, "file not considered for duplicates"),
						logging.String(logging.FieldErrorHint, "check file permissions"),
					)
					return nil
				}
				mu.Lock()
				byHash[sum] = append(byHash[sum], f)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var groups []Group
	for sum, members := range byHash {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if !members[i].ModTime.Equal(members[j].ModTime) {
				return members[i].ModTime.Before(members[j].ModTime)
			}
			return members[i].Path < members[j].Path
		})
		groups = append(groups, Group{Hash: sum, Size: members[0].Size, Files: members})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Wasted() != groups[j].Wasted() {
			return groups[i].Wasted() > groups[j].Wasted()
		}
		return groups[i].Files[0].Path < groups[j].Files[0].Path
	})

	logger.Debug("duplicate scan complete",
		logging.String(logging.FieldEventType, "dupes_complete"),
		logging.Int("candidates", len(files)),
		logging.Int("groups", len(groups)),
	)
	return groups, nil
}

// ApplyHints returns files with the redundant-copy context hint set on every
// non-first member of a group. The input slice is not modified.
func ApplyHints(files []scan.FileDescriptor, groups []Group) []scan.FileDescriptor {
	redundant := make(map[string]bool)
	for _, g := range groups {
		for _, f := range g.Files[1:] {
			redundant[f.Path] = true
		}
	}
	out := make([]scan.FileDescriptor, len(files))
	for i, f := range files {
		if redundant[f.Path] {
			f = f.WithHint(string(risk.DimensionContext), RedundantContext)
		}
		out[i] = f
	}
	return out
}
