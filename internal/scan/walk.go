package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"sift/internal/config"
)

// Options controls enumeration.
type Options struct {
	Recursive     bool
	IncludeHidden bool
	// MaxFiles caps the number of descriptors returned. Zero means unlimited.
	MaxFiles   int
	Extensions []string
	// MinSize and MaxSize are byte bounds; zero disables the bound.
	MinSize int64
	MaxSize int64
}

// OptionsFromConfig translates the [scan] section into walk options.
func OptionsFromConfig(cfg config.Scan) Options {
	return Options{
		Recursive:     cfg.Recursive,
		IncludeHidden: cfg.IncludeHidden,
		MaxFiles:      cfg.MaxFiles,
		Extensions:    slices.Clone(cfg.Extensions),
		MinSize:       cfg.MinSizeKB * 1024,
		MaxSize:       cfg.MaxSizeKB * 1024,
	}
}

// Walk enumerates regular files under root in lexical order.
func Walk(ctx context.Context, root string, opts Options) ([]FileDescriptor, error) {
	root = filepath.Clean(root)
	var out []FileDescriptor

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path != root && !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && !opts.Recursive {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !opts.matchesExtension(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !opts.matchesSize(info.Size()) {
			return nil
		}
		out = append(out, fromInfo(path, info))
		if opts.MaxFiles > 0 && len(out) >= opts.MaxFiles {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return out, fmt.Errorf("walk %s: %w", root, err)
	}
	return out, nil
}

func (o Options) matchesExtension(path string) bool {
	if len(o.Extensions) == 0 {
		return true
	}
	ext := extensionOf(path)
	for _, allowed := range o.Extensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func (o Options) matchesSize(size int64) bool {
	if o.MinSize > 0 && size < o.MinSize {
		return false
	}
	if o.MaxSize > 0 && size > o.MaxSize {
		return false
	}
	return true
}
