package scan

import (
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sift/internal/fileutil"
)

// FileDescriptor is a point-in-time snapshot of a file or remote object.
type FileDescriptor struct {
	Path      string             `json:"path"`
	Remote    bool               `json:"remote,omitempty"`
	Size      int64              `json:"size"`
	ModTime   time.Time          `json:"mod_time"`
	Extension string             `json:"extension"`
	Missing   bool               `json:"missing,omitempty"`
	Hints     map[string]float64 `json:"hints,omitempty"`
}

// Name returns the base name of the file.
func (f FileDescriptor) Name() string {
	return filepath.Base(f.Path)
}

// Hint returns an externally supplied dimension value.
func (f FileDescriptor) Hint(dimension string) (float64, bool) {
	if f.Hints == nil {
		return 0, false
	}
	value, ok := f.Hints[dimension]
	return value, ok
}

// WithHint returns a copy of f carrying the hint. The receiver is not modified.
func (f FileDescriptor) WithHint(dimension string, value float64) FileDescriptor {
	hints := make(map[string]float64, len(f.Hints)+1)
	maps.Copy(hints, f.Hints)
	hints[dimension] = value
	f.Hints = hints
	return f
}

// Describe stats path and returns its descriptor. Stat failures produce a
// descriptor with Missing set rather than an error.
func Describe(path string) FileDescriptor {
	desc := FileDescriptor{
		Path:      path,
		Extension: extensionOf(path),
	}
	info, err := os.Stat(path)
	if err != nil {
		desc.Missing = true
		return desc
	}
	desc.Size = info.Size()
	desc.ModTime = info.ModTime()
	return desc
}

// DescribeRemote builds a descriptor for a scheme-prefixed remote reference.
// Remote metadata is supplied by the caller; a zero modification time marks
// age as unknown.
func DescribeRemote(ref string, size int64, modTime time.Time) FileDescriptor {
	return FileDescriptor{
		Path:      ref,
		Remote:    true,
		Size:      size,
		ModTime:   modTime,
		Extension: extensionOf(ref),
	}
}

func fromInfo(path string, info os.FileInfo) FileDescriptor {
	return FileDescriptor{
		Path:      path,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Extension: extensionOf(path),
	}
}

func extensionOf(path string) string {
	_, ext := fileutil.SplitExt(filepath.Base(path))
	return strings.ToLower(ext)
}
