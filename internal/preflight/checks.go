package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"sift/internal/remote"
	"sift/internal/services"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRoot verifies a daemon root is a directory sift can list and modify.
func CheckRoot(path string) Result {
	result := CheckDirectoryAccess("Root", path)
	if result.Passed {
		result.Detail = fmt.Sprintf("%s (ok)", path)
	}
	return result
}

// CheckDaemonLock reports whether a siftd instance currently holds the lock.
// Both states pass; the check is informational.
func CheckDaemonLock(path string) Result {
	const name = "Daemon"
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Passed: true, Detail: "not running"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("lock check failed (%v)", err)}
	}
	if !locked {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("running (lock held at %s)", path)}
	}
	_ = lock.Unlock()
	return Result{Name: name, Passed: true, Detail: "not running"}
}

// CheckRemote verifies the object store answers a folder listing within timeout.
func CheckRemote(ctx context.Context, adapter remote.Adapter, timeout time.Duration) Result {
	const name = "Remote store"
	if adapter == nil {
		return Result{Name: name, Detail: "enabled but no adapter could be created"}
	}

	checkCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	folders, err := adapter.ListFolders(checkCtx, "")
	if err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d folder(s))", len(folders))}
}

// summarizeRemoteError produces a human-readable summary for remote check failures.
func summarizeRemoteError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		return "check timed out (object store unresponsive)"
	case errors.Is(err, services.ErrNotFound):
		return fmt.Sprintf("bucket missing (%v)", err)
	default:
		return err.Error()
	}
}
