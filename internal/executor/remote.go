package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"sift/internal/ledger"
	"sift/internal/logging"
	"sift/internal/remote"
	"sift/internal/services"
)

// remoteTarget drives a remote.Adapter. Folder ids are cached by path so a
// batch moving into the same folder lists it once.
type remoteTarget struct {
	adapter remote.Adapter
	scheme  string
	timeout time.Duration
	folders *lru.Cache[string, string]
	book    *ledger.Ledger
	logger  *slog.Logger
}

func newRemoteTarget(adapter remote.Adapter, book *ledger.Ledger, scheme string, timeout time.Duration, cacheSize int, logger *slog.Logger) (*remoteTarget, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "executor", "folder cache", "", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &remoteTarget{
		adapter: adapter,
		scheme:  scheme,
		timeout: timeout,
		folders: cache,
		book:    book,
		logger:  logger,
	}, nil
}

func (t *remoteTarget) Kind() string { return "remote" }

// id strips the scheme from a reference.
func (t *remoteTarget) id(ref string) string {
	return strings.Trim(strings.TrimPrefix(ref, t.scheme), "/")
}

// call runs fn with its own deadline, independent of the caller's cancellation.
func (t *remoteTarget) call(ctx context.Context, op string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()
	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "executor", op, fmt.Sprintf("remote call exceeded %s", t.timeout), err)
	}
	if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrExecutionFailed) {
		return err
	}
	return services.Wrap(services.ErrExecutionFailed, "executor", op, "remote call failed", err)
}

func segments(folder string) []string {
	var out []string
	for _, part := range strings.Split(folder, "/") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// lookup finds name under parent, consulting the cache first.
func (t *remoteTarget) lookup(ctx context.Context, parent, name string) (string, bool, error) {
	cacheKey := remote.FolderKey(parent, name)
	if id, ok := t.folders.Get(cacheKey); ok {
		return id, true, nil
	}
	var found []remote.Folder
	err := t.call(ctx, "list folders", func(c context.Context) error {
		var err error
		found, err = t.adapter.ListFolders(c, name)
		return err
	})
	if err != nil {
		return "", false, err
	}
	for _, f := range found {
		if f.Name == name && f.ParentID == parent {
			t.folders.Add(cacheKey, f.ID)
			return f.ID, true, nil
		}
	}
	return "", false, nil
}

func (t *remoteTarget) ResolveFolder(ctx context.Context, folder string) (string, error) {
	parent := ""
	for _, name := range segments(t.id(folder)) {
		id, ok, err := t.lookup(ctx, parent, name)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", services.Wrap(services.ErrNotFound, "executor", "resolve folder", folder, nil)
		}
		parent = id
	}
	return parent, nil
}

// CreateFolder creates every missing segment of folder.
func (t *remoteTarget) CreateFolder(ctx context.Context, folder string) (string, error) {
	parent := ""
	for _, name := range segments(t.id(folder)) {
		id, ok, err := t.lookup(ctx, parent, name)
		if err != nil {
			return "", err
		}
		if !ok {
			err = t.call(ctx, "create folder", func(c context.Context) error {
				var err error
				id, err = t.adapter.CreateFolder(c, name, parent)
				return err
			})
			if err != nil {
				return "", err
			}
			t.folders.Add(remote.FolderKey(parent, name), id)
			t.logger.Debug("remote folder created",
				logging.String(logging.FieldEventType, "remote_folder_created"),
				logging.String("folder", id),
			)
		}
		parent = id
	}
	return parent, nil
}

func (t *remoteTarget) Move(ctx context.Context, ref, folderID string) (string, error) {
	fileID := t.id(ref)
	err := t.call(ctx, "move", func(c context.Context) error {
		return t.adapter.Move(c, fileID, folderID)
	})
	if err != nil {
		return "", err
	}
	return t.scheme + remote.MovedKey(fileID, folderID), nil
}

func (t *remoteTarget) Copy(context.Context, string, string) (string, error) {
	return "", services.Wrap(services.ErrExecutionFailed, "executor", "copy", "remote copy is not supported", nil)
}

func (t *remoteTarget) Delete(ctx context.Context, ref string, metadata map[string]string) (int, error) {
	fileID := t.id(ref)
	err := t.call(ctx, "delete", func(c context.Context) error {
		return t.adapter.Delete(c, fileID)
	})
	if err != nil {
		return 0, err
	}
	id, err := t.book.Record(ledger.Entry{Type: ledger.ActionDelete, Source: ref, Remote: true, Metadata: metadata})
	if err != nil {
		return 0, services.Wrap(services.ErrExecutionFailed, "executor", "delete", "remote object deleted but not recorded", err)
	}
	return id, nil
}
