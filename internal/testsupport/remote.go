package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sift/internal/remote"
	"sift/internal/services"
)

// FakeRemote is an in-memory remote.Adapter. Objects and folders are keyed
// the same way the S3 adapter keys them.
type FakeRemote struct {
	mu      sync.Mutex
	objects map[string]struct{}
	folders map[string]remote.Folder
	calls   map[string]int

	// Delay is applied before every call and honours context cancellation.
	Delay time.Duration
	// FailOn makes the named operation return an execution error.
	FailOn map[string]bool
}

// NewFakeRemote returns a fake holding the given object keys.
func NewFakeRemote(objects ...string) *FakeRemote {
	f := &FakeRemote{
		objects: make(map[string]struct{}),
		folders: make(map[string]remote.Folder),
		calls:   make(map[string]int),
		FailOn:  make(map[string]bool),
	}
	for _, o := range objects {
		f.objects[o] = struct{}{}
	}
	return f
}

// Has reports whether key exists.
func (f *FakeRemote) Has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

// Calls returns how many times operation was invoked.
func (f *FakeRemote) Calls(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[operation]
}

func (f *FakeRemote) enter(ctx context.Context, operation string) error {
	f.mu.Lock()
	f.calls[operation]++
	fail := f.FailOn[operation]
	delay := f.Delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return services.Wrap(services.ErrExecutionFailed, "fake-remote", operation, "injected failure", nil)
	}
	return nil
}

func (f *FakeRemote) Move(ctx context.Context, fileID, folderID string) error {
	if err := f.enter(ctx, "move"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[fileID]; !ok {
		return services.Wrap(services.ErrNotFound, "fake-remote", "move", fileID, nil)
	}
	delete(f.objects, fileID)
	f.objects[remote.MovedKey(fileID, folderID)] = struct{}{}
	return nil
}

func (f *FakeRemote) Delete(ctx context.Context, fileID string) error {
	if err := f.enter(ctx, "delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[fileID]; !ok {
		return services.Wrap(services.ErrNotFound, "fake-remote", "delete", fileID, nil)
	}
	delete(f.objects, fileID)
	return nil
}

func (f *FakeRemote) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if err := f.enter(ctx, "create_folder"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := remote.FolderKey(parentID, name)
	if _, exists := f.folders[key]; exists {
		return "", fmt.Errorf("folder %q already exists", key)
	}
	f.folders[key] = remote.Folder{ID: key, Name: name, ParentID: parentID}
	return key, nil
}

func (f *FakeRemote) ListFolders(ctx context.Context, query string) ([]remote.Folder, error) {
	if err := f.enter(ctx, "list_folders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remote.Folder
	for _, folder := range f.folders {
		if query == "" || folder.Name == query {
			out = append(out, folder)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
