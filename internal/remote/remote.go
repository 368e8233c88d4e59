// Package remote defines the object store operations the executor needs and
// an S3-compatible implementation built on minio-go.
//
// Files are addressed by object key. Folders are zero-byte marker objects
// whose keys end in "/"; a folder id is that key, and the bucket root is the
// empty id.
package remote

import (
	"context"
	"path"
	"strings"
)

// Folder is a named container in the remote store.
type Folder struct {
	ID       string
	Name     string
	ParentID string
}

// Adapter is the remote store contract used by the executor.
type Adapter interface {
	Move(ctx context.Context, fileID, folderID string) error
	Delete(ctx context.Context, fileID string) error
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	ListFolders(ctx context.Context, query string) ([]Folder, error)
}

// FolderKey builds the marker key for name under parentID.
func FolderKey(parentID, name string) string {
	name = strings.Trim(name, "/")
	if parentID == "" {
		return name + "/"
	}
	return strings.TrimSuffix(parentID, "/") + "/" + name + "/"
}

// MovedKey returns the key fileID has after moving into folderID.
func MovedKey(fileID, folderID string) string {
	base := path.Base(fileID)
	if folderID == "" {
		return base
	}
	return strings.TrimSuffix(folderID, "/") + "/" + base
}

// folderFromKey splits a marker key into its folder description.
func folderFromKey(key string) (Folder, bool) {
	if !strings.HasSuffix(key, "/") {
		return Folder{}, false
	}
	trimmed := strings.TrimSuffix(key, "/")
	if trimmed == "" {
		return Folder{}, false
	}
	parent := ""
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		parent = trimmed[:idx+1]
	}
	return Folder{ID: key, Name: path.Base(trimmed), ParentID: parent}, true
}
