package remote

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/services"
)

// S3Config holds connection settings for an S3-compatible store.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3ConfigFromConfig translates the [remote] section.
func S3ConfigFromConfig(cfg config.Remote) S3Config {
	return S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	}
}

// S3Adapter implements Adapter against one bucket.
type S3Adapter struct {
	client     *minio.Client
	bucketName string
	logger     *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewS3Adapter validates cfg and builds the client. No request is made until
// the first operation.
func NewS3Adapter(cfg S3Config, logger *slog.Logger) (*S3Adapter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "init", "s3 endpoint is required", nil)
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "init", "s3 access key and secret key are required", nil)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "init", "s3 bucket is required", nil)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "init", "create s3 client", err)
	}

	return &S3Adapter{
		client:     client,
		bucketName: bucket,
		logger:     logging.NewComponentLogger(logger, "remote"),
	}, nil
}

// ensureBucket checks the bucket once it has been seen to exist. Failures
// are not cached so a transient outage does not poison the adapter.
func (s *S3Adapter) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return classify("check bucket", err)
	}
	if !exists {
		return services.Wrap(services.ErrNotFound, "remote", "check bucket", fmt.Sprintf("bucket %q does not exist", s.bucketName), nil)
	}
	s.ready = true
	return nil
}

// Move copies the object into folderID and removes the original.
func (s *S3Adapter) Move(ctx context.Context, fileID, folderID string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if _, err := s.client.StatObject(ctx, s.bucketName, fileID, minio.StatObjectOptions{}); err != nil {
		return classify("move", err)
	}
	dst := MovedKey(fileID, folderID)
	if dst == fileID {
		return nil
	}
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucketName, Object: dst},
		minio.CopySrcOptions{Bucket: s.bucketName, Object: fileID},
	)
	if err != nil {
		return classify("move", err)
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, fileID, minio.RemoveObjectOptions{}); err != nil {
		return classify("move", err)
	}
	s.logger.Debug("remote object moved",
		logging.String(logging.FieldPath, fileID),
		logging.String("destination", dst),
	)
	return nil
}

// Delete removes the object. A missing object is reported as not found.
func (s *S3Adapter) Delete(ctx context.Context, fileID string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if _, err := s.client.StatObject(ctx, s.bucketName, fileID, minio.StatObjectOptions{}); err != nil {
		return classify("delete", err)
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, fileID, minio.RemoveObjectOptions{}); err != nil {
		return classify("delete", err)
	}
	return nil
}

// CreateFolder writes a folder marker and returns its id.
func (s *S3Adapter) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	key := FolderKey(parentID, name)
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(nil), 0, minio.PutObjectOptions{
		ContentType: "application/x-directory",
	})
	if err != nil {
		return "", classify("create folder", err)
	}
	return key, nil
}

// ListFolders returns every folder whose name equals query, sorted by id.
// An empty query lists all folders.
func (s *S3Adapter) ListFolders(ctx context.Context, query string) ([]Folder, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	var folders []Folder
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, classify("list folders", obj.Err)
		}
		folder, ok := folderFromKey(obj.Key)
		if !ok {
			continue
		}
		if query != "" && folder.Name != query {
			continue
		}
		folders = append(folders, folder)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
	return folders, nil
}

func classify(operation string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return services.Wrap(services.ErrNotFound, "remote", operation, resp.Message, err)
	}
	return services.Wrap(services.ErrExecutionFailed, "remote", operation, "", err)
}
