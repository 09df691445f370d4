// Package s3store is an optional ContentStore backend for operators who
// want SS file bytes kept on an S3-compatible bucket instead of local disk.
// It implements the exact same interface and atomicity contract as
// diskstore's write-to-temp-then-rename, with one documented limitation: S3
// has no atomic rename, so Move is a copy-then-delete sequence instead of
// a single filesystem syscall.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/marmos91/dfs/pkg/dataplane/store"
)

// Config configures the S3-backed content store for one storage server.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // non-empty selects an S3-compatible endpoint (MinIO, Localstack)
	AccessKeyID     string
	SecretAccessKey string

	// SSID namespaces every object key under "<ss-id>/...", mirroring
	// diskstore's per-SS directory.
	SSID string
}

// Store is an S3-backed ContentStore.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an S3 client from cfg and verifies bucket access.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("s3store: access bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.SSID + "/"}, nil
}

func (s *Store) key(path string) string {
	return s.prefix + path
}

func (s *Store) checkpointKey(path, tag string) string {
	return s.prefix + "checkpoints/" + path + "." + tag
}

func (s *Store) backupKey(path string) string {
	return s.prefix + ".backup/" + path
}

func (s *Store) stagedBackupKey(path string) string {
	return s.prefix + ".backup/" + path + ".staged"
}

func (s *Store) undoFlagKey(path string) string {
	return s.prefix + ".backup/" + path + ".undo-used"
}

func isNotFound(err error) bool {
	var nf *smithyhttp.ResponseError
	if errors.As(err, &nf) {
		return nf.HTTPStatusCode() == 404
	}
	var noSuchKey *s3.NoSuchKey
	return errors.As(err, &noSuchKey)
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *Store) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *Store) deleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	return err
}

func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	return s.getObject(ctx, s.key(path))
}

// WriteAtomic has no true atomic primitive on S3: PutObject itself is the
// unit of atomicity (a reader never observes a partial object), which is
// the closest available equivalent to diskstore's rename.
func (s *Store) WriteAtomic(ctx context.Context, path string, data []byte) error {
	return s.putObject(ctx, s.key(path), data)
}

func (s *Store) Stat(ctx context.Context, path string) (store.Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(path))})
	if err != nil {
		if isNotFound(err) {
			return store.Info{}, store.ErrNotFound
		}
		return store.Info{}, err
	}
	info := store.Info{}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	if _, err := s.Stat(ctx, path); err != nil {
		return err
	}
	return s.deleteObject(ctx, s.key(path))
}

// CreateFolder is a no-op: S3 has no directories, only key prefixes, and an
// object written under a prefix materialises it implicitly.
func (s *Store) CreateFolder(ctx context.Context, path string) error {
	return nil
}

// Move fakes a rename with copy-then-delete, since S3 objects cannot be
// renamed in place.
func (s *Store) Move(ctx context.Context, oldPath, newPath string) error {
	data, err := s.Read(ctx, oldPath)
	if err != nil {
		return err
	}
	if err := s.putObject(ctx, s.key(newPath), data); err != nil {
		return err
	}
	return s.deleteObject(ctx, s.key(oldPath))
}

func (s *Store) Checkpoint(ctx context.Context, path, tag string) error {
	data, err := s.Read(ctx, path)
	if err != nil {
		return err
	}
	return s.putObject(ctx, s.checkpointKey(path, tag), data)
}

func (s *Store) ReadCheckpoint(ctx context.Context, path, tag string) ([]byte, error) {
	return s.getObject(ctx, s.checkpointKey(path, tag))
}

func (s *Store) RestoreCheckpoint(ctx context.Context, path, tag string) error {
	data, err := s.ReadCheckpoint(ctx, path, tag)
	if err != nil {
		return err
	}
	return s.WriteAtomic(ctx, path, data)
}

func (s *Store) ListCheckpoints(ctx context.Context, path string) ([]string, error) {
	prefix := s.checkpointKey(path, "")
	var tags []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			tags = append(tags, strings.TrimPrefix(*obj.Key, prefix))
		}
	}
	return tags, nil
}

// ListFiles enumerates every live object under the SS prefix, skipping the
// checkpoints and backup namespaces.
func (s *Store) ListFiles(ctx context.Context) ([]string, error) {
	var files []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(*obj.Key, s.prefix)
			if strings.HasPrefix(rel, "checkpoints/") || strings.HasPrefix(rel, ".backup/") {
				continue
			}
			files = append(files, rel)
		}
	}
	return files, nil
}

func (s *Store) StageBackup(ctx context.Context, path string, data []byte) error {
	return s.putObject(ctx, s.stagedBackupKey(path), data)
}

func (s *Store) CommitBackup(ctx context.Context, path string) error {
	data, err := s.getObject(ctx, s.stagedBackupKey(path))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.putObject(ctx, s.backupKey(path), data); err != nil {
		return err
	}
	if err := s.deleteObject(ctx, s.stagedBackupKey(path)); err != nil {
		return err
	}
	return s.deleteObject(ctx, s.undoFlagKey(path))
}

func (s *Store) Undo(ctx context.Context, path string) error {
	if _, err := s.getObject(ctx, s.undoFlagKey(path)); err == nil {
		return store.ErrUndoUnavailable
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	current, err := s.Read(ctx, path)
	if err != nil {
		return err
	}
	backup, err := s.getObject(ctx, s.backupKey(path))
	if err != nil {
		return err
	}

	if err := s.putObject(ctx, s.backupKey(path), current); err != nil {
		return err
	}
	if err := s.WriteAtomic(ctx, path, backup); err != nil {
		return err
	}
	return s.putObject(ctx, s.undoFlagKey(path), []byte{1})
}

func (s *Store) Close() error {
	return nil
}

var _ store.ContentStore = (*Store)(nil)
