// Package backup stores snapshots of the theme template taken before writes.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

// LocalStore writes snapshots below a directory on disk.
type LocalStore struct {
	dir    string
	logger *slog.Logger
}

// NewLocalStore constructs a store rooted at dir.
func NewLocalStore(dir string, logger *slog.Logger) *LocalStore {
	return &LocalStore{dir: dir, logger: logger.With("component", "backup.local")}
}

// Save writes the snapshot to dir/key, creating parent directories.
func (s *LocalStore) Save(_ context.Context, key string, snapshot []byte) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create backup directory", err)
	}
	if err := os.WriteFile(target, snapshot, 0o644); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "write backup file", err)
	}
	s.logger.Debug("backup written", slog.String("path", target), slog.Int("bytes", len(snapshot)))
	return nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("backup key %q escapes the backup directory", key), nil)
	}
	return filepath.Join(s.dir, clean), nil
}

type assetWriter interface {
	PutAsset(ctx context.Context, key, value string) error
}

// AssetStore writes snapshots back into the theme as sibling assets.
type AssetStore struct {
	assets assetWriter
}

// NewAssetStore constructs a store that uploads snapshots through assets.
func NewAssetStore(assets assetWriter) *AssetStore {
	return &AssetStore{assets: assets}
}

// Save uploads the snapshot as a theme asset named key.
func (s *AssetStore) Save(ctx context.Context, key string, snapshot []byte) error {
	if err := s.assets.PutAsset(ctx, key, string(snapshot)); err != nil {
		return fmt.Errorf("backup: upload asset %s: %w", key, err)
	}
	return nil
}

// R2Config holds the S3-compatible bucket settings.
type R2Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
}

// R2Store stores snapshots in Cloudflare R2 via the S3-compatible API.
type R2Store struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewR2Store constructs the R2 adapter.
func NewR2Store(cfg R2Config, logger *slog.Logger) (*R2Store, error) {
	client, err := minio.New(sanitizeEndpoint(cfg.Endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       !strings.HasPrefix(strings.ToLower(strings.TrimSpace(cfg.Endpoint)), "http://"),
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init r2 client: %w", err)
	}
	return &R2Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger.With("component", "backup.r2"),
	}, nil
}

// Save uploads the snapshot as a single-part object.
func (s *R2Store) Save(ctx context.Context, key string, snapshot []byte) error {
	if err := s.ensureBucket(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "prepare backup bucket", err)
	}
	object := s.objectKey(key)
	info, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(snapshot), int64(len(snapshot)), minio.PutObjectOptions{
		ContentType:      "application/json",
		DisableMultipart: true,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "upload backup object", err)
	}
	s.logger.Debug("backup uploaded", slog.String("object", object), slog.String("etag", info.ETag))
	return nil
}

func (s *R2Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	return nil
}

func (s *R2Store) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// sanitizeEndpoint strips scheme and path, which minio.New rejects.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// MemoryStore keeps snapshots in memory.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	err       error
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

// FailWith makes every later Save return err.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Save records a copy of the snapshot.
func (s *MemoryStore) Save(_ context.Context, key string, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.snapshots[key] = bytes.Clone(snapshot)
	return nil
}

// Get returns the snapshot stored under key.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[key]
	return snapshot, ok
}

// Keys lists stored keys in lexical order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.snapshots))
	for k := range s.snapshots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
