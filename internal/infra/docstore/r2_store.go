package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/ai-notesum/internal/domain/note"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
	"github.com/yanqian/ai-notesum/pkg/util"
)

// R2Store stores notes in Cloudflare R2 via the S3-compatible API.
type R2Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewR2Store constructs the storage adapter.
func NewR2Store(endpoint, accessKey, secretKey, bucket, region string, logger *slog.Logger) (*R2Store, error) {
	cleanEndpoint := sanitizeEndpoint(endpoint)
	useSSL := strings.HasPrefix(strings.ToLower(endpoint), "https")
	client, err := minio.New(cleanEndpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init r2 client: %w", err)
	}
	return &R2Store{client: client, bucket: bucket, logger: logger.With("component", "docstore.r2")}, nil
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

// Get implements note.Repository.
func (s *R2Store) Get(ctx context.Context, id string) (note.Note, error) {
	if err := note.ValidateID(id); err != nil {
		return note.Note{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return note.Note{}, s.readError(id, err)
	}
	defer obj.Close()
	payload, err := io.ReadAll(obj)
	if err != nil {
		return note.Note{}, s.readError(id, err)
	}
	var n note.Note
	if err := json.Unmarshal(payload, &n); err != nil {
		return note.Note{}, apperrors.Wrap(apperrors.CodeStorageError, "stored document is corrupt", err)
	}
	return n, nil
}

// Put implements note.Repository.
func (s *R2Store) Put(ctx context.Context, n note.Note) error {
	if err := note.ValidateID(n.ID); err != nil {
		return err
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = util.NowUTC()
	}
	if err := s.ensureBucket(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "document bucket unavailable", err)
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to encode document", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectKey(n.ID), bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType:      "application/json",
		DisableMultipart: true,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to save document", err)
	}
	s.logger.Debug("document stored", "id", n.ID, "bytes", len(payload))
	return nil
}

func (s *R2Store) readError(id string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return note.NotFound(id)
	}
	return apperrors.Wrap(apperrors.CodeStorageError, "failed to load document", err)
}

func objectKey(id string) string {
	return "notes/" + id + ".json"
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

var _ note.Repository = (*R2Store)(nil)
