package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hoony8355/searcap/internal/models"
)

// Sink receives capture images. The production implementation is the
// S3-compatible Store; dry runs use LocalDir instead.
type Sink interface {
	PutCapture(ctx context.Context, rec *models.CaptureRecord, data []byte) (key string, url string, err error)
}

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

// Store uploads capture images to an S3-compatible bucket.
type Store struct {
	client     *minio.Client
	bucket     string
	publicBase string
	useSSL     bool
	endpoint   string
	logger     *slog.Logger
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &Store{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		useSSL:     cfg.UseSSL,
		endpoint:   cfg.Endpoint,
		logger:     slog.Default().With("component", "objectstore"),
	}, nil
}

func (s *Store) PutCapture(ctx context.Context, rec *models.CaptureRecord, data []byte) (string, string, error) {
	key := ObjectKey(rec)

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.Info("capture uploaded", "key", key, "bytes", len(data))
	return key, s.publicURL(key), nil
}

func (s *Store) publicURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, key)
}

// ObjectKey builds the storage key for a capture record:
// captures/<surface>/<yyyy/mm/dd>/<keyword-slug>/<id>.png
func ObjectKey(rec *models.CaptureRecord) string {
	return fmt.Sprintf("captures/%s/%s/%s/%s.png",
		rec.Surface,
		rec.CreatedAt.Format("2006/01/02"),
		Slug(rec.Keyword),
		rec.ID,
	)
}

// Slug normalizes a search keyword into a key-safe path segment. Korean
// letters are kept as-is; runs of anything else collapse to a dash.
func Slug(keyword string) string {
	var b strings.Builder
	dash := false

	for _, r := range strings.ToLower(strings.TrimSpace(keyword)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteRune('-')
			dash = true
		}
	}

	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "keyword"
	}
	return out
}
