// Package gcs stores uploaded blobs in a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrTransient marks failures worth retrying (5xx, 429, dropped
// connections). Everything else is returned unwrapped by this sentinel.
var ErrTransient = errors.New("transient storage failure")

type Store struct {
	client *storage.Client
	bucket string
}

// New builds a client from a service-account file, or from application
// default credentials when credentialsFile is empty.
func New(ctx context.Context, bucket, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client failed: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// object disables the SDK's own retries; callers run a single bounded retry
// loop around each call.
func (s *Store) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(key).Retryer(storage.WithPolicy(storage.RetryNever))
}

func (s *Store) Save(ctx context.Context, key, contentType string, data []byte) error {
	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = 0
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return classify("write object", err)
	}
	if err := w.Close(); err != nil {
		return classify("finalize object", err)
	}
	return nil
}

func (s *Store) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", classify("sign object url", err)
	}
	return url, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.object(key).Delete(ctx)
	if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return classify("delete object", err)
}

func (s *Store) Close() error {
	return s.client.Close()
}

func classify(op string, err error) error {
	if storage.ShouldRetry(err) {
		return fmt.Errorf("%s failed: %w: %w", op, ErrTransient, err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
