package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"

	"buildscope/internal/logger"
	"buildscope/internal/model"
	"buildscope/internal/pkg/imagenorm"
	"buildscope/internal/pkg/pdfextract"
	"buildscope/internal/platform/gcs"
)

const (
	mimePDF  = "application/pdf"
	mimeDOC  = "application/msword"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeTXT  = "text/plain"
)

var documentTypes = map[string]bool{
	mimePDF:  true,
	mimeDOC:  true,
	mimeDOCX: true,
	mimeTXT:  true,
}

// ObjectStore is the blob backend. Implementations wrap gcs.ErrTransient
// around failures that may succeed on retry.
type ObjectStore interface {
	Save(ctx context.Context, key, contentType string, data []byte) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type FileRecorder interface {
	Create(ctx context.Context, file *model.ProjectFile) error
	ListByProject(ctx context.Context, projectID string) ([]model.ProjectFile, error)
}

type UploadOptions struct {
	MaxDocumentBytes int64
	MaxImageBytes    int64
	MaxImageSide     int
	// MaxAttempts bounds each storage call, first try included.
	MaxAttempts int
	URLTTL      time.Duration
	NewBackOff  func() backoff.BackOff
}

// DefaultBackOff waits 1s, 2s, 4s... between attempts.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

type UploadService struct {
	store    ObjectStore
	files    FileRecorder
	projects ProjectLookup
	opts     UploadOptions
	log      *logger.Logger
	now      func() time.Time
}

type UploadInput struct {
	UserID      uint
	ProjectID   string
	FileName    string
	ContentType string
	Data        []byte
}

type UploadResult struct {
	Attachment model.Attachment   `json:"attachment"`
	File       *model.ProjectFile `json:"file,omitempty"`
}

func NewUploadService(store ObjectStore, files FileRecorder, projects ProjectLookup, opts UploadOptions, log *logger.Logger) *UploadService {
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = 10 << 20
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 5 << 20
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = 7 * 24 * time.Hour
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = DefaultBackOff
	}
	return &UploadService{
		store:    store,
		files:    files,
		projects: projects,
		opts:     opts,
		log:      log.With("service", "UploadService"),
		now:      time.Now,
	}
}

// UploadDocument stores a project document and records it. PDF and plain
// text uploads carry their text in the returned attachment so the next chat
// turn can inline it.
func (s *UploadService) UploadDocument(ctx context.Context, in UploadInput) (*UploadResult, error) {
	contentType := baseMIME(in.ContentType)
	if !documentTypes[contentType] {
		return nil, fmt.Errorf("%w: only PDF, DOC, DOCX and TXT documents are accepted", ErrValidation)
	}
	if err := checkSize(in.Data, s.opts.MaxDocumentBytes); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: object storage", ErrConfiguration)
	}
	if _, err := requireProject(ctx, s.projects, in.UserID, in.ProjectID); err != nil {
		return nil, err
	}

	name := safeFileName(in.FileName, "document")
	now := s.now()
	key := path.Join("projects", in.ProjectID, "documents", fmt.Sprintf("%d-%s", now.UnixMilli(), name))
	url, err := s.put(ctx, key, contentType, in.Data)
	if err != nil {
		return nil, err
	}

	attachment := model.Attachment{Name: name, URL: url, Type: contentType}
	if text := s.extractText(contentType, in.Data); text != "" {
		attachment.Content = &text
	}

	file := &model.ProjectFile{
		ProjectID:   in.ProjectID,
		Name:        name,
		URL:         url,
		ObjectKey:   key,
		ContentType: contentType,
		Size:        int64(len(in.Data)),
		UploadedBy:  in.UserID,
		UploadedAt:  now,
	}
	if err := s.files.Create(ctx, file); err != nil {
		s.log.Error("record uploaded file failed", "key", key, "error", err)
		s.cleanup(ctx, key)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.log.Info("document uploaded", "project_id", in.ProjectID, "key", key, "bytes", len(in.Data))
	return &UploadResult{Attachment: attachment, File: file}, nil
}

// ListDocuments returns the project's uploaded documents, newest first.
func (s *UploadService) ListDocuments(ctx context.Context, userID uint, projectID string) ([]model.ProjectFile, error) {
	if _, err := requireProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}
	return s.files.ListByProject(ctx, projectID)
}

// UploadImage stores a daily-report photo after re-encoding it.
func (s *UploadService) UploadImage(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.UserID == 0 {
		return nil, ErrValidation
	}
	if !strings.HasPrefix(baseMIME(in.ContentType), "image/") {
		return nil, fmt.Errorf("%w: only image files are accepted", ErrValidation)
	}
	if err := checkSize(in.Data, s.opts.MaxImageBytes); err != nil {
		return nil, err
	}
	data, contentType, err := imagenorm.Normalize(in.Data, s.opts.MaxImageSide)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: object storage", ErrConfiguration)
	}

	name := safeFileName(in.FileName, "photo")
	key := path.Join("daily-reports", fmt.Sprint(in.UserID), fmt.Sprintf("%d-%s", s.now().UnixMilli(), name))
	url, err := s.put(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}
	return &UploadResult{Attachment: model.Attachment{Name: name, URL: url, Type: contentType}}, nil
}

// put saves the blob and signs a read URL, each under the bounded retry
// policy. A blob whose URL could not be issued is deleted.
func (s *UploadService) put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := s.retry(ctx, "save", func() error {
		return s.store.Save(ctx, key, contentType, data)
	}); err != nil {
		s.log.Error("save object failed", "key", key, "error", err)
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	var url string
	if err := s.retry(ctx, "sign", func() error {
		signed, err := s.store.SignedURL(ctx, key, s.opts.URLTTL)
		if err != nil {
			return err
		}
		url = signed
		return nil
	}); err != nil {
		s.log.Error("sign object url failed", "key", key, "error", err)
		s.cleanup(ctx, key)
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return url, nil
}

func (s *UploadService) retry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(s.opts.NewBackOff(), uint64(s.opts.MaxAttempts-1)),
		ctx,
	)
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && !errors.Is(err, gcs.ErrTransient) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		s.log.Warn("storage call failed, retrying", "op", op, "attempt", attempt, "wait", wait, "error", err)
	})
}

func (s *UploadService) cleanup(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Error("delete orphaned object failed", "key", key, "error", err)
	}
}

func (s *UploadService) extractText(contentType string, data []byte) string {
	switch contentType {
	case mimePDF:
		text, err := pdfextract.ExtractText(data)
		if err != nil {
			s.log.Warn("extract pdf text failed", "error", err)
			return ""
		}
		return text
	case mimeTXT:
		if utf8.Valid(data) {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

func checkSize(data []byte, limit int64) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if int64(len(data)) > limit {
		return fmt.Errorf("%w: file exceeds %d MB", ErrValidation, limit>>20)
	}
	return nil
}

func baseMIME(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
