package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"

	"buildscope/internal/logger"
	"buildscope/internal/model"
)

type ReportPublisher interface {
	Publish(ctx context.Context, report model.ErrorReport) error
}

type ReportService struct {
	publisher ReportPublisher
	devMode   bool
	log       *logger.Logger
	now       func() time.Time
}

type ClientErrorInput struct {
	Message   string
	Stack     string
	Type      string
	PageURL   string
	UserAgent string
	Context   map[string]interface{}
	UserID    *uint
}

// CSPViolation holds the fields of a browser "csp-report" body.
type CSPViolation struct {
	DocumentURI        string `json:"document-uri"`
	BlockedURI         string `json:"blocked-uri"`
	ViolatedDirective  string `json:"violated-directive"`
	EffectiveDirective string `json:"effective-directive"`
	OriginalPolicy     string `json:"original-policy"`
	Disposition        string `json:"disposition"`
	StatusCode         int    `json:"status-code"`
}

func NewReportService(publisher ReportPublisher, devMode bool, log *logger.Logger) *ReportService {
	return &ReportService{
		publisher: publisher,
		devMode:   devMode,
		log:       log.With("service", "ReportService"),
		now:       time.Now,
	}
}

func (s *ReportService) SubmitClientError(ctx context.Context, in ClientErrorInput) error {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	kind := strings.TrimSpace(in.Type)
	if kind == "" {
		kind = model.ErrorReportClient
	}

	extra := map[string]interface{}{"type": kind}
	for k, v := range in.Context {
		extra[k] = v
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("%w: context is not serialisable", ErrValidation)
	}

	return s.publish(ctx, model.ErrorReport{
		Kind:       model.ErrorReportClient,
		Severity:   model.SeverityMedium,
		Message:    truncate(message, 4000),
		Stack:      truncate(in.Stack, 16000),
		PageURL:    truncate(in.PageURL, 2048),
		UserAgent:  truncate(in.UserAgent, 512),
		Context:    datatypes.JSON(raw),
		UserID:     in.UserID,
		ReportedAt: s.now(),
	})
}

// SubmitCSPViolation classifies and enqueues a violation. It reports false
// for violations that are ignored.
func (s *ReportService) SubmitCSPViolation(ctx context.Context, v CSPViolation, userAgent string) (bool, error) {
	if v.BlockedURI == "" && v.ViolatedDirective == "" {
		return false, fmt.Errorf("%w: blocked-uri and violated-directive are required", ErrValidation)
	}
	if s.ignoreViolation(v) {
		return false, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	err = s.publish(ctx, model.ErrorReport{
		Kind:       model.ErrorReportCSP,
		Severity:   CSPSeverity(v.ViolatedDirective),
		Message:    fmt.Sprintf("%s blocked %s", v.ViolatedDirective, v.BlockedURI),
		PageURL:    truncate(v.DocumentURI, 2048),
		UserAgent:  truncate(userAgent, 512),
		Context:    datatypes.JSON(raw),
		ReportedAt: s.now(),
	})
	return err == nil, err
}

// CSPSeverity ranks a violated directive: script-src is high, connect-src
// medium, anything else low.
func CSPSeverity(directive string) string {
	directive = strings.TrimSpace(directive)
	switch {
	case strings.HasPrefix(directive, "script-src"):
		return model.SeverityHigh
	case strings.HasPrefix(directive, "connect-src"):
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func (s *ReportService) ignoreViolation(v CSPViolation) bool {
	for _, prefix := range []string{"chrome-extension://", "moz-extension://", "safari-extension://"} {
		if strings.HasPrefix(v.BlockedURI, prefix) {
			return true
		}
	}
	return s.devMode && strings.Contains(v.DocumentURI, "localhost")
}

func (s *ReportService) publish(ctx context.Context, report model.ErrorReport) error {
	if s.publisher == nil {
		s.log.Warn("report dropped, no publisher", "kind", report.Kind, "message", report.Message)
		return nil
	}
	if err := s.publisher.Publish(ctx, report); err != nil {
		s.log.Error("enqueue report failed", "kind", report.Kind, "severity", report.Severity, "message", report.Message, "error", err)
		return fmt.Errorf("%w: %w", ErrReportEnqueue, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
