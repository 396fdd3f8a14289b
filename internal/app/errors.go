package app

import "errors"

// Chat and upload failures. Handlers map these with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("service is not configured")
	ErrUpstream      = errors.New("upstream llm failure")
	ErrPersistence   = errors.New("persistence failure")
	ErrStorage       = errors.New("object storage failure")
	ErrReportEnqueue = errors.New("report enqueue failed")
)
