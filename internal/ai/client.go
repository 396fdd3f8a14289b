package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

var (
	ErrMissingAPIKey   = errors.New("llm api key is not configured")
	ErrMalformedStream = errors.New("malformed llm stream frame")
	ErrStreamTruncated = errors.New("llm stream ended before completion marker")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type StreamRequest struct {
	System   string
	Messages []Message
}

// Stream yields text deltas. Recv returns io.EOF once the provider signals
// completion; any other error means the reply is incomplete.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type StreamClient interface {
	OpenStream(ctx context.Context, req StreamRequest) (Stream, error)
}

type Config struct {
	Provider         string
	BaseURL          string
	APIKey           string
	Model            string
	AnthropicVersion string
	MaxTokens        int
	Temperature      float64
}

// StatusError is returned by OpenStream when the provider rejects the call
// before any content is streamed.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm response status %d: %s", e.StatusCode, e.Body)
}

// ProviderError is an error event sent by the provider in the middle of a
// stream.
type ProviderError struct {
	Type    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm stream error %s: %s", e.Type, e.Message)
}

// NewStreamClient picks the wire protocol for cfg.Provider. A nil httpClient
// gets a transport with header and dial timeouts but no overall deadline, so
// long streams are bounded only by the caller's context.
func NewStreamClient(cfg Config, httpClient *http.Client) StreamClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
				MaxIdleConnsPerHost:   8,
			},
		}
	}
	if cfg.Provider == "openai" {
		return &OpenAICompatibleClient{httpClient: httpClient, cfg: cfg}
	}
	return &AnthropicClient{httpClient: httpClient, cfg: cfg}
}
