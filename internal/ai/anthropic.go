package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// AnthropicClient speaks the Messages API with stream=true.
type AnthropicClient struct {
	httpClient *http.Client
	cfg        Config
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

func (c *AnthropicClient) OpenStream(ctx context.Context, req StreamRequest) (Stream, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	bodyBytes, err := json.Marshal(anthropicRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Messages:    req.Messages,
		System:      req.System,
		Temperature: c.cfg.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal llm stream request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm stream request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", c.cfg.AnthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm stream request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return &anthropicStream{body: resp.Body, events: newSSEReader(resp.Body)}, nil
}

type anthropicStream struct {
	body   io.ReadCloser
	events *sseReader
	done   bool
}

type anthropicFrame struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *anthropicStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		ev, err := s.events.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrStreamTruncated
			}
			return "", fmt.Errorf("read llm stream failed: %w", err)
		}
		if ev.Data == "" {
			continue
		}

		var frame anthropicFrame
		if err := json.Unmarshal([]byte(ev.Data), &frame); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedStream, err)
		}
		kind := frame.Type
		if kind == "" {
			kind = ev.Event
		}

		switch kind {
		case "content_block_delta":
			if frame.Delta.Type == "text_delta" && frame.Delta.Text != "" {
				return frame.Delta.Text, nil
			}
		case "message_stop":
			s.done = true
			return "", io.EOF
		case "error":
			return "", &ProviderError{Type: frame.Error.Type, Message: frame.Error.Message}
		}
	}
}

func (s *anthropicStream) Close() error {
	return s.body.Close()
}
