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

// OpenAICompatibleClient streams from any /chat/completions endpoint. The
// system prompt travels as the first message.
type OpenAICompatibleClient struct {
	httpClient *http.Client
	cfg        Config
}

func (c *OpenAICompatibleClient) OpenStream(ctx context.Context, req StreamRequest) (Stream, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	reqBody := map[string]interface{}{
		"model":       c.cfg.Model,
		"messages":    messages,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"stream":      true,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal llm stream request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm stream request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm stream request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return &openAIStream{body: resp.Body, events: newSSEReader(resp.Body)}, nil
}

type openAIStream struct {
	body   io.ReadCloser
	events *sseReader
	done   bool
}

func (s *openAIStream) Recv() (string, error) {
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
		payload := strings.TrimSpace(ev.Data)
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
			Error *struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedStream, err)
		}
		if chunk.Error != nil {
			return "", &ProviderError{Type: chunk.Error.Type, Message: chunk.Error.Message}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
}

func (s *openAIStream) Close() error {
	return s.body.Close()
}
