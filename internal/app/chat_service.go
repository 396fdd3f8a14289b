package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"buildscope/internal/ai"
	"buildscope/internal/logger"
	"buildscope/internal/model"
)

type ProjectLookup interface {
	GetByIDAndOwner(ctx context.Context, id string, ownerID uint) (*model.Project, error)
}

type TurnReader interface {
	ListByProject(ctx context.Context, projectID string) ([]model.ChatTurn, error)
	ListRecentByType(ctx context.Context, projectID string, convType model.ConversationType, limit int) ([]model.ChatTurn, error)
}

type HistoryCache interface {
	GetHistory(ctx context.Context, projectID string, convType model.ConversationType) ([]model.ChatTurn, bool, error)
	SetHistory(ctx context.Context, projectID string, convType model.ConversationType, turns []model.ChatTurn) error
	DeleteHistory(ctx context.Context, projectID string, convType model.ConversationType) error
	MarkDirty(ctx context.Context, projectID string, convType model.ConversationType) error
	IsDirty(ctx context.Context, projectID string, convType model.ConversationType) (bool, error)
}

type ChatOptions struct {
	HistoryWindow  int
	StreamTimeout  time.Duration
	PersistTimeout time.Duration
}

type ChatService struct {
	projects  ProjectLookup
	turns     TurnReader
	cache     HistoryCache
	llm       ai.StreamClient
	prompts   PromptSet
	persister *TurnPersister
	opts      ChatOptions
	log       *logger.Logger
}

type ChatInput struct {
	UserID      uint
	ProjectID   string
	Type        model.ConversationType
	Message     string
	Attachments []model.Attachment
}

type TurnResult struct {
	UserTurn      model.ChatTurn `json:"user_turn"`
	AssistantTurn model.ChatTurn `json:"assistant_turn"`
}

func NewChatService(
	projects ProjectLookup,
	turns TurnReader,
	cache HistoryCache,
	llm ai.StreamClient,
	prompts PromptSet,
	persister *TurnPersister,
	opts ChatOptions,
	log *logger.Logger,
) *ChatService {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = 5 * time.Minute
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}
	return &ChatService{
		projects:  projects,
		turns:     turns,
		cache:     cache,
		llm:       llm,
		prompts:   prompts,
		persister: persister,
		opts:      opts,
		log:       log.With("service", "ChatService"),
	}
}

// Begin validates the request, loads the windowed history and opens the
// upstream stream. Any error here means nothing was sent to the client and
// nothing was written. The returned TurnStream must be relayed or closed.
//
// The upstream call is detached from ctx cancellation and bounded by the
// stream timeout instead, so a client that goes away does not prevent the
// turn from being persisted.
func (s *ChatService) Begin(ctx context.Context, input ChatInput) (*TurnStream, error) {
	input, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.GetByIDAndOwner(ctx, input.ProjectID, input.UserID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, input.ProjectID)
	}

	history, err := s.loadWindow(ctx, input.ProjectID, input.Type)
	if err != nil {
		return nil, err
	}

	system, _ := s.prompts.For(input.Type)
	messages := promptMessages(history)
	messages = append(messages, ai.Message{
		Role:    model.RoleUser,
		Content: composeUserMessage(input.Message, input.Attachments),
	})

	log := s.log.With("project_id", input.ProjectID, "type", string(input.Type), "user_id", input.UserID)
	streamCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.StreamTimeout)
	stream, err := s.llm.OpenStream(streamCtx, ai.StreamRequest{System: system, Messages: messages})
	if err != nil {
		cancel()
		if errors.Is(err, ai.ErrMissingAPIKey) {
			log.Error("llm api key is not configured")
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		var statusErr *ai.StatusError
		if errors.As(err, &statusErr) {
			log.Warn("upstream rejected stream", "status", statusErr.StatusCode, "body", statusErr.Body)
		} else {
			log.Warn("open upstream stream failed", "error", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	log.Debug("upstream stream opened", "history_turns", len(history))
	return &TurnStream{
		svc:       s,
		input:     input,
		startedAt: time.Now(),
		baseCtx:   context.WithoutCancel(ctx),
		stream:    stream,
		cancel:    cancel,
		log:       log,
	}, nil
}

// Complete runs a turn without a live client and returns once it is
// persisted.
func (s *ChatService) Complete(ctx context.Context, input ChatInput) (*TurnResult, error) {
	turn, err := s.Begin(ctx, input)
	if err != nil {
		return nil, err
	}
	return turn.Relay(nil)
}

// History returns the project's chat turns in order, limited to one
// conversation type when convType is non-empty.
func (s *ChatService) History(ctx context.Context, userID uint, projectID string, convType model.ConversationType) ([]model.ChatTurn, error) {
	if userID == 0 || strings.TrimSpace(projectID) == "" {
		return nil, ErrValidation
	}
	if convType != "" && !convType.Valid() {
		return nil, fmt.Errorf("%w: unknown conversation type %q", ErrValidation, convType)
	}
	project, err := s.projects.GetByIDAndOwner(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrNotFound
	}

	turns, err := s.turns.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if convType != "" {
		turns = FilterByType(turns, convType)
	}
	return turns, nil
}

func (s *ChatService) validate(input ChatInput) (ChatInput, error) {
	input.Message = strings.TrimSpace(input.Message)
	input.ProjectID = strings.TrimSpace(input.ProjectID)
	switch {
	case input.UserID == 0:
		return input, fmt.Errorf("%w: missing user", ErrValidation)
	case input.Message == "":
		return input, fmt.Errorf("%w: message is required", ErrValidation)
	case input.ProjectID == "":
		return input, fmt.Errorf("%w: project_id is required", ErrValidation)
	case !input.Type.Valid():
		return input, fmt.Errorf("%w: unknown conversation type %q", ErrValidation, input.Type)
	}
	if _, ok := s.prompts.For(input.Type); !ok {
		return input, fmt.Errorf("%w: no system prompt for %q", ErrConfiguration, input.Type)
	}
	for i, a := range input.Attachments {
		if strings.TrimSpace(a.Name) == "" {
			return input, fmt.Errorf("%w: attachment %d has no name", ErrValidation, i)
		}
	}
	return input, nil
}

func (s *ChatService) loadWindow(ctx context.Context, projectID string, convType model.ConversationType) ([]model.ChatTurn, error) {
	if s.cache != nil {
		if dirty, err := s.cache.IsDirty(ctx, projectID, convType); err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetHistory(ctx, projectID, convType); cacheErr == nil && hit {
				return Window(FilterByType(cached, convType), s.opts.HistoryWindow), nil
			}
		}
	}

	turns, err := s.turns.ListRecentByType(ctx, projectID, convType, s.opts.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load chat history failed: %w", err)
	}
	turns = Window(FilterByType(turns, convType), s.opts.HistoryWindow)

	if s.cache != nil {
		if dirty, err := s.cache.IsDirty(ctx, projectID, convType); err == nil && !dirty {
			if err := s.cache.SetHistory(ctx, projectID, convType, turns); err != nil {
				s.log.Warn("cache chat history failed", "project_id", projectID, "error", err)
			}
		}
	}
	return turns, nil
}

// TurnStream is an open upstream call for one chat turn.
type TurnStream struct {
	svc       *ChatService
	input     ChatInput
	startedAt time.Time
	baseCtx   context.Context
	stream    ai.Stream
	cancel    context.CancelFunc
	log       *logger.Logger
	closeOnce sync.Once
}

// Relay drains the upstream stream, passing each delta to onDelta, and
// persists the turn. The text handed to onDelta and the text persisted come
// from the same accumulation.
//
// A failed onDelta stops forwarding but not draining. If the stream breaks
// after some text arrived, the partial reply is persisted with Incomplete
// set and the derived document is left alone; Relay then returns both the
// result and an error wrapping ErrUpstream.
func (t *TurnStream) Relay(onDelta func(delta string) error) (*TurnResult, error) {
	defer t.Close()

	var reply strings.Builder
	forwarding := onDelta != nil
	var streamErr error
	for {
		delta, err := t.stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		if delta == "" {
			continue
		}
		reply.WriteString(delta)
		if forwarding {
			if writeErr := onDelta(delta); writeErr != nil {
				forwarding = false
				t.log.Info("client stream closed, draining upstream", "error", writeErr)
			}
		}
	}

	text := reply.String()
	if streamErr != nil {
		t.log.Warn("upstream stream failed", "error", streamErr, "received_chars", len(text))
		if text == "" {
			return nil, fmt.Errorf("%w: %w", ErrUpstream, streamErr)
		}
		result, err := t.persist(text, true)
		if err != nil {
			return nil, err
		}
		return result, fmt.Errorf("%w: stream interrupted: %w", ErrUpstream, streamErr)
	}
	if strings.TrimSpace(text) == "" {
		t.log.Warn("upstream returned an empty reply")
		return nil, fmt.Errorf("%w: empty reply", ErrUpstream)
	}
	return t.persist(text, false)
}

// Close releases the upstream connection. Safe to call more than once.
func (t *TurnStream) Close() {
	t.closeOnce.Do(func() {
		t.cancel()
		if err := t.stream.Close(); err != nil {
			t.log.Debug("close upstream stream failed", "error", err)
		}
	})
}

func (t *TurnStream) persist(reply string, incomplete bool) (*TurnResult, error) {
	ctx, cancel := context.WithTimeout(t.baseCtx, t.svc.opts.PersistTimeout)
	defer cancel()
	return t.svc.persister.Persist(ctx, PersistInput{
		ProjectID:   t.input.ProjectID,
		Type:        t.input.Type,
		UserMessage: t.input.Message,
		Attachments: t.input.Attachments,
		UserAt:      t.startedAt,
		Reply:       reply,
		Incomplete:  incomplete,
	})
}
