package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"buildscope/internal/logger"
	"buildscope/internal/model"
	"buildscope/internal/repository"
)

type TurnStore interface {
	CommitTurn(ctx context.Context, commit *repository.TurnCommit) error
}

type PersistInput struct {
	ProjectID   string
	Type        model.ConversationType
	UserMessage string
	Attachments []model.Attachment
	UserAt      time.Time
	Reply       string
	Incomplete  bool
}

// TurnPersister writes the user/assistant pair and the derived document as
// one commit, then invalidates the cached window.
type TurnPersister struct {
	store TurnStore
	cache HistoryCache
	log   *logger.Logger
}

func NewTurnPersister(store TurnStore, cache HistoryCache, log *logger.Logger) *TurnPersister {
	return &TurnPersister{
		store: store,
		cache: cache,
		log:   log.With("service", "TurnPersister"),
	}
}

func (p *TurnPersister) Persist(ctx context.Context, in PersistInput) (*TurnResult, error) {
	userAt := in.UserAt
	if userAt.IsZero() {
		userAt = time.Now()
	}
	commit := &repository.TurnCommit{
		ProjectID: in.ProjectID,
		Type:      in.Type,
		User: model.ChatTurn{
			Role:        model.RoleUser,
			Content:     in.UserMessage,
			Attachments: datatypes.JSONSlice[model.Attachment](in.Attachments),
			Timestamp:   userAt,
		},
		Assistant: model.ChatTurn{
			Role:       model.RoleAssistant,
			Content:    in.Reply,
			Incomplete: in.Incomplete,
			Timestamp:  time.Now(),
		},
		UpdateDocument: !in.Incomplete,
	}

	if p.cache != nil {
		if err := p.cache.MarkDirty(ctx, in.ProjectID, in.Type); err != nil {
			p.log.Warn("mark history dirty failed", "project_id", in.ProjectID, "error", err)
		}
	}

	if err := p.store.CommitTurn(ctx, commit); err != nil {
		p.log.Error("commit chat turn failed",
			"project_id", in.ProjectID,
			"type", string(in.Type),
			"reply_chars", len(in.Reply),
			"incomplete", in.Incomplete,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if p.cache != nil {
		if err := p.cache.DeleteHistory(ctx, in.ProjectID, in.Type); err != nil {
			p.log.Warn("invalidate history cache failed", "project_id", in.ProjectID, "error", err)
		}
	}

	p.log.Info("chat turn persisted",
		"project_id", in.ProjectID,
		"type", string(in.Type),
		"seq", commit.Assistant.Seq,
		"incomplete", in.Incomplete,
	)
	return &TurnResult{UserTurn: commit.User, AssistantTurn: commit.Assistant}, nil
}
