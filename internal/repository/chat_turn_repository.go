package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"buildscope/internal/model"
)

var ErrProjectGone = errors.New("project no longer exists")

type ChatTurnRepository struct {
	db *gorm.DB
}

func NewChatTurnRepository(db *gorm.DB) *ChatTurnRepository {
	return &ChatTurnRepository{db: db}
}

// ListByProject returns the project's whole history across all types in seq
// order.
func (r *ChatTurnRepository) ListByProject(ctx context.Context, projectID string) ([]model.ChatTurn, error) {
	var turns []model.ChatTurn
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("seq ASC").
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("list chat turns failed: %w", err)
	}
	return turns, nil
}

// ListRecentByType returns at most limit turns of the given type, oldest
// first.
func (r *ChatTurnRepository) ListRecentByType(
	ctx context.Context,
	projectID string,
	convType model.ConversationType,
	limit int,
) ([]model.ChatTurn, error) {
	if limit <= 0 {
		return []model.ChatTurn{}, nil
	}
	var turns []model.ChatTurn
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND type = ?", projectID, convType).
		Order("seq DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("list recent chat turns failed: %w", err)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// TurnCommit is the unit of work for one completed exchange. Seq and ID are
// filled in on the two turns by CommitTurn.
type TurnCommit struct {
	ProjectID string
	Type      model.ConversationType
	User      model.ChatTurn
	Assistant model.ChatTurn
	// UpdateDocument overwrites the scope or proposal with the assistant
	// content. False for incomplete replies.
	UpdateDocument bool
}

// CommitTurn appends both turns and refreshes the derived document in a
// single transaction. The project row is locked first so concurrent turns on
// the same project serialise on seq allocation.
func (r *ChatTurnRepository) CommitTurn(ctx context.Context, commit *TurnCommit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project model.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", commit.ProjectID).
			First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectGone
			}
			return fmt.Errorf("lock project failed: %w", err)
		}

		var maxSeq int64
		if err := tx.Model(&model.ChatTurn{}).
			Where("project_id = ?", commit.ProjectID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("read chat seq failed: %w", err)
		}

		commit.User.ProjectID = commit.ProjectID
		commit.User.Type = commit.Type
		commit.User.Seq = maxSeq + 1
		commit.Assistant.ProjectID = commit.ProjectID
		commit.Assistant.Type = commit.Type
		commit.Assistant.Seq = maxSeq + 2
		if err := tx.Create(&commit.User).Error; err != nil {
			return fmt.Errorf("insert user turn failed: %w", err)
		}
		if err := tx.Create(&commit.Assistant).Error; err != nil {
			return fmt.Errorf("insert assistant turn failed: %w", err)
		}

		now := time.Now()
		if commit.UpdateDocument {
			if err := upsertDocument(tx, commit.ProjectID, commit.Type, commit.Assistant.Content, now); err != nil {
				return err
			}
		}

		if err := tx.Model(&model.Project{}).
			Where("id = ?", commit.ProjectID).
			Update("updated_at", now).Error; err != nil {
			return fmt.Errorf("touch project failed: %w", err)
		}
		return nil
	})
}

func upsertDocument(tx *gorm.DB, projectID string, convType model.ConversationType, content string, now time.Time) error {
	switch convType {
	case model.ConversationScope:
		scope := model.Scope{
			ProjectID: projectID,
			Content:   content,
			Status:    model.ScopeStatusDraft,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "project_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"content":    content,
				"status":     model.ScopeStatusDraft,
				"updated_at": now,
			}),
		}).Create(&scope).Error; err != nil {
			return fmt.Errorf("upsert scope failed: %w", err)
		}
	case model.ConversationProposal:
		proposal := model.Proposal{
			ProjectID: projectID,
			Content:   content,
			Status:    model.ProposalStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "project_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"content":    content,
				"updated_at": now,
			}),
		}).Create(&proposal).Error; err != nil {
			return fmt.Errorf("upsert proposal failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown conversation type %q", convType)
	}
	return nil
}
