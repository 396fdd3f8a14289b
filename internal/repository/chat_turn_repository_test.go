package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"buildscope/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	// Each connection to :memory: is its own database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.Tables()...))
	require.NoError(t, db.Create(&model.User{ID: 7, Username: "site-lead", Email: "lead@example.com", PasswordHash: "x"}).Error)
	require.NoError(t, db.Create(&model.Project{ID: "p-1", OwnerID: 7, Name: "Clinic fit-out"}).Error)
	return db
}

func turnCommit(convType model.ConversationType, prompt, reply string, updateDocument bool) *TurnCommit {
	return &TurnCommit{
		ProjectID:      "p-1",
		Type:           convType,
		User:           model.ChatTurn{Role: model.RoleUser, Content: prompt},
		Assistant:      model.ChatTurn{Role: model.RoleAssistant, Content: reply, Incomplete: !updateDocument},
		UpdateDocument: updateDocument,
	}
}

func loadScope(t *testing.T, db *gorm.DB) model.Scope {
	t.Helper()
	var scope model.Scope
	require.NoError(t, db.Where("project_id = ?", "p-1").First(&scope).Error)
	return scope
}

func TestCommitTurnAppendsPairsAndOverwritesScope(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatTurnRepository(db)
	ctx := context.Background()

	first := turnCommit(model.ConversationScope, "Draft a scope", "## Scope v1", true)
	require.NoError(t, repo.CommitTurn(ctx, first))
	require.Equal(t, int64(1), first.User.Seq)
	require.Equal(t, int64(2), first.Assistant.Seq)
	require.NotZero(t, first.Assistant.ID)
	require.Equal(t, "## Scope v1", loadScope(t, db).Content)

	require.NoError(t, db.Model(&model.Scope{}).Where("project_id = ?", "p-1").Update("status", model.ScopeStatusFinal).Error)

	second := turnCommit(model.ConversationScope, "Add demolition", "## Scope v2", true)
	require.NoError(t, repo.CommitTurn(ctx, second))
	require.Equal(t, int64(3), second.User.Seq)
	require.Equal(t, int64(4), second.Assistant.Seq)

	scope := loadScope(t, db)
	require.Equal(t, "## Scope v2", scope.Content)
	require.Equal(t, model.ScopeStatusDraft, scope.Status)

	var scopes int64
	require.NoError(t, db.Model(&model.Scope{}).Count(&scopes).Error)
	require.Equal(t, int64(1), scopes)

	turns, err := repo.ListByProject(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	for i, turn := range turns {
		require.Equal(t, int64(i+1), turn.Seq)
		require.Equal(t, model.ConversationScope, turn.Type)
	}
	require.Equal(t, model.RoleUser, turns[2].Role)
	require.Equal(t, "## Scope v2", turns[3].Content)
}

func TestCommitTurnKeepsProposalStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatTurnRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CommitTurn(ctx, turnCommit(model.ConversationProposal, "Review this bid", "Looks complete", true)))

	var proposal model.Proposal
	require.NoError(t, db.Where("project_id = ?", "p-1").First(&proposal).Error)
	require.Equal(t, model.ProposalStatusPending, proposal.Status)

	require.NoError(t, db.Model(&model.Proposal{}).Where("project_id = ?", "p-1").Update("status", model.ProposalStatusApproved).Error)
	require.NoError(t, repo.CommitTurn(ctx, turnCommit(model.ConversationProposal, "And the exclusions?", "Exclusions are missing", true)))

	proposal = model.Proposal{}
	require.NoError(t, db.Where("project_id = ?", "p-1").First(&proposal).Error)
	require.Equal(t, "Exclusions are missing", proposal.Content)
	require.Equal(t, model.ProposalStatusApproved, proposal.Status)

	var scopes int64
	require.NoError(t, db.Model(&model.Scope{}).Count(&scopes).Error)
	require.Zero(t, scopes)
}

func TestCommitTurnIncompleteLeavesDocument(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatTurnRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CommitTurn(ctx, turnCommit(model.ConversationScope, "Draft a scope", "## Scope v1", true)))

	partial := turnCommit(model.ConversationScope, "Expand section 2", "## Scope v2 (cut", false)
	require.NoError(t, repo.CommitTurn(ctx, partial))
	require.Equal(t, int64(4), partial.Assistant.Seq)

	require.Equal(t, "## Scope v1", loadScope(t, db).Content)

	var stored model.ChatTurn
	require.NoError(t, db.First(&stored, partial.Assistant.ID).Error)
	require.True(t, stored.Incomplete)
	require.Equal(t, "## Scope v2 (cut", stored.Content)
}

func TestCommitTurnMissingProjectWritesNothing(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatTurnRepository(db)

	commit := turnCommit(model.ConversationScope, "Draft a scope", "## Scope", true)
	commit.ProjectID = "gone"
	require.ErrorIs(t, repo.CommitTurn(context.Background(), commit), ErrProjectGone)

	var turns int64
	require.NoError(t, db.Model(&model.ChatTurn{}).Count(&turns).Error)
	require.Zero(t, turns)
}

func TestListRecentByTypeIsOldestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatTurnRepository(db)
	ctx := context.Background()

	for _, reply := range []string{"s1", "s2", "s3"} {
		require.NoError(t, repo.CommitTurn(ctx, turnCommit(model.ConversationScope, "q", reply, true)))
		require.NoError(t, repo.CommitTurn(ctx, turnCommit(model.ConversationProposal, "q", "p-"+reply, true)))
	}

	turns, err := repo.ListRecentByType(ctx, "p-1", model.ConversationScope, 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, "s2", turns[0].Content)
	require.Equal(t, "q", turns[1].Content)
	require.Equal(t, "s3", turns[2].Content)
	for i := 1; i < len(turns); i++ {
		require.Less(t, turns[i-1].Seq, turns[i].Seq)
		require.Equal(t, model.ConversationScope, turns[i].Type)
	}

	empty, err := repo.ListRecentByType(ctx, "p-1", model.ConversationScope, 0)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestCountByOwner(t *testing.T) {
	db := newTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.User{ID: 8, Username: "estimator", Email: "est@example.com", PasswordHash: "x"}).Error)
	require.NoError(t, repo.Create(ctx, &model.Project{ID: "p-2", OwnerID: 7, Name: "Warehouse"}))
	require.NoError(t, repo.Create(ctx, &model.Project{ID: "p-3", OwnerID: 8, Name: "Bridge deck"}))

	n, err := repo.CountByOwner(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	n, err = repo.CountByOwner(ctx, 9)
	require.NoError(t, err)
	require.Zero(t, n)
}
