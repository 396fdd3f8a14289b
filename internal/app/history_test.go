package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"buildscope/internal/ai"
	"buildscope/internal/model"
)

func mixedTurns() []model.ChatTurn {
	return []model.ChatTurn{
		{Seq: 1, Type: model.ConversationScope, Role: model.RoleUser, Content: "s1"},
		{Seq: 2, Type: model.ConversationProposal, Role: model.RoleUser, Content: "p1"},
		{Seq: 3, Type: model.ConversationScope, Role: model.RoleAssistant, Content: "s2"},
		{Seq: 4, Type: model.ConversationProposal, Role: model.RoleAssistant, Content: "p2"},
		{Seq: 5, Type: model.ConversationScope, Role: model.RoleUser, Content: "s3"},
	}
}

func TestFilterByTypeKeepsOrderAndIsIdempotent(t *testing.T) {
	once := FilterByType(mixedTurns(), model.ConversationScope)
	require.Len(t, once, 3)
	require.Equal(t, []int64{1, 3, 5}, []int64{once[0].Seq, once[1].Seq, once[2].Seq})
	require.Equal(t, once, FilterByType(once, model.ConversationScope))
	require.Empty(t, FilterByType(once, model.ConversationProposal))
}

func TestWindow(t *testing.T) {
	turns := mixedTurns()
	require.Len(t, Window(turns, 10), 5)
	last := Window(turns, 2)
	require.Equal(t, int64(4), last[0].Seq)
	require.Equal(t, int64(5), last[1].Seq)
	require.Empty(t, Window(turns, 0))
}

func TestPromptMessagesStartWithUser(t *testing.T) {
	history := []model.ChatTurn{
		{Role: model.RoleAssistant, Content: "orphaned reply"},
		{Role: model.RoleUser, Content: "question", Attachments: []model.Attachment{{Name: "plan.pdf", URL: "https://files/plan.pdf"}}},
		{Role: model.RoleAssistant, Content: "   "},
		{Role: model.RoleAssistant, Content: "answer"},
	}
	require.Equal(t, []ai.Message{
		{Role: model.RoleUser, Content: "question\n\nAttached documents:\n- plan.pdf: https://files/plan.pdf"},
		{Role: model.RoleAssistant, Content: "answer"},
	}, promptMessages(history))
}

func TestComposeUserMessageWithoutAttachments(t *testing.T) {
	require.Equal(t, "hello", composeUserMessage("hello", nil))

	empty := ""
	got := composeUserMessage("hello", []model.Attachment{{Name: "a.pdf", URL: "https://a", Content: &empty}})
	require.Equal(t, "hello\n\nDocument: a.pdf\nURL: https://a", got)
}
