package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"buildscope/internal/ai"
	"buildscope/internal/model"
)

const testProjectID = "11111111-2222-3333-4444-555555555555"

type chatFixture struct {
	projects *fakeProjects
	turns    *fakeTurnStore
	cache    *fakeCache
	llm      *fakeLLM
	svc      *ChatService
}

func newChatFixture(t *testing.T, history ...model.ChatTurn) *chatFixture {
	t.Helper()
	f := &chatFixture{
		projects: newFakeProjects(model.Project{ID: testProjectID, OwnerID: 7, Name: "Retail fit-out"}),
		turns:    newFakeTurnStore(history...),
		cache:    newFakeCache(),
		llm:      &fakeLLM{},
	}
	persister := NewTurnPersister(f.turns, f.cache, testLog)
	f.svc = NewChatService(f.projects, f.turns, f.cache, f.llm, DefaultPrompts(), persister, ChatOptions{}, testLog)
	return f
}

func scopeInput(message string) ChatInput {
	return ChatInput{UserID: 7, ProjectID: testProjectID, Type: model.ConversationScope, Message: message}
}

func relayAll(t *testing.T, turn *TurnStream) (string, *TurnResult, error) {
	t.Helper()
	var forwarded strings.Builder
	result, err := turn.Relay(func(delta string) error {
		forwarded.WriteString(delta)
		return nil
	})
	return forwarded.String(), result, err
}

func TestChatTurnPersistsPairAndScope(t *testing.T) {
	f := newChatFixture(t)
	f.llm.deltas = []string{"Scope: ", "retail\n", "fit-out"}

	turn, err := f.svc.Begin(context.Background(), scopeInput("Draft the scope"))
	require.NoError(t, err)
	forwarded, result, err := relayAll(t, turn)
	require.NoError(t, err)

	require.Equal(t, "Scope: retail\nfit-out", forwarded)
	require.Equal(t, forwarded, result.AssistantTurn.Content)
	require.Equal(t, "Draft the scope", result.UserTurn.Content)
	require.Equal(t, int64(1), result.UserTurn.Seq)
	require.Equal(t, int64(2), result.AssistantTurn.Seq)
	require.False(t, result.AssistantTurn.Incomplete)

	require.Equal(t, 2, f.turns.count(testProjectID))
	require.Equal(t, forwarded, f.turns.scopes[testProjectID].Content)
	require.Equal(t, model.ScopeStatusDraft, f.turns.scopes[testProjectID].Status)
	require.Empty(t, f.turns.proposals)

	req := f.llm.requests[0]
	require.Equal(t, defaultScopePrompt, req.System)
	require.Equal(t, []ai.Message{{Role: model.RoleUser, Content: "Draft the scope"}}, req.Messages)

	require.Equal(t, 1, f.cache.deletes)
	dirty, _ := f.cache.IsDirty(context.Background(), testProjectID, model.ConversationScope)
	require.False(t, dirty)
}

func TestChatTurnProposalCreatesPendingProposal(t *testing.T) {
	f := newChatFixture(t)
	f.llm.deltas = []string{"Looks complete."}

	input := scopeInput("Review this")
	input.Type = model.ConversationProposal
	result, err := f.svc.Complete(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, model.ConversationProposal, result.AssistantTurn.Type)

	proposal := f.turns.proposals[testProjectID]
	require.Equal(t, "Looks complete.", proposal.Content)
	require.Equal(t, model.ProposalStatusPending, proposal.Status)
	require.Empty(t, f.turns.scopes)
	require.Equal(t, defaultProposalPrompt, f.llm.requests[0].System)
}

func TestChatTurnsAppendInSequence(t *testing.T) {
	f := newChatFixture(t)
	f.llm.deltas = []string{"first"}
	_, err := f.svc.Complete(context.Background(), scopeInput("one"))
	require.NoError(t, err)

	f.llm.deltas = []string{"second"}
	result, err := f.svc.Complete(context.Background(), scopeInput("two"))
	require.NoError(t, err)
	require.Equal(t, int64(3), result.UserTurn.Seq)
	require.Equal(t, int64(4), result.AssistantTurn.Seq)
	require.Equal(t, "second", f.turns.scopes[testProjectID].Content)

	second := f.llm.requests[1].Messages
	require.Equal(t, []ai.Message{
		{Role: model.RoleUser, Content: "one"},
		{Role: model.RoleAssistant, Content: "first"},
		{Role: model.RoleUser, Content: "two"},
	}, second)
}

func TestChatUnknownProjectWritesNothing(t *testing.T) {
	f := newChatFixture(t)
	f.llm.deltas = []string{"never"}

	input := scopeInput("hello")
	input.ProjectID = "missing"
	_, err := f.svc.Begin(context.Background(), input)
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, f.llm.calls())
	require.Zero(t, f.turns.commits)
}

func TestChatOtherOwnerIsNotFound(t *testing.T) {
	f := newChatFixture(t)
	input := scopeInput("hello")
	input.UserID = 8
	_, err := f.svc.Begin(context.Background(), input)
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, f.llm.calls())
}

func TestChatValidation(t *testing.T) {
	f := newChatFixture(t)
	cases := map[string]ChatInput{
		"empty message": {UserID: 7, ProjectID: testProjectID, Type: model.ConversationScope, Message: "   "},
		"no project":    {UserID: 7, Type: model.ConversationScope, Message: "hi"},
		"unknown type":  {UserID: 7, ProjectID: testProjectID, Type: "budget", Message: "hi"},
		"no user":       {ProjectID: testProjectID, Type: model.ConversationScope, Message: "hi"},
		"nameless file": {UserID: 7, ProjectID: testProjectID, Type: model.ConversationScope, Message: "hi", Attachments: []model.Attachment{{URL: "https://x"}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Begin(context.Background(), input)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
	require.Zero(t, f.llm.calls())
	require.Zero(t, f.turns.commits)
}

func TestChatUpstreamRejectionWritesNothing(t *testing.T) {
	f := newChatFixture(t)
	f.llm.openErr = &ai.StatusError{StatusCode: 429, Body: `{"error":"rate_limited"}`}

	_, err := f.svc.Begin(context.Background(), scopeInput("hello"))
	require.ErrorIs(t, err, ErrUpstream)
	var statusErr *ai.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 429, statusErr.StatusCode)
	require.Zero(t, f.turns.commits)
	require.Empty(t, f.turns.scopes)
}

func TestChatMissingAPIKeyIsConfigurationError(t *testing.T) {
	f := newChatFixture(t)
	f.llm.openErr = ai.ErrMissingAPIKey

	_, err := f.svc.Begin(context.Background(), scopeInput("hello"))
	require.ErrorIs(t, err, ErrConfiguration)
	require.NotErrorIs(t, err, ErrUpstream)
	require.Zero(t, f.turns.commits)
}

func TestChatMidStreamFailurePersistsIncompleteReply(t *testing.T) {
	f := newChatFixture(t)
	f.scopeAlready("previous scope")
	f.llm.deltas = []string{"Partial ", "answer"}
	f.llm.endErr = ai.ErrStreamTruncated

	turn, err := f.svc.Begin(context.Background(), scopeInput("hello"))
	require.NoError(t, err)
	forwarded, result, err := relayAll(t, turn)
	require.ErrorIs(t, err, ErrUpstream)
	require.ErrorIs(t, err, ai.ErrStreamTruncated)
	require.NotNil(t, result)

	require.Equal(t, "Partial answer", forwarded)
	require.Equal(t, forwarded, result.AssistantTurn.Content)
	require.True(t, result.AssistantTurn.Incomplete)
	require.Equal(t, 2, f.turns.count(testProjectID))
	require.Equal(t, "previous scope", f.turns.scopes[testProjectID].Content)
}

func TestChatFailureBeforeAnyTextWritesNothing(t *testing.T) {
	f := newChatFixture(t)
	f.llm.endErr = &ai.ProviderError{Type: "overloaded_error", Message: "Overloaded"}

	turn, err := f.svc.Begin(context.Background(), scopeInput("hello"))
	require.NoError(t, err)
	_, result, err := relayAll(t, turn)
	require.ErrorIs(t, err, ErrUpstream)
	require.Nil(t, result)
	require.Zero(t, f.turns.commits)
}

func TestChatEmptyReplyIsUpstreamError(t *testing.T) {
	f := newChatFixture(t)
	f.llm.deltas = []string{"", "  "}

	_, err := f.svc.Complete(context.Background(), scopeInput("hello"))
	require.ErrorIs(t, err, ErrUpstream)
	require.Zero(t, f.turns.commits)
}

func TestChatClientGoneStillPersistsFullReply(t *testing.T) {
	f := newChatFixture(t)
	f.llm.deltas = []string{"one ", "two ", "three"}

	ctx, cancel := context.WithCancel(context.Background())
	turn, err := f.svc.Begin(ctx, scopeInput("hello"))
	require.NoError(t, err)

	writes := 0
	var upstreamErr error
	result, err := turn.Relay(func(string) error {
		writes++
		cancel()
		upstreamErr = f.llm.ctxs[0].Err()
		return errors.New("broken pipe")
	})
	require.NoError(t, err)
	require.Equal(t, 1, writes)
	require.NoError(t, upstreamErr)
	require.Equal(t, "one two three", result.AssistantTurn.Content)
	require.Equal(t, "one two three", f.turns.scopes[testProjectID].Content)
}

func TestChatPersistenceFailure(t *testing.T) {
	f := newChatFixture(t)
	f.llm.deltas = []string{"reply"}
	f.turns.commitErr = errors.New("deadlock found")

	_, err := f.svc.Complete(context.Background(), scopeInput("hello"))
	require.ErrorIs(t, err, ErrPersistence)
	require.Empty(t, f.turns.scopes)
}

func TestChatHistoryWindowStaysInOneThread(t *testing.T) {
	var history []model.ChatTurn
	seq := int64(0)
	for i := 0; i < 14; i++ {
		seq++
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		history = append(history, model.ChatTurn{ProjectID: testProjectID, Seq: seq, Type: model.ConversationScope, Role: role, Content: fmt.Sprintf("scope-%d", i)})
		if i%3 == 0 {
			seq++
			history = append(history, model.ChatTurn{ProjectID: testProjectID, Seq: seq, Type: model.ConversationProposal, Role: role, Content: fmt.Sprintf("proposal-%d", i)})
		}
	}
	f := newChatFixture(t, history...)
	f.llm.deltas = []string{"ok"}

	_, err := f.svc.Complete(context.Background(), scopeInput("next"))
	require.NoError(t, err)

	messages := f.llm.requests[0].Messages
	require.Len(t, messages, 11)
	require.Equal(t, "scope-4", messages[0].Content)
	require.Equal(t, model.RoleUser, messages[0].Role)
	for _, m := range messages[:10] {
		require.True(t, strings.HasPrefix(m.Content, "scope-"), m.Content)
	}
	require.Equal(t, "next", messages[10].Content)
}

func TestChatInlinesAttachmentText(t *testing.T) {
	f := newChatFixture(t)
	f.llm.deltas = []string{"noted"}
	text := "Slab on grade, 40 MPa"

	input := scopeInput("Use the attached drawings")
	input.Attachments = []model.Attachment{
		{Name: "structural.pdf", URL: "https://files/structural.pdf", Type: "application/pdf", Content: &text},
		{Name: "site.docx", URL: "https://files/site.docx", Type: "application/msword"},
	}
	result, err := f.svc.Complete(context.Background(), input)
	require.NoError(t, err)

	last := f.llm.requests[0].Messages[0]
	require.Equal(t, "Use the attached drawings\n\n"+
		"Document: structural.pdf\nContent:\nSlab on grade, 40 MPa\n\n"+
		"Document: site.docx\nURL: https://files/site.docx", last.Content)
	require.Equal(t, "Use the attached drawings", result.UserTurn.Content)
	require.Len(t, result.UserTurn.Attachments, 2)
}

func TestChatHistoryFiltersByType(t *testing.T) {
	f := newChatFixture(t,
		model.ChatTurn{ProjectID: testProjectID, Seq: 1, Type: model.ConversationScope, Role: model.RoleUser, Content: "a"},
		model.ChatTurn{ProjectID: testProjectID, Seq: 2, Type: model.ConversationProposal, Role: model.RoleUser, Content: "b"},
	)

	all, err := f.svc.History(context.Background(), 7, testProjectID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	proposal, err := f.svc.History(context.Background(), 7, testProjectID, model.ConversationProposal)
	require.NoError(t, err)
	require.Len(t, proposal, 1)
	require.Equal(t, "b", proposal[0].Content)

	_, err = f.svc.History(context.Background(), 8, testProjectID, "")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.History(context.Background(), 7, testProjectID, "budget")
	require.ErrorIs(t, err, ErrValidation)
}

func TestChatStreamTimeoutBoundsUpstream(t *testing.T) {
	f := newChatFixture(t)
	f.svc.opts.StreamTimeout = time.Minute
	f.llm.deltas = []string{"ok"}

	turn, err := f.svc.Begin(context.Background(), scopeInput("hello"))
	require.NoError(t, err)
	deadline, ok := f.llm.ctxs[0].Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	turn.Close()
	require.Error(t, f.llm.ctxs[0].Err())
	turn.Close()
}

func (f *chatFixture) scopeAlready(content string) {
	f.turns.scopes[testProjectID] = model.Scope{ProjectID: testProjectID, Content: content, Status: model.ScopeStatusDraft}
}
