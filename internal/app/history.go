package app

import (
	"strings"

	"buildscope/internal/ai"
	"buildscope/internal/model"
)

// FilterByType keeps the turns of one conversation thread, preserving order.
func FilterByType(turns []model.ChatTurn, convType model.ConversationType) []model.ChatTurn {
	out := make([]model.ChatTurn, 0, len(turns))
	for _, turn := range turns {
		if turn.Type == convType {
			out = append(out, turn)
		}
	}
	return out
}

// Window returns the last n turns.
func Window(turns []model.ChatTurn, n int) []model.ChatTurn {
	if n <= 0 {
		return []model.ChatTurn{}
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// promptMessages maps stored turns to provider messages. Leading assistant
// turns are dropped so the conversation opens with the user, and empty
// turns are skipped.
func promptMessages(history []model.ChatTurn) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+1)
	for _, turn := range history {
		if len(messages) == 0 && turn.Role != model.RoleUser {
			continue
		}
		content := turn.Content
		if turn.Role == model.RoleUser && len(turn.Attachments) > 0 {
			content += "\n\nAttached documents:\n" + listAttachments(turn.Attachments)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		messages = append(messages, ai.Message{Role: turn.Role, Content: content})
	}
	return messages
}

// composeUserMessage appends one block per attachment to the message.
// Attachments with extracted text are inlined; the rest are referenced by
// URL.
func composeUserMessage(message string, attachments []model.Attachment) string {
	if len(attachments) == 0 {
		return message
	}
	blocks := make([]string, 0, len(attachments)+1)
	blocks = append(blocks, message)
	for _, a := range attachments {
		if a.Content != nil && *a.Content != "" {
			blocks = append(blocks, "Document: "+a.Name+"\nContent:\n"+*a.Content)
			continue
		}
		blocks = append(blocks, "Document: "+a.Name+"\nURL: "+a.URL)
	}
	return strings.Join(blocks, "\n\n")
}

func listAttachments(attachments []model.Attachment) string {
	lines := make([]string, 0, len(attachments))
	for _, a := range attachments {
		lines = append(lines, "- "+a.Name+": "+a.URL)
	}
	return strings.Join(lines, "\n")
}
