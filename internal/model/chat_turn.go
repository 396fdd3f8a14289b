package model

import (
	"time"

	"gorm.io/datatypes"
)

// ConversationType partitions a project's chat history into independent
// threads, each with its own system prompt and derived document.
type ConversationType string

const (
	ConversationScope    ConversationType = "scope"
	ConversationProposal ConversationType = "proposal"
)

var ConversationTypes = []ConversationType{ConversationScope, ConversationProposal}

func (t ConversationType) Valid() bool {
	switch t {
	case ConversationScope, ConversationProposal:
		return true
	}
	return false
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Attachment references an uploaded file. Content holds extracted text when
// the upload produced any; it is nil otherwise.
type Attachment struct {
	Name    string  `json:"name"`
	URL     string  `json:"url"`
	Type    string  `json:"type"`
	Content *string `json:"content,omitempty"`
}

// ChatTurn is one append-only message in a project's chat history. Seq is
// allocated per project under a row lock and orders the history.
type ChatTurn struct {
	ID          uint                            `gorm:"primaryKey" json:"id"`
	ProjectID   string                          `gorm:"size:36;not null;uniqueIndex:idx_chat_turn_project_seq,priority:1;index:idx_chat_turn_project_type,priority:1" json:"project_id"`
	Seq         int64                           `gorm:"not null;uniqueIndex:idx_chat_turn_project_seq,priority:2" json:"seq"`
	Type        ConversationType                `gorm:"size:16;not null;index:idx_chat_turn_project_type,priority:2" json:"type"`
	Role        string                          `gorm:"size:16;not null" json:"role"`
	Content     string                          `gorm:"type:text;not null" json:"content"`
	Attachments datatypes.JSONSlice[Attachment] `json:"attachments,omitempty"`
	Incomplete  bool                            `gorm:"not null;default:false" json:"incomplete,omitempty"`
	Timestamp   time.Time                       `gorm:"not null" json:"timestamp"`
}
