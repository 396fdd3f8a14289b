package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"buildscope/internal/app"
	"buildscope/internal/model"
	"buildscope/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type AttachmentRequest struct {
	Name    string  `json:"name"`
	URL     string  `json:"url"`
	Type    string  `json:"type"`
	Content *string `json:"content"`
}

// ChatRequest is the body of both chat endpoints. project_id is accepted
// as an alias for projectId.
type ChatRequest struct {
	Message        string              `json:"message"`
	ProjectID      string              `json:"projectId"`
	ProjectIDAlias string              `json:"project_id"`
	Type           string              `json:"type"`
	Attachments    []AttachmentRequest `json:"attachments"`
}

// deltaFrame carries one chunk of reply text. JSON keeps CR and LF inside
// the text from being read as SSE line terminators.
type deltaFrame struct {
	Text string `json:"text"`
}

type doneFrame struct {
	UserTurnID      uint  `json:"user_turn_id"`
	AssistantTurnID uint  `json:"assistant_turn_id"`
	Seq             int64 `json:"seq"`
}

type errorFrame struct {
	Code            int    `json:"code"`
	Message         string `json:"message"`
	AssistantTurnID uint   `json:"assistant_turn_id,omitempty"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Stream relays one chat turn as server-sent events. Failures before the
// upstream stream opens are plain JSON errors; after that every outcome is
// a frame on the open stream.
func (h *ChatHandler) Stream(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	input, ok := bindChatInput(c, userID)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	turn, err := h.chatService.Begin(c.Request.Context(), input)
	if err != nil {
		writeServiceError(c, err, "chat failed")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	flusher.Flush()

	result, err := turn.Relay(func(delta string) error {
		if writeErr := writeSSE(c.Writer, "", deltaFrame{Text: delta}); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		_ = c.Error(err)
		frame := streamErrorFrame(err)
		if result != nil {
			frame.AssistantTurnID = result.AssistantTurn.ID
		}
		if writeErr := writeSSE(c.Writer, "error", frame); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	done := doneFrame{
		UserTurnID:      result.UserTurn.ID,
		AssistantTurnID: result.AssistantTurn.ID,
		Seq:             result.AssistantTurn.Seq,
	}
	if writeErr := writeSSE(c.Writer, "done", done); writeErr == nil {
		flusher.Flush()
	}
}

// Complete runs a turn without streaming and returns the stored reply.
func (h *ChatHandler) Complete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	input, ok := bindChatInput(c, userID)
	if !ok {
		return
	}

	result, err := h.chatService.Complete(c.Request.Context(), input)
	if err != nil {
		writeServiceError(c, err, "chat failed")
		return
	}
	response.OK(c, gin.H{
		"message":   result.AssistantTurn,
		"user_turn": result.UserTurn,
	})
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	history, err := h.chatService.History(
		c.Request.Context(),
		userID,
		c.Param("id"),
		model.ConversationType(strings.TrimSpace(c.Query("type"))),
	)
	if err != nil {
		writeServiceError(c, err, "get history failed")
		return
	}
	response.OK(c, history)
}

func bindChatInput(c *gin.Context, userID uint) (app.ChatInput, bool) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return app.ChatInput{}, false
	}

	attachments := make([]model.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, model.Attachment{
			Name:    a.Name,
			URL:     a.URL,
			Type:    a.Type,
			Content: a.Content,
		})
	}
	return app.ChatInput{
		UserID:      userID,
		ProjectID:   req.projectID(),
		Type:        model.ConversationType(strings.TrimSpace(req.Type)),
		Message:     req.Message,
		Attachments: attachments,
	}, true
}

func (r ChatRequest) projectID() string {
	if strings.TrimSpace(r.ProjectID) != "" {
		return r.ProjectID
	}
	return r.ProjectIDAlias
}

func streamErrorFrame(err error) errorFrame {
	switch {
	case errors.Is(err, app.ErrPersistence):
		return errorFrame{Code: response.CodePersistence, Message: "failed to save the reply"}
	case errors.Is(err, app.ErrUpstream):
		return errorFrame{Code: response.CodeUpstream, Message: "ai stream interrupted"}
	default:
		return errorFrame{Code: response.CodeInternalServer, Message: "chat failed"}
	}
}

// writeSSE writes one frame. Struct payloads are JSON-encoded by the sse
// encoder, so the data always fits on a single line.
func writeSSE(w io.Writer, event string, payload any) error {
	return sse.Encode(w, sse.Event{Event: event, Data: payload})
}
