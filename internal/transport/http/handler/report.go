package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"buildscope/internal/app"
	"buildscope/internal/transport/http/response"
)

const maxReportBody = 64 << 10

type ReportHandler struct {
	reportService *app.ReportService
}

type ErrorReportRequest struct {
	Message   string                 `json:"message"`
	Stack     string                 `json:"stack"`
	Type      string                 `json:"type"`
	URL       string                 `json:"url"`
	UserAgent string                 `json:"userAgent"`
	Context   map[string]interface{} `json:"context"`
}

type cspReportBody struct {
	Report app.CSPViolation `json:"csp-report"`
}

func NewReportHandler(reportService *app.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) ClientError(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBody)
	var req ErrorReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = c.Request.UserAgent()
	}
	input := app.ClientErrorInput{
		Message:   req.Message,
		Stack:     req.Stack,
		Type:      req.Type,
		PageURL:   req.URL,
		UserAgent: userAgent,
		Context:   req.Context,
	}
	if userID, ok := getUserIDFromContext(c); ok {
		input.UserID = &userID
	}

	if err := h.reportService.SubmitClientError(c.Request.Context(), input); err != nil {
		h.writeReportError(c, err)
		return
	}
	response.OK(c, gin.H{"queued": true})
}

// CSPReport accepts the browser's application/csp-report body.
func (h *ReportHandler) CSPReport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBody)
	raw, err := c.GetRawData()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid report body")
		return
	}
	var body cspReportBody
	if err := json.Unmarshal(raw, &body); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid report body")
		return
	}

	if _, err := h.reportService.SubmitCSPViolation(c.Request.Context(), body.Report, c.Request.UserAgent()); err != nil {
		h.writeReportError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReportHandler) writeReportError(c *gin.Context, err error) {
	if errors.Is(err, app.ErrReportEnqueue) {
		_ = c.Error(err)
		response.Error(c, http.StatusServiceUnavailable, response.CodeInternalServer, "report queue unavailable")
		return
	}
	writeServiceError(c, err, "submit report failed")
}
