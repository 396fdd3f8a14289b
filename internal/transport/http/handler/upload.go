package handler

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"buildscope/internal/app"
	"buildscope/internal/transport/http/response"
)

type UploadHandler struct {
	uploadService *app.UploadService
	// maxRead caps how much of a part is buffered; the service enforces
	// the real per-kind limits.
	maxRead int64
}

func NewUploadHandler(uploadService *app.UploadService, maxRead int64) *UploadHandler {
	if maxRead <= 0 {
		maxRead = 16 << 20
	}
	return &UploadHandler{uploadService: uploadService, maxRead: maxRead}
}

// Document accepts a multipart "file" field for a project.
func (h *UploadHandler) Document(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	input, ok := h.readFile(c)
	if !ok {
		return
	}
	input.UserID = userID
	input.ProjectID = c.Param("id")

	result, err := h.uploadService.UploadDocument(c.Request.Context(), input)
	if err != nil {
		writeServiceError(c, err, "upload failed")
		return
	}
	response.Created(c, result)
}

func (h *UploadHandler) ListDocuments(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	files, err := h.uploadService.ListDocuments(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "list files failed")
		return
	}
	response.OK(c, files)
}

// Image accepts a daily-report photo.
func (h *UploadHandler) Image(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	input, ok := h.readFile(c)
	if !ok {
		return
	}
	input.UserID = userID

	result, err := h.uploadService.UploadImage(c.Request.Context(), input)
	if err != nil {
		writeServiceError(c, err, "upload failed")
		return
	}
	response.Created(c, gin.H{"url": result.Attachment.URL, "name": result.Attachment.Name, "type": result.Attachment.Type})
}

// multipartOverhead leaves room for boundaries and part headers on top of
// the file itself.
const multipartOverhead = 64 << 10

func (h *UploadHandler) readFile(c *gin.Context) (app.UploadInput, bool) {
	limit := h.maxRead + multipartOverhead
	if c.Request.ContentLength > limit {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "file is too large")
		return app.UploadInput{}, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "file is too large")
			return app.UploadInput{}, false
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file is required")
		return app.UploadInput{}, false
	}
	if fileHeader.Size > h.maxRead {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "file is too large")
		return app.UploadInput{}, false
	}

	data, err := readPart(fileHeader, h.maxRead)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read upload failed")
		return app.UploadInput{}, false
	}
	return app.UploadInput{
		FileName:    fileHeader.Filename,
		ContentType: partContentType(fileHeader),
		Data:        data,
	}, true
}

func readPart(fileHeader *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

// partContentType trusts the declared type unless it is missing or
// generic, then falls back to the extension.
func partContentType(fileHeader *multipart.FileHeader) string {
	declared := strings.TrimSpace(fileHeader.Header.Get("Content-Type"))
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileHeader.Filename))); byExt != "" {
		return byExt
	}
	return declared
}
