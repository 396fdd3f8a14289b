package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"buildscope/internal/app"
	"buildscope/internal/transport/http/middleware"
	"buildscope/internal/transport/http/response"
)

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok && userID != 0
}

// requireUser aborts with 401 when the auth middleware left no user id.
func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return userID, ok
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// writeServiceError maps app sentinels to the JSON envelope. Validation
// messages are returned as-is; everything else gets a generic message and
// the detail stays in the logs.
func writeServiceError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrUsernameExists):
		response.Error(c, http.StatusConflict, response.CodeUsernameExists, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		response.Error(c, http.StatusConflict, response.CodeEmailExists, err.Error())
	case errors.Is(err, app.ErrInvalidCredential):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "not found")
	case errors.Is(err, app.ErrConfiguration):
		response.Error(c, http.StatusInternalServerError, response.CodeConfiguration, "service is not configured")
	case errors.Is(err, app.ErrUpstream):
		response.Error(c, http.StatusInternalServerError, response.CodeUpstream, "ai service unavailable")
	case errors.Is(err, app.ErrPersistence):
		response.Error(c, http.StatusInternalServerError, response.CodePersistence, "failed to save")
	case errors.Is(err, app.ErrStorage):
		response.Error(c, http.StatusInternalServerError, response.CodeStorage, "file storage unavailable")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
