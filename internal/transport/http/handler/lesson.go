package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"buildscope/internal/app"
	"buildscope/internal/model"
	"buildscope/internal/transport/http/response"
)

type LessonHandler struct {
	lessonService *app.LessonService
}

type LessonRequest struct {
	Title     string             `json:"title" binding:"required,max=255"`
	Problem   string             `json:"problem" binding:"required"`
	Impact    model.LessonImpact `json:"impact"`
	RootCause string             `json:"root_cause"`
	Solution  string             `json:"solution"`
}

func NewLessonHandler(lessonService *app.LessonService) *LessonHandler {
	return &LessonHandler{lessonService: lessonService}
}

func (h *LessonHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	lessons, err := h.lessonService.List(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "list lessons failed")
		return
	}
	response.OK(c, lessons)
}

func (h *LessonHandler) Add(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	input, ok := bindLesson(c)
	if !ok {
		return
	}
	lesson, err := h.lessonService.Add(c.Request.Context(), userID, c.Param("id"), input)
	if err != nil {
		writeServiceError(c, err, "add lesson failed")
		return
	}
	response.Created(c, lesson)
}

func (h *LessonHandler) Edit(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	lessonID, ok := parseIDParam(c, "lessonId")
	if !ok {
		return
	}
	input, ok := bindLesson(c)
	if !ok {
		return
	}
	lesson, err := h.lessonService.Edit(c.Request.Context(), userID, c.Param("id"), lessonID, input)
	if err != nil {
		writeServiceError(c, err, "edit lesson failed")
		return
	}
	response.OK(c, lesson)
}

func (h *LessonHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	lessonID, ok := parseIDParam(c, "lessonId")
	if !ok {
		return
	}
	if err := h.lessonService.Delete(c.Request.Context(), userID, c.Param("id"), lessonID); err != nil {
		writeServiceError(c, err, "delete lesson failed")
		return
	}
	response.OK(c, gin.H{"deleted_lesson_id": lessonID})
}

func bindLesson(c *gin.Context) (app.LessonInput, bool) {
	var req LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return app.LessonInput{}, false
	}
	return app.LessonInput{
		Title:     req.Title,
		Problem:   req.Problem,
		Impact:    req.Impact,
		RootCause: req.RootCause,
		Solution:  req.Solution,
	}, true
}
