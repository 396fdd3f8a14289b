package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"buildscope/internal/app"
	"buildscope/internal/transport/http/response"
)

type ProjectHandler struct {
	projectService *app.ProjectService
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description" binding:"max=4000"`
}

func NewProjectHandler(projectService *app.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), app.CreateProjectInput{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(c, err, "create project failed")
		return
	}
	response.Created(c, project)
}

func (h *ProjectHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projects, err := h.projectService.List(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "list projects failed")
		return
	}
	response.OK(c, projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, err := h.projectService.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "get project failed")
		return
	}
	response.OK(c, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID := c.Param("id")
	if err := h.projectService.Delete(c.Request.Context(), userID, projectID); err != nil {
		writeServiceError(c, err, "delete project failed")
		return
	}
	response.OK(c, gin.H{"deleted_project_id": projectID})
}

func (h *ProjectHandler) DownloadScope(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	export, err := h.projectService.ExportScope(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "export scope failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	c.Data(http.StatusOK, export.ContentType, export.Body)
}
