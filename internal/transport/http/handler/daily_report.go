package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"buildscope/internal/app"
	"buildscope/internal/model"
	"buildscope/internal/transport/http/response"
)

type DailyReportHandler struct {
	reportService *app.DailyReportService
}

type DailyReportRequest struct {
	Date           string           `json:"date" binding:"required"`
	Summary        string           `json:"summary" binding:"required"`
	ClientComments string           `json:"client_comments"`
	Weather        model.Weather    `json:"weather"`
	Manpower       []model.Manpower `json:"manpower"`
	WorkAreas      []model.WorkArea `json:"work_areas"`
	Photos         []model.Photo    `json:"photos"`
	Notes          string           `json:"notes"`
	Safety         string           `json:"safety"`
}

func NewDailyReportHandler(reportService *app.DailyReportService) *DailyReportHandler {
	return &DailyReportHandler{reportService: reportService}
}

func (h *DailyReportHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	reports, err := h.reportService.List(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "list daily reports failed")
		return
	}
	response.OK(c, reports)
}

func (h *DailyReportHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	reportID, ok := parseIDParam(c, "reportId")
	if !ok {
		return
	}
	report, err := h.reportService.Get(c.Request.Context(), userID, c.Param("id"), reportID)
	if err != nil {
		writeServiceError(c, err, "get daily report failed")
		return
	}
	response.OK(c, report)
}

func (h *DailyReportHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	input, ok := bindDailyReport(c)
	if !ok {
		return
	}
	report, err := h.reportService.Create(c.Request.Context(), userID, c.Param("id"), input)
	if err != nil {
		writeServiceError(c, err, "create daily report failed")
		return
	}
	response.Created(c, report)
}

func (h *DailyReportHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	reportID, ok := parseIDParam(c, "reportId")
	if !ok {
		return
	}
	input, ok := bindDailyReport(c)
	if !ok {
		return
	}
	report, err := h.reportService.Update(c.Request.Context(), userID, c.Param("id"), reportID, input)
	if err != nil {
		writeServiceError(c, err, "update daily report failed")
		return
	}
	response.OK(c, report)
}

func (h *DailyReportHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	reportID, ok := parseIDParam(c, "reportId")
	if !ok {
		return
	}
	if err := h.reportService.Delete(c.Request.Context(), userID, c.Param("id"), reportID); err != nil {
		writeServiceError(c, err, "delete daily report failed")
		return
	}
	response.OK(c, gin.H{"deleted_report_id": reportID})
}

func bindDailyReport(c *gin.Context) (app.DailyReportInput, bool) {
	var req DailyReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return app.DailyReportInput{}, false
	}
	return app.DailyReportInput{
		Date:           req.Date,
		Summary:        req.Summary,
		ClientComments: req.ClientComments,
		Weather:        req.Weather,
		Manpower:       req.Manpower,
		WorkAreas:      req.WorkAreas,
		Photos:         req.Photos,
		Notes:          req.Notes,
		Safety:         req.Safety,
	}, true
}
