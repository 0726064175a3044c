package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	"github.com/acadhub/thesis-supervision-api/internal/service"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
	"github.com/acadhub/thesis-supervision-api/pkg/response"
	"github.com/acadhub/thesis-supervision-api/pkg/storage"
)

// EngagementHandler wires HTTP endpoints to the engagement service.
type EngagementHandler struct {
	service *service.EngagementService
	reports *storage.LocalStorage
}

// NewEngagementHandler creates a new handler.
func NewEngagementHandler(svc *service.EngagementService, reports *storage.LocalStorage) *EngagementHandler {
	return &EngagementHandler{service: svc, reports: reports}
}

// List godoc
// @Summary List engagements
// @Description The caller's engagement (student) or advisees (instructor)
// @Tags Engagements
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /engagements [get]
func (h *EngagementHandler) List(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	engagements, err := h.service.ListForPrincipal(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, engagements, nil)
}

// Get godoc
// @Summary Get engagement
// @Tags Engagements
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /engagements/{id} [get]
func (h *EngagementHandler) Get(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.service.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Update engagement status
// @Description Advisor moves the engagement between IN_PROGRESS, COMPLETED and CANCELLED
// @Tags Engagements
// @Accept json
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /engagements/{id}/status [patch]
func (h *EngagementHandler) UpdateStatus(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Status models.EngagementStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}

	engagement, err := h.service.UpdateStatus(c.Request.Context(), principal, c.Param("id"), payload.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, engagement, nil)
}

// Delete godoc
// @Summary Delete engagement
// @Description Remove the engagement with its tasks, attachments and thesis files
// @Tags Engagements
// @Param id path string true "Engagement ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /engagements/{id} [delete]
func (h *EngagementHandler) Delete(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// UploadThesisFile godoc
// @Summary Upload thesis document
// @Description Student submits a thesis document for the engagement
// @Tags Engagements
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Engagement ID"
// @Param file formData file true "Thesis document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /engagements/{id}/thesis-files [post]
func (h *EngagementHandler) UploadThesisFile(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	upload, closeFn, err := uploadFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	file, err := h.service.UploadThesisFile(c.Request.Context(), principal, c.Param("id"), upload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, file)
}

// ListThesisFiles godoc
// @Summary List thesis documents
// @Tags Engagements
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /engagements/{id}/thesis-files [get]
func (h *EngagementHandler) ListThesisFiles(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	files, err := h.service.ListThesisFiles(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, files, nil)
}

// ProgressReport godoc
// @Summary Export progress report
// @Description Advisor exports the task board as CSV or PDF
// @Tags Engagements
// @Produce json
// @Param id path string true "Engagement ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /engagements/{id}/report [post]
func (h *EngagementHandler) ProgressReport(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := models.ReportFormat(c.DefaultQuery("format", string(models.ReportCSV)))
	report, err := h.service.ProgressReport(c.Request.Context(), principal, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

// DownloadReport godoc
// @Summary Download generated report
// @Description Serve a report referenced by a signed token
// @Tags Engagements
// @Produce octet-stream
// @Param token query string true "Signed report token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /reports/download [get]
func (h *EngagementHandler) DownloadReport(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	relPath, err := h.service.OpenReport(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.File(h.reports.Path(relPath))
}
