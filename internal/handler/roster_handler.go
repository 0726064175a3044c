package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	"github.com/acadhub/thesis-supervision-api/internal/service"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
	"github.com/acadhub/thesis-supervision-api/pkg/response"
)

// RosterHandler wires HTTP endpoints to the roster service.
type RosterHandler struct {
	service *service.RosterService
}

// NewRosterHandler creates a new handler.
func NewRosterHandler(svc *service.RosterService) *RosterHandler {
	return &RosterHandler{service: svc}
}

// ListInstructors godoc
// @Summary Browse instructor directory
// @Tags Roster
// @Produce json
// @Param search query string false "Name or department filter"
// @Param page query int false "Page" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /roster/instructors [get]
func (h *RosterHandler) ListInstructors(c *gin.Context) {
	page, pageSize := pageParams(c)
	instructors, pagination, err := h.service.ListInstructors(c.Request.Context(), c.Query("search"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, pagination)
}

// ListStudents godoc
// @Summary Browse student directory
// @Description Instructors look up students to invite
// @Tags Roster
// @Produce json
// @Param search query string false "Name or enrollment filter"
// @Param page query int false "Page" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /roster/students [get]
func (h *RosterHandler) ListStudents(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, pageSize := pageParams(c)
	students, pagination, err := h.service.ListStudents(c.Request.Context(), principal, c.Query("search"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// SetStudentStatus godoc
// @Summary Activate or deactivate student
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /roster/students/{id}/status [patch]
func (h *RosterHandler) SetStudentStatus(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Status models.StudentStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}

	student, err := h.service.SetStudentStatus(c.Request.Context(), principal, c.Param("id"), payload.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// SetInstructorRole godoc
// @Summary Change instructor role
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /roster/instructors/{id}/role [patch]
func (h *RosterHandler) SetInstructorRole(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Role models.InstructorRole `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "role required"))
		return
	}

	instructor, err := h.service.SetInstructorRole(c.Request.Context(), principal, c.Param("id"), payload.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}
