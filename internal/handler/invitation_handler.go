package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	"github.com/acadhub/thesis-supervision-api/internal/service"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
	"github.com/acadhub/thesis-supervision-api/pkg/response"
)

// InvitationHandler wires HTTP endpoints to the invitation service.
type InvitationHandler struct {
	service *service.InvitationService
}

// NewInvitationHandler creates a new handler.
func NewInvitationHandler(svc *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{service: svc}
}

// Create godoc
// @Summary Send advising invitation
// @Description Propose thesis supervision to a student
// @Tags Invitations
// @Accept json
// @Produce json
// @Param payload body models.CreateInvitationRequest true "Invitation payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /invitations [post]
func (h *InvitationHandler) Create(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid invitation payload"))
		return
	}

	invitation, err := h.service.Create(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, invitation)
}

// List godoc
// @Summary List invitations
// @Description Invitations received (student) or sent (instructor)
// @Tags Invitations
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invitations [get]
func (h *InvitationHandler) List(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	invitations, err := h.service.ListForPrincipal(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, invitations, nil)
}

// Respond godoc
// @Summary Respond to an invitation
// @Description Accept or reject a pending invitation; acceptance starts the engagement
// @Tags Invitations
// @Accept json
// @Produce json
// @Param id path string true "Invitation ID"
// @Param payload body models.RespondInvitationRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /invitations/{id}/respond [post]
func (h *InvitationHandler) Respond(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.RespondInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	invitation, engagement, err := h.service.Respond(c.Request.Context(), principal, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, models.RespondInvitationResponse{Invitation: invitation, Engagement: engagement}, nil)
}
