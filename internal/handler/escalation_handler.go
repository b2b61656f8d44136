package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

type escalationService interface {
	EscalateManually(ctx context.Context, id string, req dto.EscalateRequest, actor *models.JWTClaims) (*models.Grievance, error)
}

type sweepRunner interface {
	RunOnce(ctx context.Context) (*dto.SweepResult, error)
}

// EscalationHandler exposes manual escalation and on-demand sweeps.
type EscalationHandler struct {
	service escalationService
	sweeps  sweepRunner
}

// NewEscalationHandler constructs the handler.
func NewEscalationHandler(svc escalationService, sweeps sweepRunner) *EscalationHandler {
	return &EscalationHandler{service: svc, sweeps: sweeps}
}

// Escalate godoc
// @Summary Escalate grievance
// @Description Escalate immediately. Already escalated grievances are returned unchanged.
// @Tags Escalation
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.EscalateRequest false "Recipient roles"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id}/escalate [post]
func (h *EscalationHandler) Escalate(c *gin.Context) {
	var req dto.EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid escalation payload"))
		return
	}
	g, err := h.service.EscalateManually(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, g, nil)
}

// Sweep godoc
// @Summary Run escalation sweep
// @Tags Escalation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/escalations/sweep [post]
func (h *EscalationHandler) Sweep(c *gin.Context) {
	result, err := h.sweeps.RunOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
