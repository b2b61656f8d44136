package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

type grievanceService interface {
	Submit(ctx context.Context, req dto.SubmitGrievanceRequest, actor *models.JWTClaims) (*models.Grievance, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest, actor *models.JWTClaims) (*models.Grievance, error)
	AddComment(ctx context.Context, id string, req dto.AddCommentRequest, actor *models.JWTClaims) (*models.GrievanceComment, error)
	Track(ctx context.Context, rawID string, viewer *models.JWTClaims) (*dto.GrievanceView, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Grievance, error)
	List(ctx context.Context, query dto.GrievanceQuery, actor *models.JWTClaims) ([]models.Grievance, *models.Pagination, error)
	SetConfidential(ctx context.Context, id string, req dto.SetConfidentialRequest, actor *models.JWTClaims) (*models.Grievance, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Stats(ctx context.Context) (*models.GrievanceStats, bool, error)
	History(ctx context.Context, id string) ([]models.AuditLog, error)
}

// GrievanceHandler exposes the grievance lifecycle over HTTP.
type GrievanceHandler struct {
	service grievanceService
}

// NewGrievanceHandler constructs the handler.
func NewGrievanceHandler(svc grievanceService) *GrievanceHandler {
	return &GrievanceHandler{service: svc}
}

// Submit godoc
// @Summary Submit grievance
// @Description File a new grievance. Category and priority are inferred when omitted.
// @Tags Grievances
// @Accept json
// @Produce json
// @Param payload body dto.SubmitGrievanceRequest true "Grievance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /grievances [post]
func (h *GrievanceHandler) Submit(c *gin.Context) {
	var req dto.SubmitGrievanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grievance payload"))
		return
	}
	g, err := h.service.Submit(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, g)
}

// List godoc
// @Summary List grievances
// @Description Paginated grievances visible to the caller
// @Tags Grievances
// @Produce json
// @Param status query string false "Status"
// @Param category query string false "Category"
// @Param priority query string false "Priority"
// @Param escalated query bool false "Escalated"
// @Param q query string false "Search title and description"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grievances [get]
func (h *GrievanceHandler) List(c *gin.Context) {
	var query dto.GrievanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, page, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, page)
}

// Stats godoc
// @Summary Grievance statistics
// @Tags Grievances
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grievances/stats [get]
func (h *GrievanceHandler) Stats(c *gin.Context) {
	stats, hit, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get grievance
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id} [get]
func (h *GrievanceHandler) Get(c *gin.Context) {
	g, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, g, nil)
}

// UpdateStatus godoc
// @Summary Change grievance status
// @Description Move a grievance along its workflow, optionally assigning it
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grievances/{id}/status [patch]
func (h *GrievanceHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	g, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, g, nil)
}

// AddComment godoc
// @Summary Comment on grievance
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.AddCommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Router /grievances/{id}/comments [post]
func (h *GrievanceHandler) AddComment(c *gin.Context) {
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}
	comment, err := h.service.AddComment(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// SetConfidential godoc
// @Summary Toggle confidentiality
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.SetConfidentialRequest true "Confidential flag"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id}/confidential [patch]
func (h *GrievanceHandler) SetConfidential(c *gin.Context) {
	var req dto.SetConfidentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confidentiality payload"))
		return
	}
	g, err := h.service.SetConfidential(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, g, nil)
}

// Delete godoc
// @Summary Delete grievance
// @Tags Grievances
// @Param id path string true "Grievance ID"
// @Success 204 {object} response.Envelope
// @Router /grievances/{id} [delete]
func (h *GrievanceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Grievance audit trail
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id}/history [get]
func (h *GrievanceHandler) History(c *gin.Context) {
	logs, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Track godoc
// @Summary Track grievance
// @Description Public status lookup by tracking ID. Authenticated owners see identities.
// @Tags Tracking
// @Produce json
// @Param trackingId path string true "Tracking ID (GRV-YYYY-NNNNNN)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /track/{trackingId} [get]
func (h *GrievanceHandler) Track(c *gin.Context) {
	view, err := h.service.Track(c.Request.Context(), c.Param("trackingId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
