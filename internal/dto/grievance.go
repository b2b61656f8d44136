package dto

import (
	"time"

	"github.com/noah-isme/grievance-api/internal/models"
)

// SubmitGrievanceRequest is the payload for filing a grievance. Title and
// description are trimmed before validation.
type SubmitGrievanceRequest struct {
	Title        string                    `json:"title" validate:"required,min=5,max=100"`
	Description  string                    `json:"description" validate:"required,min=10,max=1000"`
	Category     *models.GrievanceCategory `json:"category,omitempty" validate:"omitempty,oneof=academic administrative infrastructure harassment technical other"`
	Priority     *models.GrievancePriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	ChatChannel  *string                   `json:"chat_channel,omitempty" validate:"omitempty,max=128"`
	Confidential bool                      `json:"confidential"`
}

// UpdateStatusRequest moves a grievance through its workflow and optionally
// reassigns it in the same write.
type UpdateStatusRequest struct {
	Status     models.GrievanceStatus `json:"status" validate:"required"`
	AssignedTo *string                `json:"assigned_to,omitempty" validate:"omitempty,min=1,max=64"`
}

// AddCommentRequest appends a note to a grievance.
type AddCommentRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// SetConfidentialRequest toggles the confidential flag.
type SetConfidentialRequest struct {
	Confidential *bool `json:"confidential" validate:"required"`
}

// EscalateRequest asks for a manual escalation. Empty roles use the configured defaults.
type EscalateRequest struct {
	RecipientRoles []models.UserRole `json:"recipient_roles" validate:"omitempty,dive,oneof=staff admin super_admin"`
}

// GrievanceQuery mirrors supported listing filters.
type GrievanceQuery struct {
	Status    string `form:"status"`
	Category  string `form:"category"`
	Priority  string `form:"priority"`
	Escalated string `form:"escalated"`
	Assignee  string `form:"assigned_to"`
	Search    string `form:"q"`
	From      string `form:"from"`
	To        string `form:"to"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// GrievanceView is the tracking projection of a grievance. Anonymous viewers
// never see identities, and confidential grievances also hide their
// description and comments.
type GrievanceView struct {
	TrackingID   string                   `json:"tracking_id"`
	Title        string                   `json:"title"`
	Description  string                   `json:"description,omitempty"`
	Category     models.GrievanceCategory `json:"category"`
	Priority     models.GrievancePriority `json:"priority"`
	Status       models.GrievanceStatus   `json:"status"`
	Escalated    bool                     `json:"escalated"`
	Confidential bool                     `json:"confidential"`
	SubmittedBy  string                   `json:"submitted_by,omitempty"`
	AssignedTo   string                   `json:"assigned_to,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
	ResolvedAt   *time.Time               `json:"resolved_at,omitempty"`
	EscalatedAt  *time.Time               `json:"escalated_at,omitempty"`
	Comments     []CommentView            `json:"comments,omitempty"`
}

// CommentView is a comment as shown on the tracking page.
type CommentView struct {
	AuthorID  string    `json:"author_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewGrievanceView projects g for a viewer. full selects the authenticated
// projection with identities.
func NewGrievanceView(g *models.Grievance, full bool) *GrievanceView {
	view := &GrievanceView{
		TrackingID:   g.TrackingID,
		Title:        g.Title,
		Category:     g.Category,
		Priority:     g.Priority,
		Status:       g.Status,
		Escalated:    g.Escalated,
		Confidential: g.Confidential,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
		ResolvedAt:   g.ResolvedAt,
		EscalatedAt:  g.EscalatedAt,
	}
	if g.Confidential && !full {
		return view
	}
	view.Description = g.Description
	view.Comments = make([]CommentView, 0, len(g.Comments))
	for _, c := range g.Comments {
		cv := CommentView{Text: c.Body, CreatedAt: c.CreatedAt}
		if full {
			cv.AuthorID = c.AuthorID
		}
		view.Comments = append(view.Comments, cv)
	}
	if full {
		view.SubmittedBy = g.SubmittedBy
		if g.AssignedTo != nil {
			view.AssignedTo = *g.AssignedTo
		}
	}
	return view
}

// SweepResult summarises one escalation sweep.
type SweepResult struct {
	Scanned     int           `json:"scanned"`
	Escalated   int           `json:"escalated"`
	Notified    int           `json:"notified"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	TrackingIDs []string      `json:"tracking_ids,omitempty"`
}

// ExportRequest selects the format and rows of a grievance export.
type ExportRequest struct {
	Format   string `json:"format" validate:"required,oneof=csv pdf"`
	Status   string `json:"status,omitempty"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// ExportResponse points at a rendered export.
type ExportResponse struct {
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}
