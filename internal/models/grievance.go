package models

import "time"

// GrievanceStatus is the lifecycle state of a grievance.
type GrievanceStatus string

const (
	StatusSubmitted  GrievanceStatus = "submitted"
	StatusInProgress GrievanceStatus = "in_progress"
	StatusResolved   GrievanceStatus = "resolved"
	StatusClosed     GrievanceStatus = "closed"
)

// grievanceTransitions lists the permitted next states for each status.
// Anything not listed is rejected, including self transitions.
var grievanceTransitions = map[GrievanceStatus][]GrievanceStatus{
	StatusSubmitted:  {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusResolved, StatusClosed, StatusSubmitted},
	StatusResolved:   {StatusClosed, StatusInProgress},
	StatusClosed:     {StatusInProgress},
}

// Valid reports whether s is a known status.
func (s GrievanceStatus) Valid() bool {
	_, ok := grievanceTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is permitted.
func (s GrievanceStatus) CanTransitionTo(next GrievanceStatus) bool {
	for _, allowed := range grievanceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextStatuses returns a copy of the permitted targets from s.
func (s GrievanceStatus) NextStatuses() []GrievanceStatus {
	next := grievanceTransitions[s]
	out := make([]GrievanceStatus, len(next))
	copy(out, next)
	return out
}

// IsOpen reports statuses still subject to escalation.
func (s GrievanceStatus) IsOpen() bool {
	return s == StatusSubmitted || s == StatusInProgress
}

// GrievanceStatuses lists statuses in workflow order.
var GrievanceStatuses = []GrievanceStatus{StatusSubmitted, StatusInProgress, StatusResolved, StatusClosed}

// GrievanceCategory classifies the subject of a grievance.
type GrievanceCategory string

const (
	CategoryAcademic       GrievanceCategory = "academic"
	CategoryAdministrative GrievanceCategory = "administrative"
	CategoryInfrastructure GrievanceCategory = "infrastructure"
	CategoryHarassment     GrievanceCategory = "harassment"
	CategoryTechnical      GrievanceCategory = "technical"
	CategoryOther          GrievanceCategory = "other"
)

// GrievanceCategories lists categories in their tie-break order.
var GrievanceCategories = []GrievanceCategory{
	CategoryHarassment,
	CategoryTechnical,
	CategoryInfrastructure,
	CategoryAcademic,
	CategoryAdministrative,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c GrievanceCategory) Valid() bool {
	for _, known := range GrievanceCategories {
		if c == known {
			return true
		}
	}
	return false
}

// GrievancePriority orders grievances by urgency.
type GrievancePriority string

const (
	PriorityLow    GrievancePriority = "low"
	PriorityMedium GrievancePriority = "medium"
	PriorityHigh   GrievancePriority = "high"
	PriorityUrgent GrievancePriority = "urgent"
)

// GrievancePriorities lists priorities from least to most urgent.
var GrievancePriorities = []GrievancePriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is a known priority.
func (p GrievancePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// IsElevated reports priorities that widen escalation recipients.
func (p GrievancePriority) IsElevated() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// DefaultEscalationThresholds maps each priority to the age after which an
// open grievance escalates.
var DefaultEscalationThresholds = map[GrievancePriority]time.Duration{
	PriorityUrgent: 4 * time.Hour,
	PriorityHigh:   24 * time.Hour,
	PriorityMedium: 72 * time.Hour,
	PriorityLow:    168 * time.Hour,
}

// ClassificationSource records who decided the category and priority.
type ClassificationSource string

const (
	ClassifiedByUser    ClassificationSource = "user"
	ClassifiedByKeyword ClassificationSource = "keyword"
	ClassifiedByAI      ClassificationSource = "ai"
)

// Grievance is a complaint record. Version increments on every write and
// guards concurrent updates.
type Grievance struct {
	ID           string               `db:"id" json:"id"`
	TrackingID   string               `db:"tracking_id" json:"tracking_id"`
	Title        string               `db:"title" json:"title"`
	Description  string               `db:"description" json:"description"`
	Category     GrievanceCategory    `db:"category" json:"category"`
	Priority     GrievancePriority    `db:"priority" json:"priority"`
	Status       GrievanceStatus      `db:"status" json:"status"`
	SubmittedBy  string               `db:"submitted_by" json:"submitted_by"`
	AssignedTo   *string              `db:"assigned_to" json:"assigned_to,omitempty"`
	Escalated    bool                 `db:"escalated" json:"escalated"`
	EscalatedAt  *time.Time           `db:"escalated_at" json:"escalated_at,omitempty"`
	ResolvedAt   *time.Time           `db:"resolved_at" json:"resolved_at,omitempty"`
	Confidential bool                 `db:"confidential" json:"confidential"`
	ChatChannel  *string              `db:"chat_channel" json:"chat_channel,omitempty"`
	ClassifiedBy ClassificationSource `db:"classified_by" json:"classified_by"`
	Version      int64                `db:"version" json:"version"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `db:"updated_at" json:"updated_at"`

	Comments []GrievanceComment `db:"-" json:"comments,omitempty"`
}

// IsAssignedTo reports whether userID is the current assignee.
func (g *Grievance) IsAssignedTo(userID string) bool {
	return g.AssignedTo != nil && *g.AssignedTo == userID
}

// Age returns how long the grievance has existed at now.
func (g *Grievance) Age(now time.Time) time.Duration {
	return now.Sub(g.CreatedAt)
}

// GrievanceComment is an append-only note on a grievance. Seq is assigned by
// the database and defines arrival order.
type GrievanceComment struct {
	ID          string    `db:"id" json:"id"`
	GrievanceID string    `db:"grievance_id" json:"grievance_id"`
	AuthorID    string    `db:"author_id" json:"author_id"`
	Body        string    `db:"body" json:"text"`
	Seq         int64     `db:"seq" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Listing page sizes.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// GrievanceFilter narrows grievance listings.
type GrievanceFilter struct {
	Status      *GrievanceStatus
	Category    *GrievanceCategory
	Priority    *GrievancePriority
	Escalated   *bool
	SubmittedBy string
	AssignedTo  string
	// Viewer limits confidential grievances to those submitted by or assigned to this user.
	Viewer      string
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// Bounds returns the effective page and page size. Oversized pages are
// clamped to MaxPageSize.
func (f GrievanceFilter) Bounds() (page, size int) {
	page, size = f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return page, size
}

// GrievanceStats summarises grievance volume.
type GrievanceStats struct {
	Total       int                       `json:"total"`
	Escalated   int                       `json:"escalated"`
	ByStatus    map[GrievanceStatus]int   `json:"by_status"`
	ByCategory  map[GrievanceCategory]int `json:"by_category"`
	ByPriority  map[GrievancePriority]int `json:"by_priority"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// Classification is the outcome of categorising grievance text.
type Classification struct {
	Category GrievanceCategory    `json:"category"`
	Priority GrievancePriority    `json:"priority"`
	Source   ClassificationSource `json:"source"`
}

// SafetyVerdict is the outcome of a content safety check.
type SafetyVerdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}
