package models

import "time"

// NotificationEventType names the grievance change a notification reports.
type NotificationEventType string

const (
	EventGrievanceSubmitted     NotificationEventType = "grievance.submitted"
	EventGrievanceStatusChanged NotificationEventType = "grievance.status_changed"
	EventGrievanceCommented     NotificationEventType = "grievance.commented"
	EventGrievanceEscalated     NotificationEventType = "grievance.escalated"
)

// EscalationTrigger distinguishes sweep escalations from manual ones.
type EscalationTrigger string

const (
	TriggerSweep  EscalationTrigger = "sweep"
	TriggerManual EscalationTrigger = "manual"
)

// NotificationRecipient is a person addressed by a notification. Channels
// skip recipients lacking the address they need.
type NotificationRecipient struct {
	UserID string   `json:"user_id,omitempty"`
	Name   string   `json:"name,omitempty"`
	Role   UserRole `json:"role,omitempty"`
	Email  string   `json:"email,omitempty"`
	Phone  string   `json:"phone,omitempty"`
	ChatID string   `json:"chat_id,omitempty"`
}

// IsZero reports an event addressed to a channel rather than a person.
func (r NotificationRecipient) IsZero() bool {
	return r == NotificationRecipient{}
}

// NotificationEvent is a single fire-and-forget message about a grievance.
type NotificationEvent struct {
	ID          string                `json:"id"`
	Type        NotificationEventType `json:"type"`
	GrievanceID string                `json:"grievance_id"`
	TrackingID  string                `json:"tracking_id"`
	Title       string                `json:"title"`
	Category    GrievanceCategory     `json:"category"`
	Priority    GrievancePriority     `json:"priority"`
	OldStatus   GrievanceStatus       `json:"old_status,omitempty"`
	NewStatus   GrievanceStatus       `json:"new_status,omitempty"`
	Trigger     EscalationTrigger     `json:"trigger,omitempty"`
	Recipient   NotificationRecipient `json:"recipient"`
	ChatChannel string                `json:"chat_channel,omitempty"`
	Message     string                `json:"message"`
	OccurredAt  time.Time             `json:"occurred_at"`
}
