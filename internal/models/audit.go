package models

import "time"

// Audit actions recorded for authentication and grievance mutations.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionTokenRefresh   = "TOKEN_REFRESH"
	AuditActionUserCreate     = "USER_CREATE"

	AuditActionGrievanceSubmit       = "GRIEVANCE_SUBMIT"
	AuditActionGrievanceStatus       = "GRIEVANCE_STATUS_CHANGE"
	AuditActionGrievanceComment      = "GRIEVANCE_COMMENT"
	AuditActionGrievanceEscalate     = "GRIEVANCE_ESCALATE"
	AuditActionGrievanceConfidential = "GRIEVANCE_CONFIDENTIAL"
	AuditActionGrievanceDelete       = "GRIEVANCE_DELETE"
	AuditActionGrievanceExport       = "GRIEVANCE_EXPORT"
)

// Audit resource names.
const (
	AuditResourceGrievance = "grievance"
	AuditResourceAuth      = "auth"
	AuditResourceUser      = "user"
)

// AuditLog represents an audit trail record. A nil UserID marks a system actor
// such as the escalation sweep.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  JSONB     `db:"old_values" json:"old_values,omitempty"`
	NewValues  JSONB     `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
