package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent    UserRole = "student"
	RoleFaculty    UserRole = "faculty"
	RoleStaff      UserRole = "staff"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "super_admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleStaff, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdministrative reports roles that see every grievance.
func (r UserRole) IsAdministrative() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// CanHandleGrievances reports roles allowed to move grievances through the workflow.
func (r UserRole) CanHandleGrievances() bool {
	return r == RoleStaff || r.IsAdministrative()
}

// User represents an application user stored in the users table.
type User struct {
	ID             string     `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	FullName       string     `db:"full_name" json:"full_name"`
	Role           UserRole   `db:"role" json:"role"`
	Department     *string    `db:"department" json:"department,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	TelegramChatID *string    `db:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	Active         bool       `db:"active" json:"active"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Recipient converts the user into a notification target.
func (u User) Recipient() NotificationRecipient {
	return NotificationRecipient{
		UserID: u.ID,
		Name:   u.FullName,
		Role:   u.Role,
		Email:  u.Email,
		Phone:  deref(u.Phone),
		ChatID: deref(u.TelegramChatID),
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
