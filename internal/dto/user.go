package dto

import "github.com/noah-isme/grievance-api/internal/models"

// CreateUserRequest provisions an account.
type CreateUserRequest struct {
	Email          string          `json:"email" validate:"required,email,max=255"`
	Password       string          `json:"password" validate:"required,min=8,max=72"`
	FullName       string          `json:"full_name" validate:"required,min=2,max=120"`
	Role           models.UserRole `json:"role" validate:"required,oneof=student faculty staff admin super_admin"`
	Department     *string         `json:"department,omitempty" validate:"omitempty,max=120"`
	Phone          *string         `json:"phone,omitempty" validate:"omitempty,e164"`
	TelegramChatID *string         `json:"telegram_chat_id,omitempty" validate:"omitempty,max=64"`
}
