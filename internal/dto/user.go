package dto

import "github.com/noah-isme/qr-attendance-api/internal/models"

// CreateUserRequest is the payload for POST /users.
type CreateUserRequest struct {
	Name     string          `json:"name" validate:"required"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	Role     models.UserRole `json:"role" validate:"required"`
}

// ImportResult summarises a roster CSV upload.
type ImportResult struct {
	Success int      `json:"success"`
	Errors  int      `json:"errors"`
	Total   int      `json:"total"`
	Details []string `json:"details"`
	Message string   `json:"message"`
}

// SetupResponse reports the bootstrap teacher account.
type SetupResponse struct {
	Message string          `json:"message"`
	Admin   models.UserInfo `json:"admin"`
	Created bool            `json:"created"`
}
