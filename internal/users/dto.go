package users

import (
	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
)

// CreateUserDTO carries the fields required to provision a user.
type CreateUserDTO struct {
	Email       string         `json:"email" validate:"required,email"`
	DisplayName string         `json:"display_name" validate:"required"`
	Role        enums.UserRole `json:"role"`
}

// ToModel converts the DTO into the persistence model.
func (d CreateUserDTO) ToModel() *models.User {
	role := d.Role
	if role == "" {
		role = enums.UserRoleUser
	}
	return &models.User{
		Email:       d.Email,
		DisplayName: d.DisplayName,
		Role:        role,
		IsActive:    true,
	}
}
