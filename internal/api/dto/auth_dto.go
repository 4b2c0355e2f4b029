package dto

import (
	"time"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/service"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateUserRequest provisions an account.
type CreateUserRequest struct {
	Name       string          `json:"name" validate:"required,max=120"`
	Email      string          `json:"email" validate:"required,email"`
	Password   string          `json:"password" validate:"required,min=8"`
	Role       string          `json:"role" validate:"omitempty,oneof=user admin superadmin"`
	AssignedTo *UnitRefRequest `json:"assigned_to"`
}

// Input converts the payload into a service input.
func (r CreateUserRequest) Input() service.UserCreateInput {
	input := service.UserCreateInput{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		Role:     domain.Role(r.Role),
	}
	if r.AssignedTo != nil {
		input.AssignedTo = r.AssignedTo.Ref()
	}
	return input
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Role       domain.Role      `json:"role"`
	AssignedTo *UnitRefResponse `json:"assigned_to,omitempty"`
}

// NewUserResponse hides the password hash.
func NewUserResponse(user *domain.User) UserResponse {
	resp := UserResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
	if !user.AssignedTo.IsZero() {
		resp.AssignedTo = &UnitRefResponse{ID: user.AssignedTo.ID, Kind: user.AssignedTo.Kind}
	}
	return resp
}
