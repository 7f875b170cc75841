package models

import (
	"time"

	"quickclean/pkg/money"
)

// Role is the account kind attached to every authenticated session.
type Role string

const (
	RoleUser   Role = "user"
	RoleWorker Role = "worker"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleWorker, RoleAdmin:
		return true
	}
	return false
}

// Availability is only meaningful for workers.
type Availability string

const (
	AvailabilityActive Availability = "active"
	AvailabilityBusy   Availability = "busy"
)

// Profile is a user account. Workers and admins are profiles with a different role.
type Profile struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone,omitempty"`
	Role         Role         `json:"role"`
	Availability Availability `json:"availability_status"`
	Rating       *float64     `json:"rating,omitempty"`
	PasswordHash string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// WorkerProfile adds the read-derived earnings to a worker's profile.
type WorkerProfile struct {
	Profile
	TotalEarnings money.Amount `json:"total_earnings"`
	CompletedJobs int          `json:"completed_jobs"`
}

// Session identifies the caller of an authenticated request.
type Session struct {
	UserID string
	Role   Role
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,oneof=user worker"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token   string   `json:"token"`
	Profile *Profile `json:"profile"`
}

// AvailabilityUpdateRequest toggles a worker between active and busy.
type AvailabilityUpdateRequest struct {
	Availability Availability `json:"availability_status" validate:"required,oneof=active busy"`
}
