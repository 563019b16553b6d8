package models

import (
	"time"
)

// Roles known to the system. Users without a stored role are students.
const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
	RoleStudent = "student"
)

// Account is a login identity. Used by the built-in token issuer only.
type Account struct {
	UID           string
	Email         string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
}

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

/*
|--------------------------------------------------------------------------
| RESPONSE DTO
|--------------------------------------------------------------------------
*/

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ValidRole reports whether role can be assigned.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleCashier, RoleStudent:
		return true
	}
	return false
}
