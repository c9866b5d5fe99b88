package domain

import "errors"

// Role represents an operator's access level on the admin API.
type Role string

const (
	// RoleAdmin can trigger payout runs and manage payee payout state.
	RoleAdmin Role = "admin"

	// RoleOperator can trigger single-payee payouts and view everything.
	RoleOperator Role = "operator"

	// RoleViewer can only view payments, estimates and eligibility.
	RoleViewer Role = "viewer"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RoleViewer:   true,
}

// IsValid checks if the role is a valid role.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanTriggerPayouts checks if the role can trigger payout runs.
func (r Role) CanTriggerPayouts() bool {
	return r == RoleAdmin || r == RoleOperator
}

// CanPausePayouts checks if the role can pause or resume a payee's payouts.
func (r Role) CanPausePayouts() bool {
	return r == RoleAdmin
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)
