package model

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
	RoleViewer   Role = "VIEWER"
)

type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsOperator() bool {
	return p.Role == RoleOperator
}

// CanMarkRepaired reports whether the principal may flip a detection to
// REPAIRED. Viewers are read-only.
func (p Principal) CanMarkRepaired() bool {
	return p.IsAdmin() || p.IsOperator()
}
