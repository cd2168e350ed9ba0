package model

import "github.com/google/uuid"

// Role is the kind of actor calling into the service.
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleCourier Role = "courier"
	RoleAdmin   Role = "admin"
)

// ParseRole rejects values outside the closed set.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleBuyer, RoleCourier, RoleAdmin:
		return r, nil
	}
	return "", NewValidationError(ErrCodeInvalidRole, "peran tidak dikenal: "+s)
}

// Actor is the authenticated caller, as asserted by the identity provider.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsCourier() bool { return a.Role == RoleCourier }
func (a Actor) IsBuyer() bool   { return a.Role == RoleBuyer }
