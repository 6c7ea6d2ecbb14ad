package auth

import (
	"slices"

	"github.com/listenupapp/notes-server/internal/domain"
	domainerrors "github.com/listenupapp/notes-server/internal/errors"
)

// Capability names a privileged action.
type Capability string

const (
	// CapManageAISettings allows reading and writing the enrichment settings.
	CapManageAISettings Capability = "ai_settings:manage"
)

var roleCapabilities = map[domain.Role][]Capability{
	domain.RoleOwner:  {CapManageAISettings},
	domain.RoleMember: nil,
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Email  string
	Role   domain.Role
}

// NewPrincipal derives a principal from a user row.
func NewPrincipal(u *domain.User) *Principal {
	return &Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// Can reports whether the principal holds capability c.
func (p *Principal) Can(c Capability) bool {
	if p == nil {
		return false
	}
	return slices.Contains(roleCapabilities[p.Role], c)
}

// Require returns an UNAUTHORIZED error for a missing principal and a
// FORBIDDEN error when the capability is not held.
func Require(p *Principal, c Capability) error {
	if p == nil || p.UserID == "" {
		return domainerrors.Unauthorized("authentication required")
	}
	if !p.Can(c) {
		return domainerrors.Forbidden("insufficient permissions")
	}
	return nil
}
