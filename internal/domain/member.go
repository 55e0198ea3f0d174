package domain

import (
	"context"
	"strings"
	"time"
)

// Role is a member's role, used for authorization.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleDesigner  Role = "designer"
	RoleManager   Role = "manager"
	RoleTester    Role = "tester"
	RoleOther     Role = "other"
)

// DefaultRole is assigned when a member is created without a role.
const DefaultRole = RoleDeveloper

// MinPasswordLength is the shortest plaintext secret accepted for a member.
const MinPasswordLength = 6

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDeveloper, RoleDesigner, RoleManager, RoleTester, RoleOther:
		return true
	}
	return false
}

// Member represents a user account
type Member struct {
	ID           string    `json:"id"`    // UUID assigned by the store
	Name         string    `json:"name"`  // Trimmed, non-empty
	Email        string    `json:"email"` // Lower-cased, unique when present
	PasswordHash string    `json:"-"`     // Bcrypt hash, never serialized
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemberRepository defines data access for members
type MemberRepository interface {
	Create(ctx context.Context, member *Member) error
	GetByID(ctx context.Context, id string) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	// GetByIDs returns the members that exist among ids, in no particular order.
	GetByIDs(ctx context.Context, ids []string) ([]*Member, error)
	List(ctx context.Context) ([]*Member, error)
	Update(ctx context.Context, member *Member) error
	Delete(ctx context.Context, id string) error
}
