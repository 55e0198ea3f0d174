package security

import (
	"log/slog"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
)

// HasRole is the role check: it passes iff the member holds role.
func HasRole(member *domain.Member, role domain.Role) bool {
	return member != nil && member.Role == role
}

// IsOwner is the ownership check: it passes iff the member created the project.
func IsOwner(member *domain.Member, project *domain.Project) bool {
	return member != nil && project != nil && member.ID != "" && member.ID == project.CreatedBy
}

// OwnershipPolicy decides who may change a project.
type OwnershipPolicy int

const (
	// CreatorOrAdmin lets the creator or any admin change a project.
	CreatorOrAdmin OwnershipPolicy = iota
	// CreatorOnly lets nobody but the creator change a project.
	CreatorOnly
)

func (p OwnershipPolicy) String() string {
	if p == CreatorOnly {
		return "creator-only"
	}
	return "creator-or-admin"
}

// Authorizer composes the role and ownership checks for project mutations
type Authorizer struct {
	policy OwnershipPolicy
	logger *slog.Logger
}

// NewAuthorizer creates an authorizer with the given policy
func NewAuthorizer(policy OwnershipPolicy, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{policy: policy, logger: logger}
}

// Policy returns the configured ownership policy.
func (a *Authorizer) Policy() OwnershipPolicy {
	return a.policy
}

// AuthorizeProjectChange returns domain.ErrForbidden unless actor may update or delete project.
func (a *Authorizer) AuthorizeProjectChange(actor *domain.Member, project *domain.Project, action string) error {
	if IsOwner(actor, project) {
		return nil
	}
	if a.policy == CreatorOrAdmin && HasRole(actor, domain.RoleAdmin) {
		return nil
	}

	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}
	a.logger.Warn("project access denied",
		slog.String("member_id", actorID),
		slog.String("project_id", project.ProjectID),
		slog.String("owner_id", project.CreatedBy),
		slog.String("action", action),
		slog.String("policy", a.policy.String()),
	)
	return domain.NewError(domain.ErrForbidden, "Not authorized to %s this project", action)
}
