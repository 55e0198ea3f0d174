package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
)

// PasswordHasher hashes member secrets
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// MemberService handles member account operations
type MemberService struct {
	members domain.MemberRepository
	hasher  PasswordHasher
	logger  *slog.Logger
}

// CreateMemberInput is the payload for registering a member
type CreateMemberInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// UpdateMemberInput carries the fields to change; nil fields are left alone.
type UpdateMemberInput struct {
	Name     *string      `json:"name"`
	Email    *string      `json:"email"`
	Password *string      `json:"password"`
	Role     *domain.Role `json:"role"`
}

// NewMemberService creates a new member service
func NewMemberService(members domain.MemberRepository, hasher PasswordHasher, logger *slog.Logger) *MemberService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemberService{members: members, hasher: hasher, logger: logger}
}

// Create registers a new member with a hashed password
func (s *MemberService) Create(ctx context.Context, in CreateMemberInput) (*domain.Member, error) {
	member := &domain.Member{
		Name:  strings.TrimSpace(in.Name),
		Email: domain.NormalizeEmail(in.Email),
		Role:  in.Role,
	}
	if member.Role == "" {
		member.Role = domain.DefaultRole
	}
	if err := validateMember(member); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, domain.NewError(domain.ErrValidation, "Password is required")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, member.Email, ""); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, err
	}
	member.PasswordHash = hash

	if err := s.members.Create(ctx, member); err != nil {
		return nil, err
	}

	s.logger.Info("member created",
		slog.String("member_id", member.ID),
		slog.String("role", string(member.Role)),
	)
	return member, nil
}

// List returns all members, newest first
func (s *MemberService) List(ctx context.Context) ([]*domain.Member, error) {
	return s.members.List(ctx)
}

// Get returns a member by id
func (s *MemberService) Get(ctx context.Context, id string) (*domain.Member, error) {
	id, err := canonicalID(id, "Invalid member id")
	if err != nil {
		return nil, err
	}
	return s.members.GetByID(ctx, id)
}

// Update patches a member. A supplied password is re-hashed.
func (s *MemberService) Update(ctx context.Context, id string, in UpdateMemberInput) (*domain.Member, error) {
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		member.Name = strings.TrimSpace(*in.Name)
	}
	emailChanged := false
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		emailChanged = email != member.Email
		member.Email = email
	}
	if in.Role != nil {
		member.Role = *in.Role
	}
	if err := validateMember(member); err != nil {
		return nil, err
	}
	if emailChanged {
		if err := s.ensureEmailFree(ctx, member.Email, member.ID); err != nil {
			return nil, err
		}
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.String("error", err.Error()))
			return nil, err
		}
		member.PasswordHash = hash
	}

	if err := s.members.Update(ctx, member); err != nil {
		return nil, err
	}
	s.logger.Info("member updated", slog.String("member_id", member.ID))
	return member, nil
}

// Delete removes a member. Projects that reference the member are left untouched.
func (s *MemberService) Delete(ctx context.Context, id string) error {
	id, err := canonicalID(id, "Invalid member id")
	if err != nil {
		return err
	}
	if err := s.members.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("member deleted", slog.String("member_id", id))
	return nil
}

func (s *MemberService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.members.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return domain.NewError(domain.ErrDuplicateEmail, "Member with this email already exists")
	}
	return nil
}

func validateMember(m *domain.Member) error {
	if m.Name == "" {
		return domain.NewError(domain.ErrValidation, "Name is required")
	}
	if m.Email == "" {
		return domain.NewError(domain.ErrValidation, "Email is required")
	}
	if at := strings.Index(m.Email, "@"); at <= 0 || at == len(m.Email)-1 || strings.ContainsAny(m.Email, " \t") {
		return domain.NewError(domain.ErrValidation, "Please provide a valid email")
	}
	if !m.Role.Valid() {
		return domain.NewError(domain.ErrValidation, "Invalid role: %s", m.Role)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < domain.MinPasswordLength {
		return domain.NewError(domain.ErrValidation, "Password must be at least %d characters", domain.MinPasswordLength)
	}
	return nil
}

// canonicalID parses a uuid and returns its canonical form, or ErrInvalidIdentifier.
func canonicalID(id, message string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", domain.NewError(domain.ErrInvalidIdentifier, "%s", message)
	}
	return parsed.String(), nil
}
