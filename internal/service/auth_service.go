package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
	"github.com/aryan0dhankhar/projecthub/internal/observability/metrics"
)

// TokenIssuer mints bearer tokens for authenticated members
type TokenIssuer interface {
	GenerateToken(memberID, role string) (string, error)
}

// AuthService handles authentication operations
type AuthService struct {
	members domain.MemberRepository
	hasher  PasswordHasher
	tokens  TokenIssuer
	logger  *slog.Logger
}

// LoginResult represents login response
type LoginResult struct {
	Token  string         `json:"token"`
	Member *domain.Member `json:"member"`
}

// NewAuthService creates a new authentication service
func NewAuthService(
	members domain.MemberRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		members: members,
		hasher:  hasher,
		tokens:  tokens,
		logger:  logger,
	}
}

// Login authenticates a member by email and password and returns a bearer token
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.NewError(domain.ErrValidation, "Email and password are required")
	}

	member, err := s.members.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("login attempt with unknown email")
		metrics.ObserveAuthFailure("invalid_credentials")
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(member.PasswordHash, password) {
		s.logger.Info("login failed with wrong password", slog.String("member_id", member.ID))
		metrics.ObserveAuthFailure("invalid_credentials")
		return nil, invalidCredentials()
	}

	token, err := s.tokens.GenerateToken(member.ID, string(member.Role))
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.Info("member logged in",
		slog.String("member_id", member.ID),
		slog.String("role", string(member.Role)),
	)
	return &LoginResult{Token: token, Member: member}, nil
}

// ResolveMember loads the member named by a token subject
func (s *AuthService) ResolveMember(ctx context.Context, id string) (*domain.Member, error) {
	id, err := canonicalID(id, "Invalid member id")
	if err != nil {
		return nil, err
	}
	return s.members.GetByID(ctx, id)
}

func invalidCredentials() error {
	return domain.NewError(domain.ErrInvalidCredentials, "Invalid credentials")
}
