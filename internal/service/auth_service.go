package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/bazaar-ticketing/internal/auth"
	"github.com/spec-kit/bazaar-ticketing/internal/config"
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/repository"
	"github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

// AuthService issues tokens for known users and provisions accounts.
type AuthService struct {
	users      repository.UserRepository
	directory  *DirectoryService
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	Directory    *DirectoryService
	TokenManager *auth.TokenManager
}

// UserCreateInput describes an account provisioned by a superadmin.
type UserCreateInput struct {
	Name       string
	Email      string
	Password   string
	Role       domain.Role
	AssignedTo domain.UnitRef
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	tokens := deps.TokenManager
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	}
	return &AuthService{
		users:      deps.UserRepo,
		directory:  deps.Directory,
		tokenMgr:   tokens,
		bcryptCost: cfg.BcryptCost,
	}
}

// Login authenticates a user by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// CreateUser provisions an account. Superadmin only.
func (s *AuthService) CreateUser(ctx context.Context, caller *domain.User, input UserCreateInput) (*domain.User, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	if !caller.IsSuperAdmin() {
		return nil, errorutil.NewForbidden("superadmin role required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, errorutil.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, errorutil.NewValidationError("unknown role", map[string]any{"role": role})
	}
	var assigned domain.UnitRef
	if !input.AssignedTo.IsZero() {
		unit, err := s.directory.Resolve(ctx, input.AssignedTo)
		if err != nil {
			return nil, err
		}
		assigned = unit.Ref()
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		AssignedTo:   assigned,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureSuperAdmin provisions the bootstrap account when no user holds email yet.
// It reports whether an account was created.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, name, email, password string, assignedTo domain.UnitRef) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, nil
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return false, err
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
		AssignedTo:   assignedTo,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}
