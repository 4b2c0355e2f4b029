package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/bazaar-ticketing/internal/auth"
	"github.com/spec-kit/bazaar-ticketing/internal/config"
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

func (f *fixture) authService() *AuthService {
	return NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		BcryptCost:            bcrypt.MinCost,
	}, AuthDependencies{UserRepo: f.users, Directory: f.directory})
}

func TestAuthService_CreateUserAndLogin(t *testing.T) {
	f := newFixture(t)
	svc := f.authService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, f.superAdmin, UserCreateInput{
		Name:       "Bazaar Clerk",
		Email:      " Clerk@Example.com ",
		Password:   "s3cret-pass",
		AssignedTo: f.marketA.Ref(),
	})
	require.NoError(t, err)
	assert.Equal(t, "clerk@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, f.marketA.Ref(), user.AssignedTo)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	loggedIn, token, exp, err := svc.Login(ctx, "clerk@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, token)
	assert.False(t, exp.IsZero())

	claims, err := auth.NewTokenManager("test-secret", 5).ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, _, _, err = svc.Login(ctx, "clerk@example.com", "wrong")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeUnauthorized), "got %v", err)
	_, _, _, err = svc.Login(ctx, "nobody@example.com", "s3cret-pass")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeUnauthorized), "got %v", err)
}

func TestAuthService_CreateUserRules(t *testing.T) {
	f := newFixture(t)
	svc := f.authService()
	ctx := context.Background()

	tests := []struct {
		name   string
		caller *domain.User
		input  UserCreateInput
		code   string
	}{
		{
			name:   "admin is not enough",
			caller: f.admin,
			input:  UserCreateInput{Name: "x", Email: "x@example.com", Password: "password1"},
			code:   errorutil.CodeForbidden,
		},
		{
			name:   "duplicate email",
			caller: f.superAdmin,
			input:  UserCreateInput{Name: "x", Email: "MARKETER@example.com", Password: "password1"},
			code:   errorutil.CodeConflict,
		},
		{
			name:   "unknown role",
			caller: f.superAdmin,
			input:  UserCreateInput{Name: "x", Email: "y@example.com", Password: "password1", Role: "owner"},
			code:   errorutil.CodeValidation,
		},
		{
			name:   "assignment kind mismatch",
			caller: f.superAdmin,
			input: UserCreateInput{
				Name: "x", Email: "z@example.com", Password: "password1",
				AssignedTo: domain.UnitRef{ID: f.marketA.ID, Kind: domain.UnitKindDepartment},
			},
			code: errorutil.CodeKindMismatch,
		},
		{
			name:  "anonymous",
			input: UserCreateInput{Name: "x", Email: "w@example.com", Password: "password1"},
			code:  errorutil.CodeUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tt.caller, tt.input)
			assert.True(t, errorutil.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestAuthService_EnsureSuperAdmin(t *testing.T) {
	f := newFixture(t)
	svc := f.authService()
	ctx := context.Background()

	created, err := svc.EnsureSuperAdmin(ctx, "Bootstrap", "boot@example.com", "bootstrap-pass", f.itDept.Ref())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureSuperAdmin(ctx, "Bootstrap", "boot@example.com", "other", f.itDept.Ref())
	require.NoError(t, err)
	assert.False(t, created)

	user, _, _, err := svc.Login(ctx, "boot@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, user.IsSuperAdmin())

	created, err = svc.EnsureSuperAdmin(ctx, "", "", "", domain.UnitRef{})
	require.NoError(t, err)
	assert.False(t, created)
}
