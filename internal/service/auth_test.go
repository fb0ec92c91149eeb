package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"libris-backend/internal/domain"
	"libris-backend/internal/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokens() security.TokenManager {
	return security.NewTokenManager(testSecret, 30*time.Minute, 24*time.Hour)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesMember", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, newTestTokens())

		userRepo.On("GetByEmail", ctx, "alice@example.com").Return(nil, nil)
		userRepo.On("GetByUsername", ctx, "alice").Return(nil, nil)
		userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

		user, err := svc.Register(ctx, "alice@example.com", "alice", "Alice", "Smith", "s3cret", "", "")
		require.NoError(t, err)
		assert.Equal(t, domain.UserRoleMember, user.Role)
		assert.True(t, user.Active)
		assert.NotEmpty(t, user.PasswordHash)
		assert.NotEqual(t, "s3cret", user.PasswordHash)
		userRepo.AssertExpectations(t)
	})

	t.Run("RejectsTakenEmail", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, newTestTokens())

		userRepo.On("GetByEmail", ctx, "alice@example.com").Return(&domain.User{ID: 1}, nil)

		_, err := svc.Register(ctx, "alice@example.com", "alice2", "", "", "s3cret", "", "")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("RejectsTakenUsername", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, newTestTokens())

		userRepo.On("GetByEmail", ctx, "bob@example.com").Return(nil, nil)
		userRepo.On("GetByUsername", ctx, "alice").Return(&domain.User{ID: 1}, nil)

		_, err := svc.Register(ctx, "bob@example.com", "alice", "", "", "s3cret", "", "")
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := security.HashPassword("s3cret")
	require.NoError(t, err)

	activeUser := &domain.User{
		ID:           3,
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: hash,
		Role:         domain.UserRoleMember,
		Active:       true,
	}

	t.Run("ByUsername", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, newTestTokens())

		userRepo.On("GetByUsername", ctx, "alice").Return(activeUser, nil)

		access, refresh, user, err := svc.Login(ctx, "alice", "s3cret")
		require.NoError(t, err)
		assert.NotEmpty(t, access)
		assert.NotEmpty(t, refresh)
		assert.Equal(t, int32(3), user.ID)
	})

	t.Run("FallsBackToEmail", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, newTestTokens())

		userRepo.On("GetByUsername", ctx, "alice@example.com").Return(nil, nil)
		userRepo.On("GetByEmail", ctx, "alice@example.com").Return(activeUser, nil)

		_, _, user, err := svc.Login(ctx, "alice@example.com", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, int32(3), user.ID)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, newTestTokens())

		userRepo.On("GetByUsername", ctx, "alice").Return(activeUser, nil)

		_, _, _, err := svc.Login(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, newTestTokens())

		userRepo.On("GetByUsername", ctx, "nobody").Return(nil, nil)
		userRepo.On("GetByEmail", ctx, "nobody").Return(nil, nil)

		_, _, _, err := svc.Login(ctx, "nobody", "s3cret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("DisabledAccount", func(t *testing.T) {
		disabled := *activeUser
		disabled.Active = false

		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, newTestTokens())

		userRepo.On("GetByUsername", ctx, "alice").Return(&disabled, nil)

		_, _, _, err := svc.Login(ctx, "alice", "s3cret")
		assert.ErrorIs(t, err, ErrAccountDisabled)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	tokens := newTestTokens()

	activeUser := &domain.User{ID: 3, Email: "alice@example.com", Role: domain.UserRoleMember, Active: true}

	t.Run("IssuesNewPair", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, tokens)

		refresh, err := tokens.GenerateRefreshToken(activeUser)
		require.NoError(t, err)

		userRepo.On("GetByID", ctx, int32(3)).Return(activeUser, nil)

		access, newRefresh, err := svc.Refresh(ctx, refresh)
		require.NoError(t, err)
		assert.NotEmpty(t, access)
		assert.NotEmpty(t, newRefresh)
	})

	t.Run("RejectsAccessTokenAsRefresh", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, tokens)

		access, err := tokens.GenerateAccessToken(activeUser)
		require.NoError(t, err)

		_, _, err = svc.Refresh(ctx, access)
		assert.ErrorIs(t, err, security.ErrWrongTokenType)
	})

	t.Run("DeactivatedAccountCannotRefresh", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := NewAuthService(userRepo, tokens)

		refresh, err := tokens.GenerateRefreshToken(activeUser)
		require.NoError(t, err)

		disabled := *activeUser
		disabled.Active = false
		userRepo.On("GetByID", ctx, int32(3)).Return(&disabled, nil)

		_, _, err = svc.Refresh(ctx, refresh)
		assert.ErrorIs(t, err, ErrAccountDisabled)
	})
}
