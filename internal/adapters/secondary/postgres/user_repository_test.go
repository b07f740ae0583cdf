package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

// newTestUser inserts a user with a unique email.
func newTestUser(t *testing.T, ctx context.Context, role domain.Role) *domain.User {
	t.Helper()
	require.NotNil(t, testPool, "testPool is nil. TestMain may not have run.")

	user, err := NewUserRepository(testPool).Create(ctx, &domain.User{
		ID:           uuid.New(),
		FullName:     "Test User",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hashedpassword",
		Role:         role,
		IsActive:     true,
	})
	require.NoError(t, err)
	return user
}

func TestUserRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)

	email := "Case.User+" + uuid.NewString()[:8] + "@Example.com"
	created, err := repo.Create(ctx, &domain.User{
		ID:           uuid.New(),
		FullName:     "Test User",
		Email:        email,
		PasswordHash: "hashedpassword",
		Role:         domain.RoleAgent,
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAgent, created.Role)
	assert.False(t, created.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, "Test User", byEmail.FullName)
	assert.Equal(t, "hashedpassword", byEmail.PasswordHash)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)
	assert.True(t, byID.IsActive)
}

func TestUserRepository_GetByEmail_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)
	user := newTestUser(t, ctx, domain.RoleCustomer)

	found, err := repo.GetByEmail(ctx, strings.ToUpper(user.Email))
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)
	user := newTestUser(t, ctx, domain.RoleCustomer)

	_, err := repo.Create(ctx, &domain.User{
		ID:           uuid.New(),
		FullName:     "Someone Else",
		Email:        user.Email,
		PasswordHash: "x",
		IsActive:     true,
	})
	assert.ErrorIs(t, err, apperrors.ErrUserExists)
}

func TestUserRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)

	_, err := repo.GetByEmail(ctx, "nonexistent@example.com")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUserRepository_DefaultsRole(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)

	created, err := repo.Create(ctx, &domain.User{
		FullName:     "No Role",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, domain.RoleCustomer, created.Role)
}
