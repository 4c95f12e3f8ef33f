package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakbots/sentinel/test/util"
)

func TestUserRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	pool := util.SetupTestDatabase(t)
	svc := NewUserService(pool)

	user, err := svc.Register(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "hunter2", user.PasswordHash)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := svc.Authenticate(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Authenticate(ctx, "nobody", "hunter2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	pool := util.SetupTestDatabase(t)
	svc := NewUserService(pool)

	_, err := svc.Register(ctx, "bob", "pw")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "bob", "other")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUserRegisterValidation(t *testing.T) {
	ctx := context.Background()
	pool := util.SetupTestDatabase(t)
	svc := NewUserService(pool)

	_, err := svc.Register(ctx, "", "pw")
	assert.True(t, IsValidationError(err))

	_, err = svc.Register(ctx, "carol", "")
	assert.True(t, IsValidationError(err))
}

func TestUserDeleteCascades(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	require.NoError(t, NewUserService(f.pool).DeleteUser(ctx, f.user.ID))

	_, err := NewGuidelineService(f.pool).GetGuideline(ctx, f.guideline.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewModeratorService(f.pool).GetModerator(ctx, f.moderator.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserDeleteMissing(t *testing.T) {
	ctx := context.Background()
	pool := util.SetupTestDatabase(t)

	err := NewUserService(pool).DeleteUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
