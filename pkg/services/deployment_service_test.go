package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakbots/sentinel/pkg/models"
)

func TestDeploymentCreateStartsOffline(t *testing.T) {
	f := setupFixture(t)
	assert.Equal(t, models.DeploymentOffline, f.deployment.State)
	assert.JSONEq(t, `{"guild_id": 1}`, string(f.deployment.Conf))
}

func TestDeploymentLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewDeploymentService(f.pool)

	require.NoError(t, svc.TransitionState(ctx, f.deployment.ID, models.DeploymentOffline, models.DeploymentPending))
	require.NoError(t, svc.TransitionState(ctx, f.deployment.ID, models.DeploymentPending, models.DeploymentOnline))

	got, err := svc.GetDeployment(ctx, f.deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentOnline, got.State)

	require.NoError(t, svc.TransitionState(ctx, f.deployment.ID, models.DeploymentOnline, models.DeploymentOffline))
}

func TestDeploymentTransitionStateMismatch(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewDeploymentService(f.pool)

	// Row is OFFLINE; a PENDING→ONLINE CAS must fail and change nothing.
	err := svc.TransitionState(ctx, f.deployment.ID, models.DeploymentPending, models.DeploymentOnline)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := svc.GetDeployment(ctx, f.deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentOffline, got.State)
}

func TestDeploymentTransitionMissing(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	err := NewDeploymentService(f.pool).TransitionState(ctx, uuid.New(), models.DeploymentOffline, models.DeploymentPending)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeploymentForceOffline(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewDeploymentService(f.pool)

	require.NoError(t, svc.TransitionState(ctx, f.deployment.ID, models.DeploymentOffline, models.DeploymentPending))
	require.NoError(t, svc.ForceOffline(ctx, f.deployment.ID))

	got, err := svc.GetDeployment(ctx, f.deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentOffline, got.State)
}
