package services

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/sneakbots/sentinel/pkg/models"
	"github.com/sneakbots/sentinel/test/util"
)

// fixture is the user → guideline → moderator → deployment chain most
// service tests need.
type fixture struct {
	pool       *pgxpool.Pool
	user       *models.User
	guideline  *models.Guideline
	moderator  *models.Moderator
	deployment *models.Deployment
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	pool := util.SetupTestDatabase(t)

	user, err := NewUserService(pool).Register(ctx, "fixture-user", "secret")
	require.NoError(t, err)

	guideline, err := NewGuidelineService(pool).CreateGuideline(ctx, user.ID, "house rules", "Be kind. No spam.")
	require.NoError(t, err)

	moderator, err := NewModeratorService(pool).CreateModerator(ctx, user.ID, guideline.ID, "main-mod")
	require.NoError(t, err)

	deployment, err := NewDeploymentService(pool).CreateDeployment(
		ctx, moderator.ID, models.PlatformDiscord, "general", []byte(`{"guild_id": 1}`))
	require.NoError(t, err)

	return &fixture{
		pool:       pool,
		user:       user,
		guideline:  guideline,
		moderator:  moderator,
		deployment: deployment,
	}
}
