package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
)

func TestSyncUserSignature(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulSyncDeploysAndRecords", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		template := env.addTemplate(org.ID, "<div>{{full_name}} | {{email}}</div>")
		env.addAssignment(org.ID, template.ID, models.AssignmentTypeOrganization, nil, nil)

		result := env.engine.SyncUserSignature(ctx, user.ID)
		require.True(t, result.Success)
		assert.Equal(t, "synced", result.Status)
		assert.Equal(t, "jane@acme.test", result.UserEmail)

		deployed := env.deployer.deployed["jane@acme.test"]
		assert.Equal(t, "<div>Jane Doe | jane@acme.test</div>", deployed)

		row := env.syncRows.rows[user.ID]
		require.NotNil(t, row)
		assert.Equal(t, models.SyncStateSynced, row.SyncState)
		assert.Equal(t, template.ID, *row.CurrentTemplateID)
		assert.Equal(t, "organization", *row.AssignmentSource)
		assert.Equal(t, utils.HashContent(deployed), *row.SignatureHash)
		assert.Equal(t, 0, row.SyncAttempts)
		assert.NotNil(t, row.LastSyncedAt)
		assert.Nil(t, row.SyncError)
	})

	t.Run("UnchangedContentSkipsDeploy", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		template := env.addTemplate(org.ID, "<div>{{email}}</div>")
		env.addAssignment(org.ID, template.ID, models.AssignmentTypeOrganization, nil, nil)

		first := env.engine.SyncUserSignature(ctx, user.ID)
		require.True(t, first.Success)
		assert.Equal(t, 1, env.deployer.setCalls)

		second := env.engine.SyncUserSignature(ctx, user.ID)
		require.True(t, second.Success)
		assert.Equal(t, "synced", second.Status)
		// same rendered hash: the provider must not be called again
		assert.Equal(t, 1, env.deployer.setCalls)
	})

	t.Run("ChangedTemplateDeploysAgain", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		template := env.addTemplate(org.ID, "<div>v1 {{email}}</div>")
		env.addAssignment(org.ID, template.ID, models.AssignmentTypeOrganization, nil, nil)

		env.engine.SyncUserSignature(ctx, user.ID)
		template.HTML = "<div>v2 {{email}}</div>"
		result := env.engine.SyncUserSignature(ctx, user.ID)

		require.True(t, result.Success)
		assert.Equal(t, 2, env.deployer.setCalls)
		assert.Contains(t, env.deployer.deployed["jane@acme.test"], "v2")
	})

	t.Run("NoResolutionRecordsSkipped", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")

		result := env.engine.SyncUserSignature(ctx, user.ID)
		require.True(t, result.Success)
		assert.Equal(t, "skipped", result.Status)
		assert.Equal(t, 0, env.deployer.setCalls)

		row := env.syncRows.rows[user.ID]
		require.NotNil(t, row)
		assert.Equal(t, models.SyncStateSkipped, row.SyncState)
		assert.Nil(t, row.CurrentTemplateID)
		assert.Nil(t, row.AssignmentID)
		assert.Equal(t, 0, row.SyncAttempts)
	})

	t.Run("LosingCoverageClearsRenderedContent", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		template := env.addTemplate(org.ID, "<div>{{email}}</div>")
		assignment := env.addAssignment(org.ID, template.ID, models.AssignmentTypeOrganization, nil, nil)

		first := env.engine.SyncUserSignature(ctx, user.ID)
		require.True(t, first.Success)
		require.NotNil(t, env.syncRows.rows[user.ID].RenderedHTML)

		assignment.IsActive = utils.ToPtr(false)
		second := env.engine.SyncUserSignature(ctx, user.ID)
		require.True(t, second.Success)
		assert.Equal(t, "skipped", second.Status)

		row := env.syncRows.rows[user.ID]
		assert.Nil(t, row.RenderedHTML)
		assert.Nil(t, row.SignatureHash)
		// the provider still holds the last deployed signature
		assert.NotEmpty(t, env.deployer.deployed["jane@acme.test"])
	})

	t.Run("InactiveTemplateRecordsError", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		template := env.addTemplate(org.ID, "<div>x</div>")
		template.IsActive = utils.ToPtr(false)
		env.addAssignment(org.ID, template.ID, models.AssignmentTypeOrganization, nil, nil)

		result := env.engine.SyncUserSignature(ctx, user.ID)
		require.False(t, result.Success)
		require.NotNil(t, result.Error)
		assert.Equal(t, "Template not found", *result.Error)

		row := env.syncRows.rows[user.ID]
		assert.Equal(t, models.SyncStateError, row.SyncState)
		assert.Equal(t, 1, row.SyncAttempts)
	})

	t.Run("MissingTemplateIsNotRetriedAutomatically", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		// assignment points at a template that does not exist
		env.addAssignment(org.ID, 999, models.AssignmentTypeOrganization, nil, nil)

		result := env.engine.SyncUserSignature(ctx, user.ID)
		require.False(t, result.Success)
		assert.Equal(t, "error", result.Status)

		// only an explicit mark-pending may re-queue a data problem
		row := env.syncRows.rows[user.ID]
		assert.Equal(t, models.SyncStateError, row.SyncState)
		assert.False(t, row.NeedsSync(utils.MaxSyncRetries))
	})

	t.Run("TransientDeployFailureReturnsToPending", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		template := env.addTemplate(org.ID, "<div>{{email}}</div>")
		env.addAssignment(org.ID, template.ID, models.AssignmentTypeOrganization, nil, nil)
		env.deployer.failWith = errors.New("gmail: 503")

		result := env.engine.SyncUserSignature(ctx, user.ID)
		require.False(t, result.Success)
		assert.Equal(t, "pending", result.Status)

		row := env.syncRows.rows[user.ID]
		assert.Equal(t, models.SyncStatePending, row.SyncState)
		assert.Equal(t, 1, row.SyncAttempts)
		assert.True(t, row.NeedsSync(utils.MaxSyncRetries), "next cycle must pick the row up again")
	})

	t.Run("DeployFailuresExhaustRetryBudget", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		template := env.addTemplate(org.ID, "<div>{{email}}</div>")
		env.addAssignment(org.ID, template.ID, models.AssignmentTypeOrganization, nil, nil)
		env.deployer.failWith = errors.New("gmail: 503")

		// pending -> pending -> failed, never a fourth attempt
		for attempt := 1; attempt < utils.MaxSyncRetries; attempt++ {
			result := env.engine.SyncUserSignature(ctx, user.ID)
			require.False(t, result.Success)
			assert.Equal(t, "pending", result.Status)
			assert.Equal(t, attempt, env.syncRows.rows[user.ID].SyncAttempts)
		}

		result := env.engine.SyncUserSignature(ctx, user.ID)
		require.False(t, result.Success)
		assert.Equal(t, "failed", result.Status)

		row := env.syncRows.rows[user.ID]
		assert.Equal(t, models.SyncStateFailed, row.SyncState)
		assert.Equal(t, utils.MaxSyncRetries, row.SyncAttempts)
		require.NotNil(t, row.SyncError)
		assert.Contains(t, *row.SyncError, "gmail: 503")
		assert.False(t, row.NeedsSync(utils.MaxSyncRetries))
	})

	t.Run("SuccessResetsAttemptCounter", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		template := env.addTemplate(org.ID, "<div>{{email}}</div>")
		env.addAssignment(org.ID, template.ID, models.AssignmentTypeOrganization, nil, nil)

		env.deployer.failWith = errors.New("transient")
		env.engine.SyncUserSignature(ctx, user.ID)
		require.Equal(t, 1, env.syncRows.rows[user.ID].SyncAttempts)

		env.deployer.failWith = nil
		result := env.engine.SyncUserSignature(ctx, user.ID)
		require.True(t, result.Success)
		assert.Equal(t, 0, env.syncRows.rows[user.ID].SyncAttempts)
		assert.Nil(t, env.syncRows.rows[user.ID].SyncError)
	})

	t.Run("MissingUserReportsWithoutRow", func(t *testing.T) {
		env := newFlowEnv()
		result := env.engine.SyncUserSignature(ctx, 404)
		require.False(t, result.Success)
		assert.Equal(t, "skipped", result.Status)
		require.NotNil(t, result.Error)
		assert.Contains(t, *result.Error, "user not found")
		assert.Empty(t, env.syncRows.rows)
	})

	t.Run("InactiveUserReportsWithoutRow", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		user.IsActive = utils.ToPtr(false)

		result := env.engine.SyncUserSignature(ctx, user.ID)
		require.False(t, result.Success)
		assert.Equal(t, "skipped", result.Status)
		assert.Empty(t, env.syncRows.rows)
	})

	t.Run("UnsyncableOrganizationSkips", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		org.GoogleConfigured = utils.ToPtr(false)
		user := env.addUser(org.ID, "jane@acme.test")

		result := env.engine.SyncUserSignature(ctx, user.ID)
		require.False(t, result.Success)
		require.NotNil(t, result.Error)
		assert.Contains(t, *result.Error, "not syncable")
		assert.Empty(t, env.syncRows.rows)
	})

	t.Run("CampaignBannerReachesProvider", func(t *testing.T) {
		env := newFlowEnv()
		org := env.addOrg()
		user := env.addUser(org.ID, "jane@acme.test")
		template := env.addTemplate(org.ID, "<div>{{email}}</div>")
		env.addAssignment(org.ID, template.ID, models.AssignmentTypeOrganization, nil, nil)
		env.campaigns.add(&models.BannerCampaign{
			OrganizationID: org.ID,
			Name:           "Spring Launch",
			BannerURL:      "https://cdn.acme.test/spring.png",
			TargetType:     models.CampaignTargetOrganization,
			Status:         models.CampaignStatusActive,
			StartAt:        utils.UTCNowAdd(-time.Hour),
			EndAt:          utils.UTCNowAdd(time.Hour),
		})

		result := env.engine.SyncUserSignature(ctx, user.ID)
		require.True(t, result.Success)
		assert.Contains(t, env.deployer.deployed["jane@acme.test"], `class="campaign-banner"`)
		assert.Contains(t, env.deployer.deployed["jane@acme.test"], "spring.png")

		row := env.syncRows.rows[user.ID]
		assert.Equal(t, models.EffectiveSourceCampaign, *row.AssignmentSource)
	})
}
