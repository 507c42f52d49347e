package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/billing-engine/models"
	testhelpers "github.com/zapflow/billing-engine/testing"
	"github.com/zapflow/billing-engine/utils"
)

func setupQueueRepoTest(t *testing.T) (BillingQueueRepository, *models.BillingQueue) {
	t.Helper()

	tdb, err := testhelpers.SetupTestDB()
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := tdb.TeardownTestDB(); err != nil {
			t.Logf("teardown: %v", err)
		}
	})

	fixtures := testhelpers.NewTestFixtures(tdb)
	tenant, err := fixtures.CreateTestTenant()
	require.NoError(t, err)
	template, err := fixtures.CreateTestTemplate(tenant.ID, models.TemplateTypeNotification)
	require.NoError(t, err)
	_, queue, err := fixtures.CreateTestCampaign(tenant.ID, template.ID, models.TemplateTypeNotification, 3)
	require.NoError(t, err)

	return NewBillingQueueRepository(tdb.DB), queue
}

func TestAcquireForProcessingSingleWinner(t *testing.T) {
	repo, queue := setupQueueRepoTest(t)
	ctx := context.Background()

	won, err := repo.AcquireForProcessing(ctx, queue.ID, "worker-a")
	require.NoError(t, err)
	assert.True(t, won)

	// A concurrent duplicate delivery of the same queue must lose.
	won, err = repo.AcquireForProcessing(ctx, queue.ID, "worker-b")
	require.NoError(t, err)
	assert.False(t, won)

	held, err := repo.ByID(ctx, queue.ID)
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, models.QueueStatusRunning, held.Status)
	require.NotNil(t, held.ProcessingBy)
	assert.Equal(t, "worker-a", *held.ProcessingBy)
}

func TestReleaseProcessingReturnsQueueToPool(t *testing.T) {
	repo, queue := setupQueueRepoTest(t)
	ctx := context.Background()

	won, err := repo.AcquireForProcessing(ctx, queue.ID, "worker-a")
	require.NoError(t, err)
	require.True(t, won)

	// Only the holder can release.
	require.NoError(t, repo.ReleaseProcessing(ctx, queue.ID, "worker-b", models.QueueStatusPending))
	held, err := repo.ByID(ctx, queue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusRunning, held.Status)

	require.NoError(t, repo.ReleaseProcessing(ctx, queue.ID, "worker-a", models.QueueStatusPending))
	released, err := repo.ByID(ctx, queue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, released.Status)
	assert.Nil(t, released.ProcessingBy)

	won, err = repo.AcquireForProcessing(ctx, queue.ID, "worker-b")
	require.NoError(t, err)
	assert.True(t, won)
}

func TestReleaseProcessingCompletes(t *testing.T) {
	repo, queue := setupQueueRepoTest(t)
	ctx := context.Background()

	won, err := repo.AcquireForProcessing(ctx, queue.ID, "worker-a")
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, repo.ReleaseProcessing(ctx, queue.ID, "worker-a", models.QueueStatusCompleted))

	done, err := repo.ByID(ctx, queue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
}

func TestRequeueStale(t *testing.T) {
	repo, queue := setupQueueRepoTest(t)
	ctx := context.Background()

	won, err := repo.AcquireForProcessing(ctx, queue.ID, "worker-a")
	require.NoError(t, err)
	require.True(t, won)

	// The holder is still heartbeating, so nothing is stale yet.
	requeued, err := repo.RequeueStale(ctx, queue.ID, utils.UTCNow().Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, requeued)

	requeued, err = repo.RequeueStale(ctx, queue.ID, utils.UTCNow().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, requeued)

	swept, err := repo.ByID(ctx, queue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, swept.Status)
	assert.Nil(t, swept.ProcessingBy)
}
