package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/reconcile/domain"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func trackerParams(t *testing.T, tracking, migrate bool) (TrackerParams, *clock.FakeClock) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	if migrate {
		require.NoError(t, conn.AutoMigrate(&domain.SyncJob{}))
	}
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	cfg := config.Config{}
	cfg.Sync.JobTracking = tracking
	fake := clock.NewFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	return TrackerParams{DB: conn, Cfg: cfg, Log: zap.NewNop(), GenID: node, Clock: fake}, fake
}

func TestNewJobTrackerFallsBackToNoop(t *testing.T) {
	p, _ := trackerParams(t, false, true)
	assert.IsType(t, NoopTracker{}, NewJobTracker(t.Context(), p))

	p, _ = trackerParams(t, true, false)
	assert.IsType(t, NoopTracker{}, NewJobTracker(t.Context(), p))

	p, _ = trackerParams(t, true, true)
	assert.IsType(t, &GormTracker{}, NewJobTracker(t.Context(), p))
}

func TestGormTrackerLifecycle(t *testing.T) {
	p, fake := trackerParams(t, true, true)
	tracker := NewJobTracker(t.Context(), p)
	orgID := snowflake.ID(42)

	ok, err := tracker.Start(t.Context(), JobStart{OrgID: &orgID, Resource: ResourceCalls, Metadata: map[string]any{"start_date": "2025-03-01"}})
	require.NoError(t, err)
	fake.Advance(3 * time.Second)
	tracker.Finish(t.Context(), ok, JobResult{Records: 12})

	fake.Advance(time.Minute)
	bad, err := tracker.Start(t.Context(), JobStart{Resource: ResourceExtensions})
	require.NoError(t, err)
	tracker.Finish(t.Context(), bad, JobResult{Err: errors.New("boom")})

	jobs, err := tracker.List(t.Context(), JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, bad.ID, jobs[0].ID)
	assert.Equal(t, domain.JobFailed, jobs[0].Status)
	assert.Equal(t, "boom", *jobs[0].ErrorMessage)

	assert.Equal(t, domain.JobCompleted, jobs[1].Status)
	assert.Equal(t, 12, jobs[1].RecordsProcessed)
	assert.Equal(t, "mightycall", jobs[1].IntegrationType)
	assert.Equal(t, "2025-03-01", jobs[1].Metadata["start_date"])
	require.NotNil(t, jobs[1].CompletedAt)

	scoped, err := tracker.List(t.Context(), JobFilter{OrgID: &orgID, Limit: 500})
	require.NoError(t, err)
	assert.Len(t, scoped, 1)
}

func TestNoopTrackerListsNothing(t *testing.T) {
	jobs, err := NoopTracker{}.List(t.Context(), JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
