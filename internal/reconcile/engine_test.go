package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	calldomain "github.com/smallbiznis/switchboard/internal/call/domain"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/mightycall"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	phonerepository "github.com/smallbiznis/switchboard/internal/phonenumber/repository"
	phoneservice "github.com/smallbiznis/switchboard/internal/phonenumber/service"
	"github.com/smallbiznis/switchboard/internal/reconcile/domain"
	"github.com/smallbiznis/switchboard/internal/reconcile/repository"
	recordingdomain "github.com/smallbiznis/switchboard/internal/recording/domain"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeAPI struct {
	tokenErr   error
	lastCreds  *mightycall.Credentials
	numbers    []mightycall.PhoneNumber
	calls      []mightycall.Call
	journal    []mightycall.JournalRequest
	recordings []mightycall.Recording
	sms        []mightycall.JournalRequest
	extensions []mightycall.Extension
	callFilter mightycall.CallFilter
}

func (f *fakeAPI) Token(ctx context.Context, creds *mightycall.Credentials) (*mightycall.Token, error) {
	f.lastCreds = creds
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &mightycall.Token{AccessToken: "tok", APIKey: "key"}, nil
}

func (f *fakeAPI) PhoneNumbers(ctx context.Context, tok *mightycall.Token) ([]mightycall.PhoneNumber, error) {
	return f.numbers, nil
}

func (f *fakeAPI) Calls(ctx context.Context, tok *mightycall.Token, filter mightycall.CallFilter) ([]mightycall.Call, error) {
	f.callFilter = filter
	return f.calls, nil
}

func (f *fakeAPI) JournalRequests(ctx context.Context, tok *mightycall.Token, filter mightycall.JournalFilter) ([]mightycall.JournalRequest, error) {
	return f.journal, nil
}

func (f *fakeAPI) Recordings(ctx context.Context, tok *mightycall.Token, rng mightycall.DateRange) ([]mightycall.Recording, error) {
	return f.recordings, nil
}

func (f *fakeAPI) SMS(ctx context.Context, tok *mightycall.Token, rng mightycall.DateRange) ([]mightycall.JournalRequest, error) {
	return f.sms, nil
}

func (f *fakeAPI) Extensions(ctx context.Context, tok *mightycall.Token) ([]mightycall.Extension, error) {
	return f.extensions, nil
}

type engineFixture struct {
	engine *Engine
	api    *fakeAPI
	conn   *gorm.DB
	phones phonenumberdomain.Service
	node   *snowflake.Node
	clock  *clock.FakeClock
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&phonenumberdomain.PhoneNumber{},
		&calldomain.Call{},
		&calldomain.Extension{},
		&recordingdomain.Recording{},
		&domain.Report{},
		&domain.SMSMessage{},
		&domain.SyncJob{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	phones := phoneservice.New(phoneservice.Params{
		Log:   log,
		Repo:  phonerepository.NewRepository(conn, config.Config{}),
		GenID: node,
		Clock: fake,
	})
	cfg := config.Config{}
	cfg.Sync.JobTracking = true
	tracker := NewJobTracker(t.Context(), TrackerParams{DB: conn, Cfg: cfg, Log: log, GenID: node, Clock: fake})

	api := &fakeAPI{}
	engine := NewEngine(Params{
		Log:      log,
		API:      api,
		Repo:     repository.NewRepository(conn),
		PhoneSvc: phones,
		Tracker:  tracker,
		GenID:    node,
		Clock:    fake,
	})
	return &engineFixture{engine: engine, api: api, conn: conn, phones: phones, node: node, clock: fake}
}

// assignNumber stores number and gives it to a fresh org.
func (f *engineFixture) assignNumber(t *testing.T, number string) snowflake.ID {
	t.Helper()
	ctx := t.Context()

	_, err := f.phones.Upsert(ctx, []phonenumberdomain.PhoneNumber{{ExternalID: number, Number: number, IsActive: true}})
	require.NoError(t, err)
	all, err := f.phones.ListAll(ctx, true)
	require.NoError(t, err)

	var id snowflake.ID
	for _, n := range all {
		if n.Number == number {
			id = n.ID
		}
	}
	require.NotZero(t, id)

	orgID := f.node.Generate()
	require.NoError(t, f.phones.Assign(ctx, orgID, []snowflake.ID{id}))
	return orgID
}

func testRange(t *testing.T) mightycall.DateRange {
	t.Helper()
	rng, err := ResolveRange("2025-03-01", "2025-03-07", time.Now())
	require.NoError(t, err)
	return rng
}

func TestSyncReportsWithoutNumbersFails(t *testing.T) {
	f := newEngineFixture(t)
	orgID := f.node.Generate()

	_, err := f.engine.SyncReports(t.Context(), orgID, testRange(t))
	require.ErrorIs(t, err, domain.ErrNoPhoneNumbers)
	assert.Equal(t, "No phone numbers assigned to this organization", err.Error())

	jobs, err := f.engine.ListJobs(t.Context(), JobFilter{OrgID: &orgID})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobFailed, jobs[0].Status)
	require.NotNil(t, jobs[0].ErrorMessage)
	assert.Equal(t, "reports", jobs[0].Metadata["resource"])
}

func TestOrgScopedSyncsWithoutNumbersStoreNothing(t *testing.T) {
	f := newEngineFixture(t)
	f.assignNumber(t, "+15550001111")
	orgID := f.node.Generate()

	f.api.calls = []mightycall.Call{
		{ExternalID: "c1", From: "+15559990000", To: "+15550001111", StartedAt: "2025-03-03T09:00:00Z"},
		{ExternalID: "c2", From: "+15559990001", To: "+15550002222", StartedAt: "2025-03-03T10:00:00Z"},
	}
	f.api.recordings = []mightycall.Recording{
		{ID: "r1", URL: "https://cdn.example.com/r1.mp3", Metadata: mightycall.Record{"to": "+15550001111"}},
	}
	f.api.sms = []mightycall.JournalRequest{{ID: "m1", From: "+15559990000", To: "+15550001111", Text: "hi"}}

	for _, resource := range []Resource{ResourceCalls, ResourceRecordings, ResourceSMS} {
		_, err := f.engine.Sync(t.Context(), resource, &orgID, testRange(t))
		assert.ErrorIs(t, err, domain.ErrNoPhoneNumbers, resource)
	}

	for _, model := range []any{&calldomain.Call{}, &recordingdomain.Recording{}, &domain.SMSMessage{}} {
		var count int64
		require.NoError(t, f.conn.Model(model).Where("org_id = ?", orgID).Count(&count).Error)
		assert.Zero(t, count)
	}
}

func TestSyncCallsDropsOtherOrgsNumbers(t *testing.T) {
	f := newEngineFixture(t)
	f.assignNumber(t, "+15550001111")
	orgID := f.assignNumber(t, "+15551234567")

	f.api.calls = []mightycall.Call{
		{ExternalID: "mine", From: "+15559990000", To: "(555) 123-4567", StartedAt: "2025-03-03T09:00:00Z"},
		{ExternalID: "theirs", From: "+15559990000", To: "+15550001111", StartedAt: "2025-03-03T10:00:00Z"},
	}

	res, err := f.engine.SyncCalls(t.Context(), orgID, testRange(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)

	var calls []calldomain.Call
	require.NoError(t, f.conn.Where("org_id = ?", orgID).Find(&calls).Error)
	require.Len(t, calls, 1)
	assert.Equal(t, "mine", *calls[0].ExternalID)
}

func TestSyncRecordingsDropsOtherOrgsNumbers(t *testing.T) {
	f := newEngineFixture(t)
	f.assignNumber(t, "+15550001111")
	orgID := f.assignNumber(t, "+15551234567")

	f.api.recordings = []mightycall.Recording{
		{ID: "mine", URL: "https://cdn.example.com/mine.mp3", Date: "2025-03-02T10:00:00Z", Metadata: mightycall.Record{"to": "+15551234567"}},
		{ID: "theirs", URL: "https://cdn.example.com/theirs.mp3", Date: "2025-03-02T11:00:00Z", Metadata: mightycall.Record{"to": "+15550001111"}},
		{ID: "unknown", URL: "https://cdn.example.com/unknown.mp3", Date: "2025-03-02T12:00:00Z"},
	}

	res, err := f.engine.SyncRecordings(t.Context(), orgID, testRange(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)

	var recs []recordingdomain.Recording
	require.NoError(t, f.conn.Where("org_id = ?", orgID).Find(&recs).Error)
	require.Len(t, recs, 1)
	assert.Equal(t, "mine", *recs[0].CallID)
}

func TestSyncReportsReplacesRange(t *testing.T) {
	f := newEngineFixture(t)
	orgID := f.assignNumber(t, "+15551234567")
	f.api.journal = []mightycall.JournalRequest{
		{ID: "j1", Created: "2025-03-01T10:00:00Z", From: "+15550000001", To: "+15551234567", Status: "completed", DurationSeconds: 20},
		{ID: "j2", Created: "2025-03-01T11:00:00Z", From: "+15550000002", To: "+15551234567", Status: "missed"},
		{ID: "j3", Created: "2025-03-02T11:00:00Z", From: "+15550000002", To: "+19998887777", Status: "completed"},
	}

	res, err := f.engine.SyncReports(t.Context(), orgID, testRange(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)
	assert.NotZero(t, res.JobID)

	// A second run over the same range must not duplicate rows.
	_, err = f.engine.SyncReports(t.Context(), orgID, testRange(t))
	require.NoError(t, err)

	var reports []domain.Report
	require.NoError(t, f.conn.Where("org_id = ?", orgID).Find(&reports).Error)
	require.Len(t, reports, 1)
	assert.EqualValues(t, 2, reports[0].Data["calls_count"])
	assert.EqualValues(t, 1, reports[0].Data["answered_count"])
	assert.EqualValues(t, 1, reports[0].Data["missed_count"])
	assert.EqualValues(t, 20, reports[0].Data["total_duration"])
}

func TestSyncCallsFallsBackToJournal(t *testing.T) {
	f := newEngineFixture(t)
	orgID := f.assignNumber(t, "+15551234567")
	f.api.journal = []mightycall.JournalRequest{
		{ID: "j1", Created: "2025-03-02T10:00:00Z", From: "+15550000001", To: "+15551234567", Status: "completed", DurationSeconds: 61},
	}

	res, err := f.engine.SyncCalls(t.Context(), orgID, testRange(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)
	assert.Equal(t, []string{"+15551234567"}, f.api.callFilter.PhoneNumbers)

	var calls []calldomain.Call
	require.NoError(t, f.conn.Where("org_id = ?", orgID).Find(&calls).Error)
	require.Len(t, calls, 1)
	assert.Equal(t, "j1", *calls[0].ExternalID)
	assert.Equal(t, "inbound", *calls[0].Direction)
	assert.Equal(t, 61, calls[0].DurationSeconds)
	assert.Equal(t, "15551234567", *calls[0].ToNumberDigits)
}

func TestSyncCallsKeepsRowsOutsideRange(t *testing.T) {
	f := newEngineFixture(t)
	orgID := f.assignNumber(t, "+15551234567")
	old := calldomain.Call{ID: f.node.Generate(), OrgID: orgID, StartedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), CreatedAt: time.Now()}
	require.NoError(t, f.conn.Create(&old).Error)

	f.api.calls = []mightycall.Call{{ExternalID: "c1", From: "+15550000001", To: "+15551234567", StartedAt: "2025-03-03T09:00:00Z"}}
	_, err := f.engine.SyncCalls(t.Context(), orgID, testRange(t))
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.conn.Model(&calldomain.Call{}).Where("org_id = ?", orgID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSyncSMSIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	orgID := f.assignNumber(t, "+15551234567")
	f.api.sms = []mightycall.JournalRequest{
		{ID: "m1", Created: "2025-03-02T10:00:00Z", From: "+15550000001", To: "+15551234567", Text: "hi"},
	}

	for range 2 {
		_, err := f.engine.SyncSMS(t.Context(), orgID, testRange(t))
		require.NoError(t, err)
	}

	var rows []domain.SMSMessage
	require.NoError(t, f.conn.Where("org_id = ?", orgID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].PhoneNumberID)
	assert.Equal(t, "received", rows[0].Status)
}

func TestSyncRecordingsAndExtensions(t *testing.T) {
	f := newEngineFixture(t)
	orgID := f.assignNumber(t, "+15551234567")
	f.api.recordings = []mightycall.Recording{
		{ID: "r1", URL: "https://cdn.example.com/r1.mp3", Date: "2025-03-02T10:00:00Z", Metadata: mightycall.Record{"to": "+15551234567"}},
	}
	f.api.extensions = []mightycall.Extension{{Extension: "101", DisplayName: "Front desk"}}

	res, err := f.engine.Sync(t.Context(), ResourceRecordings, &orgID, testRange(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)

	res, err = f.engine.Sync(t.Context(), ResourceExtensions, nil, mightycall.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)

	var ext calldomain.Extension
	require.NoError(t, f.conn.Where("extension = ?", "101").First(&ext).Error)
	assert.Equal(t, "Front desk", *ext.DisplayName)
}

func TestSyncRequiresOrgForScopedResources(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Sync(t.Context(), ResourceCalls, nil, testRange(t))
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestSyncPhoneNumbersUpserts(t *testing.T) {
	f := newEngineFixture(t)
	f.api.numbers = []mightycall.PhoneNumber{
		{ExternalID: "p1", Number: "+15551234567", IsActive: true},
		{ExternalID: "p2", Number: "+15557654321", IsActive: true},
	}

	res, err := f.engine.SyncPhoneNumbers(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)

	all, err := f.phones.ListAll(t.Context(), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpstreamFailureMarksJobFailed(t *testing.T) {
	f := newEngineFixture(t)
	orgID := f.assignNumber(t, "+15551234567")
	f.api.tokenErr = &mightycall.AuthError{Status: 401}

	_, err := f.engine.SyncCalls(t.Context(), orgID, testRange(t))
	require.Error(t, err)
	assert.True(t, mightycall.IsUpstream(err))

	jobs, err := f.engine.ListJobs(t.Context(), JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobFailed, jobs[0].Status)
}

func TestTestConnectionUsesGlobalCredentials(t *testing.T) {
	f := newEngineFixture(t)
	f.api.numbers = []mightycall.PhoneNumber{{Number: "+15551234567"}}

	res, err := f.engine.TestConnection(t.Context(), nil)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "global", res.Source)
	assert.Equal(t, 1, res.PhoneNumbers)
	assert.Nil(t, f.api.lastCreds)
}
