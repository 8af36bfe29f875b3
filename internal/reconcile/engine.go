package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/clock"
	integrationdomain "github.com/smallbiznis/switchboard/internal/integration/domain"
	"github.com/smallbiznis/switchboard/internal/mightycall"
	"github.com/smallbiznis/switchboard/internal/observability/metrics"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	"github.com/smallbiznis/switchboard/internal/reconcile/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const integrationType = "mightycall"

type Resource string

const (
	ResourcePhoneNumbers Resource = "phone-numbers"
	ResourceExtensions   Resource = "extensions"
	ResourceReports      Resource = "reports"
	ResourceRecordings   Resource = "recordings"
	ResourceCalls        Resource = "calls"
	ResourceSMS          Resource = "sms"
)

// OrgScoped reports whether the resource is synced per organization.
func (r Resource) OrgScoped() bool {
	switch r {
	case ResourceReports, ResourceRecordings, ResourceCalls, ResourceSMS:
		return true
	}
	return false
}

func ParseResource(raw string) (Resource, error) {
	r := Resource(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case ResourcePhoneNumbers, ResourceExtensions, ResourceReports, ResourceRecordings, ResourceCalls, ResourceSMS:
		return r, nil
	}
	return "", domain.ErrUnknownResource
}

type Result struct {
	JobID    snowflake.ID  `json:"job_id,string,omitempty"`
	Resource Resource      `json:"resource"`
	OrgID    *snowflake.ID `json:"org_id,omitempty"`
	Records  int           `json:"records_processed"`
}

type ConnectionResult struct {
	OK           bool   `json:"success"`
	Source       string `json:"credentials_source"`
	PhoneNumbers int    `json:"phone_numbers"`
}

type Params struct {
	fx.In

	Log          *zap.Logger
	API          mightycall.API
	Repo         domain.Repository
	PhoneSvc     phonenumberdomain.Service
	Integrations integrationdomain.Service `optional:"true"`
	Tracker      JobTracker
	GenID        *snowflake.Node
	Clock        clock.Clock
	Metrics      *metrics.Metrics     `optional:"true"`
	SyncMetrics  *metrics.SyncMetrics `optional:"true"`
}

// Engine pulls provider data into the local tables.
type Engine struct {
	log          *zap.Logger
	api          mightycall.API
	repo         domain.Repository
	phoneSvc     phonenumberdomain.Service
	integrations integrationdomain.Service
	tracker      JobTracker
	genID        *snowflake.Node
	clock        clock.Clock
	metrics      *metrics.Metrics
	syncMetrics  *metrics.SyncMetrics
}

func NewEngine(p Params) *Engine {
	tracker := p.Tracker
	if tracker == nil {
		tracker = NoopTracker{}
	}
	return &Engine{
		log:          p.Log.Named("reconcile.engine"),
		api:          p.API,
		repo:         p.Repo,
		phoneSvc:     p.PhoneSvc,
		integrations: p.Integrations,
		tracker:      tracker,
		genID:        p.GenID,
		clock:        p.Clock,
		metrics:      p.Metrics,
		syncMetrics:  p.SyncMetrics,
	}
}

// Sync dispatches to the resource's sync. orgID is required for org-scoped
// resources and ignored by extensions.
func (e *Engine) Sync(ctx context.Context, resource Resource, orgID *snowflake.ID, rng mightycall.DateRange) (Result, error) {
	if resource.OrgScoped() && orgID == nil {
		return Result{}, domain.ErrInvalidOrganization
	}
	switch resource {
	case ResourcePhoneNumbers:
		return e.SyncPhoneNumbers(ctx, orgID)
	case ResourceExtensions:
		return e.SyncExtensions(ctx)
	case ResourceReports:
		return e.SyncReports(ctx, *orgID, rng)
	case ResourceRecordings:
		return e.SyncRecordings(ctx, *orgID, rng)
	case ResourceCalls:
		return e.SyncCalls(ctx, *orgID, rng)
	case ResourceSMS:
		return e.SyncSMS(ctx, *orgID, rng)
	}
	return Result{}, domain.ErrUnknownResource
}

// SyncPhoneNumbers refreshes the global number inventory. orgID only picks
// whose credentials are used.
func (e *Engine) SyncPhoneNumbers(ctx context.Context, orgID *snowflake.ID) (Result, error) {
	return e.run(ctx, ResourcePhoneNumbers, orgID, nil, func(ctx context.Context) (int, error) {
		tok, err := e.token(ctx, orgID)
		if err != nil {
			return 0, err
		}
		numbers, err := e.api.PhoneNumbers(ctx, tok)
		if err != nil {
			return 0, err
		}

		rows := make([]phonenumberdomain.PhoneNumber, 0, len(numbers))
		for _, n := range numbers {
			rows = append(rows, phonenumberdomain.PhoneNumber{
				ExternalID:   n.ExternalID,
				Number:       n.Number,
				NumberDigits: n.NumberDigits,
				Label:        n.Label,
				IsActive:     n.IsActive,
				Metadata:     datatypes.JSONMap(n.Metadata),
			})
		}
		return e.phoneSvc.Upsert(ctx, rows)
	})
}

func (e *Engine) SyncExtensions(ctx context.Context) (Result, error) {
	return e.run(ctx, ResourceExtensions, nil, nil, func(ctx context.Context) (int, error) {
		tok, err := e.token(ctx, nil)
		if err != nil {
			return 0, err
		}
		exts, err := e.api.Extensions(ctx, tok)
		if err != nil {
			return 0, err
		}
		n, err := e.repo.UpsertExtensions(ctx, extensionRows(exts, e.clock.Now(), e.genID))
		return int(n), err
	})
}

// SyncReports rebuilds the org's daily call rollups for the range.
func (e *Engine) SyncReports(ctx context.Context, orgID snowflake.ID, rng mightycall.DateRange) (Result, error) {
	return e.run(ctx, ResourceReports, &orgID, rangeMeta(rng), func(ctx context.Context) (int, error) {
		numbers, err := e.orgNumbers(ctx, orgID)
		if err != nil {
			return 0, err
		}
		tok, err := e.token(ctx, &orgID)
		if err != nil {
			return 0, err
		}
		entries, err := e.api.JournalRequests(ctx, tok, mightycall.JournalFilter{From: rng.From, To: rng.To, Type: "Call"})
		if err != nil {
			return 0, err
		}

		set := phonenumberdomain.NewMatchSet(numbers)
		rows := reportRows(orgID, ownedEntries(entries, set), set, e.clock.Now(), e.genID)
		if err := e.repo.ReplaceReports(ctx, orgID, domain.ReportTypeCalls, rng.From, rng.To, rows); err != nil {
			return 0, err
		}
		return len(rows), nil
	})
}

func (e *Engine) SyncRecordings(ctx context.Context, orgID snowflake.ID, rng mightycall.DateRange) (Result, error) {
	return e.run(ctx, ResourceRecordings, &orgID, rangeMeta(rng), func(ctx context.Context) (int, error) {
		numbers, err := e.orgNumbers(ctx, orgID)
		if err != nil {
			return 0, err
		}
		tok, err := e.token(ctx, &orgID)
		if err != nil {
			return 0, err
		}
		recs, err := e.api.Recordings(ctx, tok, rng)
		if err != nil {
			return 0, err
		}

		rows := recordingRows(orgID, recs, phonenumberdomain.NewMatchSet(numbers), e.clock.Now(), e.genID)
		if skipped := len(recs) - len(rows); skipped > 0 {
			e.log.Debug("recordings skipped", zap.String("org_id", orgID.String()), zap.Int("skipped", skipped))
		}
		if err := e.repo.ReplaceRecordings(ctx, orgID, rng.From, rng.To, rows); err != nil {
			return 0, err
		}
		return len(rows), nil
	})
}

// SyncCalls mirrors the org's calls for the range. When the calls endpoint
// returns nothing the journal is used instead.
func (e *Engine) SyncCalls(ctx context.Context, orgID snowflake.ID, rng mightycall.DateRange) (Result, error) {
	return e.run(ctx, ResourceCalls, &orgID, rangeMeta(rng), func(ctx context.Context) (int, error) {
		numbers, err := e.orgNumbers(ctx, orgID)
		if err != nil {
			return 0, err
		}
		tok, err := e.token(ctx, &orgID)
		if err != nil {
			return 0, err
		}

		filter := mightycall.CallFilter{StartUTC: rng.From, EndUTC: rng.To}
		for _, n := range numbers {
			filter.PhoneNumbers = append(filter.PhoneNumbers, n.Number)
		}
		calls, err := e.api.Calls(ctx, tok, filter)
		if err != nil {
			return 0, err
		}
		set := phonenumberdomain.NewMatchSet(numbers)
		if len(calls) == 0 {
			entries, err := e.api.JournalRequests(ctx, tok, mightycall.JournalFilter{From: rng.From, To: rng.To, Type: "Call"})
			if err != nil {
				return 0, err
			}
			calls = journalCalls(entries)
		}
		calls = ownedCalls(calls, set)

		rows := callRows(orgID, calls, e.clock.Now(), e.genID)
		if err := e.repo.ReplaceCalls(ctx, orgID, rng.From, rng.To, rows); err != nil {
			return 0, err
		}
		return len(rows), nil
	})
}

func (e *Engine) SyncSMS(ctx context.Context, orgID snowflake.ID, rng mightycall.DateRange) (Result, error) {
	return e.run(ctx, ResourceSMS, &orgID, rangeMeta(rng), func(ctx context.Context) (int, error) {
		numbers, err := e.orgNumbers(ctx, orgID)
		if err != nil {
			return 0, err
		}
		tok, err := e.token(ctx, &orgID)
		if err != nil {
			return 0, err
		}
		messages, err := e.api.SMS(ctx, tok, rng)
		if err != nil {
			return 0, err
		}

		n, err := e.repo.UpsertSMS(ctx, smsRows(orgID, messages, phonenumberdomain.NewMatchSet(numbers), e.clock.Now(), e.genID))
		return int(n), err
	})
}

// TestConnection authenticates with the credentials the org would sync with
// and lists the account's numbers.
func (e *Engine) TestConnection(ctx context.Context, orgID *snowflake.ID) (ConnectionResult, error) {
	creds, err := e.credentials(ctx, orgID)
	if err != nil {
		return ConnectionResult{}, err
	}
	res := ConnectionResult{Source: "global"}
	if creds != nil {
		res.Source = "organization"
	}

	tok, err := e.api.Token(ctx, creds)
	if err != nil {
		return res, err
	}
	numbers, err := e.api.PhoneNumbers(ctx, tok)
	if err != nil {
		return res, err
	}
	res.OK = true
	res.PhoneNumbers = len(numbers)
	return res, nil
}

func (e *Engine) ListJobs(ctx context.Context, filter JobFilter) ([]domain.SyncJob, error) {
	return e.tracker.List(ctx, filter)
}

func (e *Engine) run(ctx context.Context, resource Resource, orgID *snowflake.ID, meta map[string]any, fn func(context.Context) (int, error)) (Result, error) {
	ctx, span := otel.Tracer("switchboard/reconcile").Start(ctx, "reconcile."+string(resource))
	defer span.End()
	span.SetAttributes(attribute.String("sync.resource", string(resource)))

	log := e.log.With(zap.String("resource", string(resource)))
	if orgID != nil {
		log = log.With(zap.String("org_id", orgID.String()))
	}

	handle, _ := e.tracker.Start(ctx, JobStart{OrgID: orgID, Resource: resource, Metadata: meta})
	started := e.clock.Now()

	records, err := fn(ctx)

	e.tracker.Finish(ctx, handle, JobResult{Records: records, Err: err})
	finished := e.clock.Now()

	status := domain.JobCompleted
	if err != nil {
		status = domain.JobFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("sync failed", zap.Error(err))
	} else {
		log.Info("sync completed", zap.Int("records", records), zap.Duration("elapsed", finished.Sub(started)))
	}
	span.SetAttributes(attribute.Int("sync.records", records))
	e.metrics.RecordSyncRun(ctx, string(resource), status, records)
	e.syncMetrics.Observe(string(resource), status, records, finished.Sub(started), finished)

	return Result{JobID: handle.ID, Resource: resource, OrgID: orgID, Records: records}, err
}

func (e *Engine) credentials(ctx context.Context, orgID *snowflake.ID) (*mightycall.Credentials, error) {
	if orgID == nil || e.integrations == nil {
		return nil, nil
	}
	creds, err := e.integrations.Credentials(ctx, *orgID)
	if errors.Is(err, integrationdomain.ErrNotFound) {
		return nil, nil
	}
	return creds, err
}

func (e *Engine) token(ctx context.Context, orgID *snowflake.ID) (*mightycall.Token, error) {
	creds, err := e.credentials(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return e.api.Token(ctx, creds)
}

// orgNumbers lists the org's assigned numbers. Org-scoped syncs only store
// data touching these numbers, so an org without any cannot sync.
func (e *Engine) orgNumbers(ctx context.Context, orgID snowflake.ID) ([]phonenumberdomain.PhoneNumber, error) {
	numbers, err := e.phoneSvc.ListForOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(numbers) == 0 {
		return nil, domain.ErrNoPhoneNumbers
	}
	return numbers, nil
}

// ownedCalls keeps calls to or from one of the org's numbers.
func ownedCalls(calls []mightycall.Call, set phonenumberdomain.MatchSet) []mightycall.Call {
	out := calls[:0:0]
	for _, c := range calls {
		if set.Contains(c.To) || set.Contains(c.From) {
			out = append(out, c)
		}
	}
	return out
}

// ownedEntries keeps journal entries touching one of the org's numbers.
func ownedEntries(entries []mightycall.JournalRequest, set phonenumberdomain.MatchSet) []mightycall.JournalRequest {
	out := entries[:0:0]
	for _, jr := range entries {
		if set.Contains(jr.To) || set.Contains(jr.From) {
			out = append(out, jr)
		}
	}
	return out
}

func rangeMeta(rng mightycall.DateRange) map[string]any {
	return map[string]any{
		"start_date": rng.From.Format(dateLayout),
		"end_date":   rng.To.Format(dateLayout),
	}
}
