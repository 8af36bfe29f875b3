package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/call/domain"
	"github.com/smallbiznis/switchboard/internal/clock"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
	minRecentScan      = 200
	maxStatsCalls      = 1000
	defaultStatsDays   = 7
	noQueueName        = "No queue"
	dateLayout         = "2006-01-02"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     domain.Repository
	PhoneSvc phonenumberdomain.Service
	OrgSvc   orgdomain.Service
	GenID    *snowflake.Node
	Clock    clock.Clock
}

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	phoneSvc phonenumberdomain.Service
	orgSvc   orgdomain.Service
	genID    *snowflake.Node
	clock    clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("call.service"),
		repo:     p.Repo,
		phoneSvc: p.PhoneSvc,
		orgSvc:   p.OrgSvc,
		genID:    p.GenID,
		clock:    p.Clock,
	}
}

// scope is the org's timezone and assigned-number set. A nil set means
// no number filtering applies.
type scope struct {
	loc     *time.Location
	numbers *phonenumberdomain.MatchSet
}

func (sc scope) keep(c domain.Call) bool {
	if sc.numbers == nil {
		return true
	}
	if sc.numbers.Contains(c.ToNumberValue()) {
		return true
	}
	return c.ToNumberDigits != nil && sc.numbers.Contains(*c.ToNumberDigits)
}

func (sc scope) empty() bool {
	return sc.numbers != nil && sc.numbers.Empty()
}

func (sc scope) filter(calls []domain.Call) []domain.Call {
	if sc.numbers == nil {
		return calls
	}
	out := make([]domain.Call, 0, len(calls))
	for _, c := range calls {
		if sc.keep(c) {
			out = append(out, c)
		}
	}
	return domain.DedupeCalls(out)
}

func (s *Service) location(ctx context.Context, orgID snowflake.ID) (*time.Location, error) {
	org, err := s.orgSvc.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return org.Location(), nil
}

func (s *Service) resolveScope(ctx context.Context, orgID *snowflake.ID) (scope, error) {
	if orgID == nil {
		return scope{loc: time.UTC}, nil
	}
	loc, err := s.location(ctx, *orgID)
	if err != nil {
		return scope{}, err
	}
	set, err := s.phoneSvc.MatchSetForOrg(ctx, *orgID)
	if err != nil {
		return scope{}, err
	}
	return scope{loc: loc, numbers: &set}, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func (s *Service) TodayStats(ctx context.Context, orgID snowflake.ID) (domain.Stats, error) {
	sc, err := s.resolveScope(ctx, &orgID)
	if err != nil {
		return domain.Stats{}, err
	}
	if sc.empty() {
		return domain.Stats{}, nil
	}
	calls, err := s.repo.List(ctx, domain.ListFilter{Since: startOfDay(s.clock.Now(), sc.loc)})
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Summarize(sc.filter(calls)), nil
}

func (s *Service) OrgStats(ctx context.Context, orgID snowflake.ID) (domain.Stats, error) {
	loc, err := s.location(ctx, orgID)
	if err != nil {
		return domain.Stats{}, err
	}
	calls, err := s.repo.List(ctx, domain.ListFilter{OrgID: &orgID, Since: startOfDay(s.clock.Now(), loc)})
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Summarize(calls), nil
}

func (s *Service) Recent(ctx context.Context, orgID *snowflake.ID, limit int) ([]domain.RecentCall, error) {
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}

	sc, err := s.resolveScope(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if sc.empty() {
		return []domain.RecentCall{}, nil
	}

	scan := limit
	if sc.numbers != nil {
		scan = max(limit*5, minRecentScan)
	}
	calls, err := s.repo.List(ctx, domain.ListFilter{Limit: scan})
	if err != nil {
		return nil, err
	}
	calls = sc.filter(calls)
	if len(calls) > limit {
		calls = calls[:limit]
	}

	exts := make([]string, 0, len(calls))
	for _, c := range calls {
		if c.AgentExtension != nil && *c.AgentExtension != "" {
			exts = append(exts, *c.AgentExtension)
		}
	}
	names, err := s.repo.ExtensionNames(ctx, exts)
	if err != nil {
		return nil, err
	}

	items := make([]domain.RecentCall, 0, len(calls))
	for _, c := range calls {
		items = append(items, domain.RecentCall{
			ID:         c.ID,
			Direction:  c.Direction,
			Status:     c.Status,
			FromNumber: c.FromNumber,
			ToNumber:   c.ToNumber,
			QueueName:  c.QueueName,
			StartedAt:  c.StartedAt,
			AnsweredAt: c.AnsweredAt,
			EndedAt:    c.EndedAt,
			AgentName:  agentName(c.AgentExtension, names),
		})
	}
	return items, nil
}

// agentName prefers the resolved name (display name, then member email) and
// falls back to the extension itself.
func agentName(ext *string, names map[string]string) *string {
	if ext == nil || *ext == "" {
		return nil
	}
	if name, ok := names[*ext]; ok {
		return &name
	}
	value := *ext
	return &value
}

func (s *Service) QueueSummary(ctx context.Context, orgID *snowflake.ID) ([]domain.QueueSummary, error) {
	sc, err := s.resolveScope(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if sc.empty() {
		return []domain.QueueSummary{}, nil
	}
	calls, err := s.repo.List(ctx, domain.ListFilter{Since: startOfDay(s.clock.Now(), sc.loc)})
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	queues := []domain.QueueSummary{}
	for _, c := range sc.filter(calls) {
		name := noQueueName
		if c.QueueName != nil && strings.TrimSpace(*c.QueueName) != "" {
			name = *c.QueueName
		}
		i, ok := index[name]
		if !ok {
			i = len(queues)
			index[name] = i
			queues = append(queues, domain.QueueSummary{Name: name})
		}
		queues[i].TotalCalls++
		switch st := c.StatusValue(); {
		case domain.IsAnswered(st):
			queues[i].Answered++
		case domain.IsMissed(st):
			queues[i].Missed++
		}
	}
	return queues, nil
}

type step int

const (
	stepHour step = iota
	stepDay
	stepMonth
)

func seriesWindow(rng string, now time.Time, loc *time.Location) (time.Time, step, error) {
	today := startOfDay(now, loc)
	switch rng {
	case "", domain.RangeDay:
		return today, stepHour, nil
	case domain.RangeWeek:
		return today.AddDate(0, 0, -6), stepDay, nil
	case domain.RangeMonth:
		return today.AddDate(0, 0, -29), stepDay, nil
	case domain.RangeYear:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return first.AddDate(0, -11, 0), stepMonth, nil
	default:
		return time.Time{}, 0, domain.ErrInvalidRange
	}
}

func truncate(t time.Time, st step, loc *time.Location) time.Time {
	local := t.In(loc)
	switch st {
	case stepHour:
		return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
	case stepDay:
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	default:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	}
}

func advance(t time.Time, st step) time.Time {
	switch st {
	case stepHour:
		return t.Add(time.Hour)
	case stepDay:
		return t.AddDate(0, 0, 1)
	default:
		return t.AddDate(0, 1, 0)
	}
}

func (s *Service) Series(ctx context.Context, orgID *snowflake.ID, rng string) ([]domain.SeriesPoint, error) {
	sc, err := s.resolveScope(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	start, st, err := seriesWindow(rng, now, sc.loc)
	if err != nil {
		return nil, err
	}

	buckets := map[int64]*domain.SeriesPoint{}
	if !sc.empty() {
		calls, err := s.repo.List(ctx, domain.ListFilter{Since: start, Ascending: true})
		if err != nil {
			return nil, err
		}
		for _, c := range sc.filter(calls) {
			key := truncate(c.StartedAt, st, sc.loc).Unix()
			p, ok := buckets[key]
			if !ok {
				p = &domain.SeriesPoint{}
				buckets[key] = p
			}
			p.TotalCalls++
			status := c.StatusValue()
			if domain.IsAnswered(status) {
				p.Answered++
			}
			if domain.IsMissed(status) {
				p.Missed++
			}
		}
	}

	points := []domain.SeriesPoint{}
	for cursor := start; !cursor.After(now); cursor = advance(cursor, st) {
		point := domain.SeriesPoint{}
		if p, ok := buckets[cursor.Unix()]; ok {
			point = *p
		}
		point.BucketLabel = cursor.UTC().Format(time.RFC3339)
		points = append(points, point)
	}
	return points, nil
}

func (s *Service) CallStats(ctx context.Context, req domain.CallStatsRequest) (*domain.CallStatsResponse, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	orgID := req.OrgID
	sc, err := s.resolveScope(ctx, &orgID)
	if err != nil {
		return nil, err
	}
	if !req.AssignedNumbersOnly {
		sc.numbers = nil
	}

	empty := &domain.CallStatsResponse{Calls: []domain.Call{}}
	if sc.empty() {
		return empty, nil
	}

	since, until, err := statsWindow(req.StartDate, req.EndDate, s.clock.Now(), sc.loc)
	if err != nil {
		return nil, err
	}

	filter := domain.ListFilter{Since: since, Until: until}
	if sc.numbers == nil {
		filter.OrgID = &orgID
	}
	calls, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	calls = sc.filter(calls)

	var stats domain.CallStats
	for _, c := range calls {
		stats.TotalCalls++
		stats.TotalDurationSeconds += c.DurationSeconds
		switch st := c.StatusValue(); {
		case domain.IsAnswered(st):
			stats.AnsweredCalls++
		case domain.IsMissed(st):
			stats.MissedCalls++
		}
	}
	stats.AnswerRate = domain.AnswerRate(stats.AnsweredCalls, stats.TotalCalls)
	if stats.TotalCalls > 0 {
		stats.AvgDurationSeconds = stats.TotalDurationSeconds / stats.TotalCalls
	}

	if len(calls) > maxStatsCalls {
		calls = calls[:maxStatsCalls]
	}
	if calls == nil {
		calls = []domain.Call{}
	}
	return &domain.CallStatsResponse{Stats: stats, Calls: calls}, nil
}

// statsWindow resolves inclusive local dates into a [since, until) range.
// The default is the last seven days through today.
func statsWindow(startDate, endDate string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	end := startOfDay(now, loc)
	if v := strings.TrimSpace(endDate); v != "" {
		parsed, err := parseDate(v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = parsed
	}
	start := end.AddDate(0, 0, -(defaultStatsDays - 1))
	if v := strings.TrimSpace(startDate); v != "" {
		parsed, err := parseDate(v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = parsed
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, domain.ErrInvalidDate
	}
	return start, end.AddDate(0, 0, 1), nil
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	if len(v) > len(dateLayout) {
		v = v[:len(dateLayout)]
	}
	t, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil {
		return time.Time{}, domain.ErrInvalidDate
	}
	return t, nil
}

func (s *Service) ClientMetrics(ctx context.Context, orgID *snowflake.ID) (*domain.Metrics, error) {
	sc, err := s.resolveScope(ctx, orgID)
	if err != nil {
		return nil, err
	}
	metrics := domain.Metrics{}
	if !sc.empty() {
		calls, err := s.repo.List(ctx, domain.ListFilter{Since: startOfDay(s.clock.Now(), sc.loc)})
		if err != nil {
			return nil, err
		}
		metrics = domain.ComputeMetrics(sc.filter(calls))
	}
	metrics.OrgID = orgID
	return &metrics, nil
}

func (s *Service) OrgMetrics(ctx context.Context) ([]domain.OrgMetrics, error) {
	orgs, err := s.orgSvc.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrgMetrics, 0, len(orgs))
	for _, org := range orgs {
		id := org.ID
		m, err := s.ClientMetrics(ctx, &id)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.OrgMetrics{
			ID:             org.ID,
			Name:           org.Name,
			TotalCalls:     m.TotalCalls,
			AnsweredCalls:  m.AnsweredCalls,
			AnswerRatePct:  m.AnswerRatePct,
			AvgWaitSeconds: m.AvgWaitSeconds,
		})
	}
	return out, nil
}

func (s *Service) ListExtensions(ctx context.Context) ([]domain.Extension, error) {
	exts, err := s.repo.ListExtensions(ctx)
	if err != nil {
		return nil, err
	}
	if exts == nil {
		exts = []domain.Extension{}
	}
	return exts, nil
}

func (s *Service) SeedCall(ctx context.Context, req domain.SeedCallRequest) (*domain.Call, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if _, err := s.orgSvc.Get(ctx, req.OrgID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	started := now
	if req.StartedAt != nil {
		started = req.StartedAt.UTC()
	}
	answered := req.AnsweredAt
	if answered == nil {
		answered = &started
	}

	to := orDefault(req.ToNumber, "+15550000002")
	digits := phonenumberdomain.Digits(to)
	externalID := "dev-" + s.genID.Generate().String()
	call := &domain.Call{
		ID:             s.genID.Generate(),
		OrgID:          req.OrgID,
		ExternalID:     &externalID,
		Direction:      ptr(orDefault(req.Direction, "inbound")),
		Status:         ptr(strings.ToLower(orDefault(req.Status, "answered"))),
		FromNumber:     ptr(orDefault(req.FromNumber, "+15550000001")),
		ToNumber:       &to,
		ToNumberDigits: &digits,
		QueueName:      ptr(orDefault(req.QueueName, "Dev Queue")),
		StartedAt:      started,
		AnsweredAt:     answered,
		EndedAt:        req.EndedAt,
		CreatedAt:      now,
	}
	if call.EndedAt != nil {
		call.DurationSeconds = int(call.EndedAt.Sub(started).Seconds())
	}
	if err := s.repo.Insert(ctx, call); err != nil {
		return nil, err
	}
	s.log.Info("dev call seeded", zap.String("org_id", req.OrgID.String()), zap.String("call_id", call.ID.String()))
	return call, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func ptr(s string) *string { return &s }
