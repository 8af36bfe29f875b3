package reconcile

import (
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	calldomain "github.com/smallbiznis/switchboard/internal/call/domain"
	"github.com/smallbiznis/switchboard/internal/mightycall"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	"github.com/smallbiznis/switchboard/internal/reconcile/domain"
	recordingdomain "github.com/smallbiznis/switchboard/internal/recording/domain"
	"gorm.io/datatypes"
)

const (
	dateLayout      = "2006-01-02"
	maxSampleNums   = 3
	defaultLookback = 7 * 24 * time.Hour
)

var providerTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateLayout,
}

// ResolveRange turns optional start/end dates into an inclusive UTC range.
// Bare dates cover whole days; the default is the last 7 days through today.
func ResolveRange(startDate, endDate string, now time.Time) (mightycall.DateRange, error) {
	now = now.UTC()
	startDate, endDate = strings.TrimSpace(startDate), strings.TrimSpace(endDate)
	if startDate == "" {
		startDate = now.Add(-defaultLookback).Format(dateLayout)
	}
	if endDate == "" {
		endDate = now.Format(dateLayout)
	}

	from, err := parseBound(startDate, false)
	if err != nil {
		return mightycall.DateRange{}, err
	}
	to, err := parseBound(endDate, true)
	if err != nil {
		return mightycall.DateRange{}, err
	}
	if to.Before(from) {
		return mightycall.DateRange{}, domain.ErrInvalidRange
	}
	return mightycall.DateRange{From: from, To: to}, nil
}

func parseBound(raw string, end bool) (time.Time, error) {
	if !strings.Contains(raw, "T") {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, domain.ErrInvalidDate
		}
		if end {
			return day.Add(24*time.Hour - time.Second), nil
		}
		return day, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.ErrInvalidDate
	}
	return t.UTC(), nil
}

func parseProviderTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range providerTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func optionalTime(raw string) *time.Time {
	t, ok := parseProviderTime(raw)
	if !ok {
		return nil
	}
	return &t
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// journalCalls adapts journal "Call" entries for accounts whose calls
// endpoint returns nothing.
func journalCalls(entries []mightycall.JournalRequest) []mightycall.Call {
	out := make([]mightycall.Call, 0, len(entries))
	for _, jr := range entries {
		out = append(out, mightycall.Call{
			ExternalID:      jr.ID,
			Direction:       jr.Direction,
			Status:          jr.Status,
			From:            jr.From,
			To:              jr.To,
			StartedAt:       jr.Created,
			EndedAt:         jr.Metadata.String("endedAt", "ended_at"),
			DurationSeconds: jr.DurationSeconds,
			Metadata:        jr.Metadata,
		})
	}
	return out
}

func callRows(orgID snowflake.ID, calls []mightycall.Call, now time.Time, genID *snowflake.Node) []calldomain.Call {
	rows := make([]calldomain.Call, 0, len(calls))
	for _, c := range calls {
		from, to := optional(c.From), optional(c.To)

		direction := optional(c.Direction)
		if direction == nil && from != nil && to != nil {
			inbound := "inbound"
			direction = &inbound
		}
		started, ok := parseProviderTime(c.StartedAt)
		if !ok {
			started = now
		}

		row := calldomain.Call{
			ID:              genID.Generate(),
			OrgID:           orgID,
			ExternalID:      optional(c.ExternalID),
			Direction:       direction,
			Status:          optional(strings.ToLower(c.Status)),
			FromNumber:      from,
			ToNumber:        to,
			QueueName:       optional(c.QueueName),
			AgentExtension:  optional(c.AgentExtension),
			StartedAt:       started,
			AnsweredAt:      optionalTime(c.AnsweredAt),
			EndedAt:         optionalTime(c.EndedAt),
			DurationSeconds: max(c.DurationSeconds, 0),
			CreatedAt:       now,
		}
		if to != nil {
			row.ToNumberDigits = optional(phonenumberdomain.Digits(*to))
		}
		rows = append(rows, row)
	}
	return rows
}

var (
	recordingFromKeys = []string{"from_number", "from", "businessNumber.number", "businessNumber", "caller_number", "phone_number", "phoneNumber"}
	recordingToKeys   = []string{"called.0.phone", "called.0.number", "to_number", "to", "recipient", "destination_number"}
)

// recordingRows maps recordings that touch one of the org's numbers.
func recordingRows(orgID snowflake.ID, recs []mightycall.Recording, numbers phonenumberdomain.MatchSet, now time.Time, genID *snowflake.Node) []recordingdomain.Recording {
	rows := make([]recordingdomain.Recording, 0, len(recs))
	for _, r := range recs {
		callID := r.CallID
		if callID == "" {
			callID = r.ID
		}
		if callID == "" && r.URL == "" {
			continue
		}

		from := r.Metadata.String(recordingFromKeys...)
		to := r.Metadata.String(recordingToKeys...)
		if from == "" || to == "" {
			urlFrom, urlTo := numbersFromURL(r.URL)
			if from == "" {
				from = urlFrom
			}
			if to == "" {
				to = urlTo
			}
		}

		date, ok := parseProviderTime(r.Date)
		if !ok {
			date = now
		}

		phoneID, ok := lookupNumber(numbers, to, from)
		if !ok {
			continue
		}
		rows = append(rows, recordingdomain.Recording{
			ID:              genID.Generate(),
			OrgID:           orgID,
			CallID:          optional(callID),
			PhoneNumberID:   &phoneID,
			RecordingURL:    r.URL,
			DurationSeconds: max(r.DurationSeconds, 0),
			RecordingDate:   date,
			FromNumber:      optional(from),
			ToNumber:        optional(to),
			Metadata:        datatypes.JSONMap(r.Metadata),
		})
	}
	return rows
}

// numbersFromURL extracts "+1555..." segments from recording file names
// such as ".../rec_%2B15551234567_%2B15557654321.mp3".
func numbersFromURL(raw string) (string, string) {
	var found []string
	for _, part := range strings.Split(raw, "_") {
		if !strings.HasPrefix(part, "%2B") && !strings.HasPrefix(part, "+") {
			continue
		}
		num := strings.ReplaceAll(part, "%2B", "+")
		if i := strings.IndexAny(num, "?/"); i >= 0 {
			num = num[:i]
		}
		if unescaped, err := url.PathUnescape(num); err == nil {
			num = unescaped
		}
		num = strings.TrimSuffix(num, ".mp3")
		num = strings.TrimSuffix(num, ".wav")
		found = append(found, num)
		if len(found) == 2 {
			break
		}
	}
	switch len(found) {
	case 0:
		return "", ""
	case 1:
		return found[0], ""
	default:
		return found[0], found[1]
	}
}

// lookupNumber resolves the first candidate that is one of the org's numbers.
func lookupNumber(numbers phonenumberdomain.MatchSet, candidates ...string) (snowflake.ID, bool) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if id, ok := numbers.Lookup(c); ok {
			return id, true
		}
	}
	return 0, false
}

type reportBucket struct {
	phoneID  *snowflake.ID
	date     time.Time
	calls    int
	answered int
	missed   int
	duration int
	samples  []string
}

// reportRows rolls journal call entries up by day and business number.
func reportRows(orgID snowflake.ID, entries []mightycall.JournalRequest, numbers phonenumberdomain.MatchSet, now time.Time, genID *snowflake.Node) []domain.Report {
	var order []string
	buckets := make(map[string]*reportBucket)

	for _, jr := range entries {
		created := jr.Created
		if len(created) < len(dateLayout) {
			created = now.UTC().Format(dateLayout)
		}
		dateKey := created[:len(dateLayout)]
		day, err := time.Parse(dateLayout, dateKey)
		if err != nil {
			day = now.UTC().Truncate(24 * time.Hour)
			dateKey = day.Format(dateLayout)
		}

		num := strings.TrimSpace(jr.To)
		if num == "" {
			num = strings.TrimSpace(jr.From)
		}
		digits := phonenumberdomain.Digits(num)

		var phoneID *snowflake.ID
		group := "unknown"
		if id, ok := numbers.Lookup(num); ok {
			phoneID = &id
			group = id.String()
		} else if digits != "" {
			group = digits
		}

		key := dateKey + ":" + group
		b, ok := buckets[key]
		if !ok {
			b = &reportBucket{phoneID: phoneID, date: day}
			buckets[key] = b
			order = append(order, key)
		}

		b.calls++
		status := strings.ToLower(jr.Status)
		switch {
		case strings.Contains(status, "answer") || strings.Contains(status, "complete"):
			b.answered++
		case strings.Contains(status, "miss"):
			b.missed++
		}
		if jr.DurationSeconds > 0 {
			b.duration += jr.DurationSeconds
		}
		if num != "" && len(b.samples) < maxSampleNums && !contains(b.samples, num) {
			b.samples = append(b.samples, num)
		}
	}

	rows := make([]domain.Report, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		samples := b.samples
		if samples == nil {
			samples = []string{}
		}
		rows = append(rows, domain.Report{
			ID:            genID.Generate(),
			OrgID:         orgID,
			PhoneNumberID: b.phoneID,
			ReportType:    domain.ReportTypeCalls,
			ReportDate:    b.date,
			Data: datatypes.JSONMap{
				"calls_count":    b.calls,
				"answered_count": b.answered,
				"missed_count":   b.missed,
				"total_duration": b.duration,
				"sample_numbers": samples,
			},
		})
	}
	return rows
}

func smsRows(orgID snowflake.ID, messages []mightycall.JournalRequest, numbers phonenumberdomain.MatchSet, now time.Time, genID *snowflake.Node) []domain.SMSMessage {
	rows := make([]domain.SMSMessage, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		externalID := mightycall.SMSExternalID(m)
		if _, dup := seen[externalID]; dup {
			continue
		}
		seen[externalID] = struct{}{}

		from := m.Metadata.String("client.address", "from")
		if from == "" {
			from = m.From
		}
		to := m.Metadata.String("businessNumber.number", "to")
		if to == "" {
			to = m.To
		}

		direction := strings.TrimSpace(m.Direction)
		if direction == "" {
			direction = "inbound"
		}
		status := strings.TrimSpace(m.Status)
		if status == "" {
			status = "received"
		}
		date, ok := parseProviderTime(m.Created)
		if !ok {
			date = now
		}

		phoneID, ok := lookupNumber(numbers, to, from)
		if !ok {
			continue
		}
		rows = append(rows, domain.SMSMessage{
			ID:            genID.Generate(),
			OrgID:         orgID,
			PhoneNumberID: &phoneID,
			ExternalID:    externalID,
			FromNumber:    optional(from),
			ToNumber:      optional(to),
			MessageText:   optional(m.Text),
			Direction:     direction,
			Status:        status,
			MessageDate:   date,
			Metadata:      datatypes.JSONMap(m.Metadata),
		})
	}
	return rows
}

func extensionRows(exts []mightycall.Extension, now time.Time, genID *snowflake.Node) []calldomain.Extension {
	rows := make([]calldomain.Extension, 0, len(exts))
	index := make(map[string]int, len(exts))
	for _, e := range exts {
		ext := strings.TrimSpace(e.Extension)
		if ext == "" {
			continue
		}
		row := calldomain.Extension{
			ID:          genID.Generate(),
			Extension:   ext,
			ExternalID:  optional(e.ExternalID),
			DisplayName: optional(e.DisplayName),
			Metadata:    datatypes.JSONMap(e.Metadata),
			UpdatedAt:   now,
		}
		if i, ok := index[ext]; ok {
			rows[i] = row
			continue
		}
		index[ext] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
