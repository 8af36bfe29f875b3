package mightycall

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
)

const (
	defaultPageSize = 200
	maxPageSize     = 1000
	maxPages        = 50
	utcLayout       = "2006-01-02T15:04:05Z"
)

var smsTypes = []string{"Message", "SMS", "Sms"}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}

func formatUTC(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(utcLayout)
}

type pageQuery func(page, skip int) url.Values

// paged walks a paginated endpoint until an empty page, a short page
// without a hasMore flag, or maxPages. Rows are deduped by key.
func (c *Client) paged(ctx context.Context, tok *Token, path string, pageSize int, query pageQuery, key func(Record) string, listPaths ...string) ([]Record, error) {
	var (
		out  []Record
		seen = make(map[string]struct{})
		skip = 0
	)
	for page := 1; page <= maxPages; page++ {
		body, err := c.getJSON(ctx, tok, path, query(page, skip))
		if err != nil {
			return nil, err
		}
		list := listFrom(body, listPaths...)
		if len(list) == 0 {
			break
		}
		for _, row := range list {
			k := key(row)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, row)
		}
		if len(list) < pageSize && !hasMore(body) {
			break
		}
		skip += len(list)
	}
	return out, nil
}

// PhoneNumbers lists the account's business numbers.
func (c *Client) PhoneNumbers(ctx context.Context, tok *Token) ([]PhoneNumber, error) {
	body, err := c.getJSON(ctx, tok, "/phonenumbers", nil)
	if err != nil {
		return nil, err
	}
	rows := listFrom(body, "data.phoneNumbers", "phoneNumbers", "data", "")
	out := make([]PhoneNumber, 0, len(rows))
	for _, r := range rows {
		if p, ok := normalizePhoneNumber(r); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func normalizePhoneNumber(r Record) (PhoneNumber, bool) {
	number := r.String("number", "phoneNumber", "phone", "businessNumber.number")
	if number == "" {
		return PhoneNumber{}, false
	}
	external := r.String("id", "objectGuid", "external_id", "externalId")
	if external == "" {
		external = number
	}
	digits := r.String("numberDigits")
	if digits == "" {
		digits = phonenumberdomain.Digits(number)
	}
	return PhoneNumber{
		ExternalID:   external,
		Number:       number,
		Label:        r.String("label", "name", "friendlyName"),
		NumberDigits: digits,
		IsActive:     r.Bool(true, "isEnabled"),
		Metadata:     r,
	}, true
}

// Calls pages through the call history.
func (c *Client) Calls(ctx context.Context, tok *Token, filter CallFilter) ([]Call, error) {
	pageSize := clampPageSize(filter.PageSize)
	start, end := formatUTC(filter.StartUTC), formatUTC(filter.EndUTC)

	query := func(page, skip int) url.Values {
		q := url.Values{}
		if start != "" {
			q.Set("startUtc", start)
		}
		if end != "" {
			q.Set("endUtc", end)
		}
		q.Set("pageSize", strconv.Itoa(pageSize))
		q.Set("skip", strconv.Itoa(skip))
		q.Set("page", strconv.Itoa(page))
		return q
	}
	key := func(r Record) string {
		if id := r.String("id", "callId"); id != "" {
			return id
		}
		return r.String("from", "from_number") + ":" + r.String("to", "to_number") + ":" + r.String("dateTimeUtc", "started_at")
	}

	rows, err := c.paged(ctx, tok, "/calls", pageSize, query, key,
		"data.calls", "calls", "data.items", "items", "rows", "data", "")
	if err != nil {
		return nil, err
	}

	out := make([]Call, 0, len(rows))
	for _, r := range rows {
		call := normalizeCall(r)
		if len(filter.PhoneNumbers) > 0 && !matchesAny(filter.PhoneNumbers, call.From, call.To) {
			continue
		}
		out = append(out, call)
	}
	return out, nil
}

func normalizeCall(r Record) Call {
	call := Call{
		ExternalID:      r.String("id", "callId", "requestGuid"),
		Direction:       r.String("direction"),
		Status:          strings.ToLower(r.String("status", "callStatus", "state")),
		From:            r.String("from", "from_number", "client.address", "caller.number", "source.number"),
		To:              r.String("to", "to_number", "businessNumber.number", "called.0.phone", "destination.number"),
		QueueName:       r.String("queueName", "queue.name", "queue"),
		AgentExtension:  r.String("agentExtension", "called.0.extension", "extension"),
		StartedAt:       r.String("dateTimeUtc", "started_at", "start_time", "created", "timestamp"),
		AnsweredAt:      r.String("answeredAt", "answered_at", "answerTime"),
		EndedAt:         r.String("endedAt", "ended_at", "end_time"),
		DurationSeconds: r.Int("duration", "durationSeconds", "callDuration"),
		Metadata:        r,
	}
	if rec := r.Map("callRecord", "recording"); rec != nil {
		call.RecordingURL = rec.String("uri", "fileName", "link")
	}
	return call
}

func matchesAny(numbers []string, candidates ...string) bool {
	for _, cand := range candidates {
		if cand == "" {
			continue
		}
		for _, n := range numbers {
			if phonenumberdomain.Matches(n, cand) {
				return true
			}
		}
	}
	return false
}

// JournalRequests pages through the request journal.
func (c *Client) JournalRequests(ctx context.Context, tok *Token, filter JournalFilter) ([]JournalRequest, error) {
	pageSize := clampPageSize(filter.PageSize)
	from, to := formatUTC(filter.From), formatUTC(filter.To)

	query := func(page, _ int) url.Values {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(pageSize))
		if from != "" {
			q.Set("dateFrom", from)
		}
		if to != "" {
			q.Set("dateTo", to)
		}
		if filter.Type != "" {
			q.Set("requestType", filter.Type)
		}
		return q
	}
	key := func(r Record) string {
		if id := r.String("id", "requestGuid"); id != "" {
			return id
		}
		return r.String("created") + ":" + r.String("type") + ":" + r.String("textModel.text")
	}

	rows, err := c.paged(ctx, tok, "/journal/requests", pageSize, query, key,
		"requests", "data.requests", "data", "")
	if err != nil {
		return nil, err
	}
	out := make([]JournalRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, normalizeJournal(r))
	}
	return out, nil
}

func normalizeJournal(r Record) JournalRequest {
	return JournalRequest{
		ID:              r.String("id", "requestGuid", "external_id"),
		Type:            r.String("type", "requestType"),
		Created:         r.String("created", "dateTimeUtc"),
		From:            r.String("from", "from_number", "client.address"),
		To:              r.String("to", "to_number", "businessNumber.number"),
		Status:          strings.ToLower(r.String("status", "state", "callStatus")),
		Direction:       r.String("direction"),
		Text:            r.String("textModel.text", "text"),
		DurationSeconds: r.Int("duration", "durationSeconds"),
		RecordingURL:    r.String("recording.link", "recording.uri"),
		Metadata:        r,
	}
}

// Recordings derives recordings from call records, falling back to
// journal call entries that carry a recording link.
func (c *Client) Recordings(ctx context.Context, tok *Token, rng DateRange) ([]Recording, error) {
	calls, err := c.Calls(ctx, tok, CallFilter{StartUTC: rng.From, EndUTC: rng.To, PageSize: maxPageSize})
	if err != nil {
		return nil, err
	}
	var out []Recording
	for _, call := range calls {
		if call.RecordingURL == "" {
			continue
		}
		out = append(out, Recording{
			ID:              call.ExternalID,
			CallID:          call.ExternalID,
			URL:             call.RecordingURL,
			DurationSeconds: call.DurationSeconds,
			Date:            call.Metadata.String("dateTimeUtc", "created"),
			Metadata:        call.Metadata,
		})
	}
	if len(out) > 0 {
		return out, nil
	}

	journal, err := c.JournalRequests(ctx, tok, JournalFilter{From: rng.From, To: rng.To, Type: "Call", PageSize: maxPageSize})
	if err != nil {
		return nil, err
	}
	for _, jr := range journal {
		if jr.RecordingURL == "" {
			continue
		}
		out = append(out, Recording{
			ID:       jr.ID,
			CallID:   jr.ID,
			URL:      jr.RecordingURL,
			Date:     jr.Created,
			Metadata: jr.Metadata,
		})
	}
	return out, nil
}

// SMS merges message journal entries across the type spellings the
// provider has used.
func (c *Client) SMS(ctx context.Context, tok *Token, rng DateRange) ([]JournalRequest, error) {
	var out []JournalRequest
	seen := make(map[string]struct{})
	for _, t := range smsTypes {
		list, err := c.JournalRequests(ctx, tok, JournalFilter{From: rng.From, To: rng.To, Type: t, PageSize: maxPageSize})
		if err != nil {
			return nil, err
		}
		for _, m := range list {
			key := SMSExternalID(m)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

// SMSExternalID is the stable identifier of a message.
func SMSExternalID(m JournalRequest) string {
	if m.ID != "" {
		return m.ID
	}
	return m.Created + ":" + m.Text
}

// Extensions lists user extensions.
func (c *Client) Extensions(ctx context.Context, tok *Token) ([]Extension, error) {
	body, err := c.getJSON(ctx, tok, "/extensions", nil)
	if err != nil {
		return nil, err
	}
	rows := listFrom(body, "data.extensions", "extensions", "data", "")
	out := make([]Extension, 0, len(rows))
	for _, r := range rows {
		ext := firstString(r, "extension", "ext", "number")
		if ext == "" {
			continue
		}
		out = append(out, Extension{
			ExternalID:  firstString(r, "id", "externalId", "extensionId"),
			Extension:   ext,
			DisplayName: firstString(r, "displayName", "name", "fullName"),
			Metadata:    r,
		})
	}
	return out, nil
}
