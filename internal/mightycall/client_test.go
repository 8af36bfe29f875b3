package mightycall

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{}
	cfg.MightyCall.BaseURL = srv.URL
	cfg.MightyCall.APIKey = "global-key"
	cfg.MightyCall.ClientSecret = "global-secret"
	cfg.MightyCall.Timeout = 2 * time.Second
	return New(cfg, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestTokenUsesFormAndNestedKeys(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/token", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "org-key", r.PostForm.Get("client_id"))
		assert.Equal(t, "org-key", r.Header.Get("x-api-key"))
		writeJSON(w, map[string]any{"data": map[string]any{"token": "tok-123"}})
	})

	tok, err := client.Token(context.Background(), &Credentials{ClientID: "org-key", ClientSecret: "org-secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok.AccessToken)
	assert.Equal(t, "org-key", tok.APIKey)
}

func TestTokenFallsBackToGlobalCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "global-key", r.PostForm.Get("client_id"))
		_, _ = w.Write([]byte("plain-token"))
	})

	tok, err := client.Token(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "plain-token", tok.AccessToken)
}

func TestTokenFailuresAreAuthErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	_, err := client.Token(context.Background(), nil)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "token exchange is not retried")

	_, err = client.Token(context.Background(), &Credentials{ClientID: "only-id"})
	assert.True(t, errors.Is(err, ErrMissingCredentials))
	assert.True(t, IsUpstream(err))
}

func TestTokenMissingFromBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	_, err := client.Token(context.Background(), nil)
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestPhoneNumbersNormalize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		writeJSON(w, map[string]any{"data": map[string]any{"phoneNumbers": []any{
			map[string]any{"objectGuid": "g-1", "number": " +1 (555) 010-0001 ", "friendlyName": "Main"},
			map[string]any{"businessNumber": map[string]any{"number": "5550100002"}, "isEnabled": false},
			map[string]any{"id": "no-number"},
		}}})
	})

	phones, err := client.PhoneNumbers(context.Background(), &Token{AccessToken: "tok", APIKey: "key"})
	require.NoError(t, err)
	require.Len(t, phones, 2)

	assert.Equal(t, "g-1", phones[0].ExternalID)
	assert.Equal(t, "+1 (555) 010-0001", phones[0].Number)
	assert.Equal(t, "15550100001", phones[0].NumberDigits)
	assert.Equal(t, "Main", phones[0].Label)
	assert.True(t, phones[0].IsActive)

	assert.Equal(t, "5550100002", phones[1].ExternalID, "number is the fallback external id")
	assert.False(t, phones[1].IsActive)
}

func TestPhoneNumbersProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := client.PhoneNumbers(context.Background(), &Token{AccessToken: "tok"})
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusBadGateway, providerErr.Status)
	assert.Contains(t, providerErr.Body, "boom")
}

func TestCallsPaginatesAndDedupes(t *testing.T) {
	var pages []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/calls", r.URL.Path)
		q := r.URL.Query()
		pages = append(pages, q.Get("page"))
		assert.Equal(t, "2", q.Get("pageSize"))
		assert.Equal(t, "2024-03-01T00:00:00Z", q.Get("startUtc"))

		switch q.Get("page") {
		case "1":
			assert.Equal(t, "0", q.Get("skip"))
			writeJSON(w, map[string]any{"data": map[string]any{"calls": []any{
				map[string]any{"id": "c1", "from": "+15550000001", "to": "+15550100001", "status": "Answered", "duration": 30},
				map[string]any{"id": "c2", "from": "+15550000002", "to": "+15559999999"},
			}}})
		case "2":
			assert.Equal(t, "2", q.Get("skip"))
			writeJSON(w, map[string]any{"calls": []any{
				map[string]any{"id": "c1"},
				map[string]any{"from": "+15550000003", "to": "5550100001", "dateTimeUtc": "2024-03-01T10:00:00Z",
					"callRecord": map[string]any{"uri": "https://rec.example/c3.mp3"}},
			}, "hasMore": true})
		default:
			writeJSON(w, map[string]any{"calls": []any{}})
		}
	})

	tok := &Token{AccessToken: "tok"}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	calls, err := client.Calls(context.Background(), tok, CallFilter{StartUTC: start, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, pages)
	require.Len(t, calls, 3)
	assert.Equal(t, "answered", calls[0].Status)
	assert.Equal(t, 30, calls[0].DurationSeconds)
	assert.Equal(t, "https://rec.example/c3.mp3", calls[2].RecordingURL)

	pages = nil
	filtered, err := client.Calls(context.Background(), tok, CallFilter{StartUTC: start, PageSize: 2, PhoneNumbers: []string{"(555) 010-0001"}})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestCallsStopsAtPageLimit(t *testing.T) {
	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		writeJSON(w, map[string]any{"items": []any{map[string]any{"id": "c" + strconv.Itoa(int(n))}}, "hasMore": true})
	})
	calls, err := client.Calls(context.Background(), &Token{}, CallFilter{PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, calls, maxPages)
	assert.Equal(t, int32(maxPages), atomic.LoadInt32(&hits))
}

func TestRecordingsFallBackToJournal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/calls":
			writeJSON(w, map[string]any{"calls": []any{map[string]any{"id": "c1"}}})
		case "/journal/requests":
			assert.Equal(t, "Call", r.URL.Query().Get("requestType"))
			writeJSON(w, map[string]any{"requests": []any{
				map[string]any{"id": "j1", "created": "2024-03-02T08:00:00Z", "recording": map[string]any{"link": "https://rec.example/j1"}},
				map[string]any{"id": "j2"},
			}})
		default:
			http.NotFound(w, r)
		}
	})

	recs, err := client.Recordings(context.Background(), &Token{}, DateRange{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "j1", recs[0].CallID)
	assert.Equal(t, "https://rec.example/j1", recs[0].URL)
	assert.Equal(t, "2024-03-02T08:00:00Z", recs[0].Date)
}

func TestSMSMergesTypes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("requestType") {
		case "Message":
			writeJSON(w, map[string]any{"requests": []any{
				map[string]any{"id": "m1", "textModel": map[string]any{"text": "hi"}},
			}})
		case "SMS":
			writeJSON(w, map[string]any{"data": []any{
				map[string]any{"id": "m1"},
				map[string]any{"created": "2024-03-02T08:00:00Z", "text": "yo"},
			}})
		default:
			writeJSON(w, map[string]any{"requests": []any{}})
		}
	})

	msgs, err := client.SMS(context.Background(), &Token{}, DateRange{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "2024-03-02T08:00:00Z:yo", SMSExternalID(msgs[1]))
}

func TestExtensionsFilterEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": map[string]any{"extensions": []any{
			map[string]any{"extensionId": "e1", "ext": " 101 ", "fullName": "Ada"},
			map[string]any{"id": "e2", "name": "Nobody"},
		}}})
	})

	exts, err := client.Extensions(context.Background(), &Token{})
	require.NoError(t, err)
	require.Len(t, exts, 1)
	assert.Equal(t, Extension{ExternalID: "e1", Extension: "101", DisplayName: "Ada", Metadata: exts[0].Metadata}, exts[0])
}

func TestRecordLookup(t *testing.T) {
	r := Record{
		"called":   []any{map[string]any{"phone": "+1555"}},
		"duration": "00:01:05",
		"empty":    "  ",
		"answer":   "yes",
	}
	assert.Equal(t, "+1555", r.String("missing", "called.0.phone"))
	assert.Equal(t, "", r.String("empty", "called.1.phone"))
	assert.Equal(t, 65, r.Int("duration"))
	assert.True(t, r.Bool(true, "answer"), "unparseable values fall back to the default")
}
