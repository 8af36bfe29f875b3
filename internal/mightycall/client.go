package mightycall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/switchboard/internal/config"
	"go.uber.org/zap"
)

const (
	maxResponseBytes = 16 << 20
	maxErrorBody     = 512
)

// Credentials are a client id/secret pair. The client id doubles as the
// x-api-key header value.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (c *Credentials) valid() bool {
	return c != nil && strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// Token is a bearer token plus the API key it was issued for.
type Token struct {
	AccessToken string
	APIKey      string
}

// API is the provider surface used by the sync engine.
type API interface {
	Token(ctx context.Context, creds *Credentials) (*Token, error)
	PhoneNumbers(ctx context.Context, tok *Token) ([]PhoneNumber, error)
	Calls(ctx context.Context, tok *Token, filter CallFilter) ([]Call, error)
	JournalRequests(ctx context.Context, tok *Token, filter JournalFilter) ([]JournalRequest, error)
	Recordings(ctx context.Context, tok *Token, rng DateRange) ([]Recording, error)
	SMS(ctx context.Context, tok *Token, rng DateRange) ([]JournalRequest, error)
	Extensions(ctx context.Context, tok *Token) ([]Extension, error)
}

type Client struct {
	baseURL  string
	defaults Credentials
	http     *http.Client
	log      *zap.Logger
}

var _ API = (*Client)(nil)

func New(cfg config.Config, log *zap.Logger) *Client {
	timeout := cfg.MightyCall.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.MightyCall.BaseURL, "/"),
		defaults: Credentials{
			ClientID:     cfg.MightyCall.APIKey,
			ClientSecret: cfg.MightyCall.ClientSecret,
		},
		http: &http.Client{Timeout: timeout},
		log:  log.Named("mightycall.client"),
	}
}

func (c *Client) getJSON(ctx context.Context, tok *Token, path string, query url.Values) (any, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if tok != nil {
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		req.Header.Set("x-api-key", tok.APIKey)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mightycall %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("mightycall %s: read body: %w", path, err)
	}
	c.log.Debug("provider request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Path: path, Status: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}
	return decodeBody(raw), nil
}

// decodeBody returns the parsed JSON value, or the raw text when the
// body is not JSON.
func decodeBody(raw []byte) any {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil
	}
	var out any
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return trimmed
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
