package mightycall

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

var tokenKeys = []string{
	"access_token",
	"token",
	"jwt",
	"data.access_token",
	"data.token",
	"result.access_token",
	"result.token",
}

// Token exchanges client credentials for a bearer token. A nil creds
// falls back to the configured global credentials. One attempt is made.
func (c *Client) Token(ctx context.Context, creds *Credentials) (*Token, error) {
	if !creds.valid() {
		if creds != nil && (creds.ClientID != "" || creds.ClientSecret != "") {
			return nil, &AuthError{Err: ErrMissingCredentials}
		}
		creds = &c.defaults
	}
	if !creds.valid() {
		return nil, &AuthError{Err: ErrMissingCredentials}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", creds.ClientID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("token exchange rejected", zap.Int("status", resp.StatusCode))
		return nil, &AuthError{Status: resp.StatusCode}
	}

	token := pickToken(decodeBody(raw))
	if token == "" {
		return nil, &AuthError{Err: errors.New("token missing from response")}
	}
	return &Token{AccessToken: token, APIKey: creds.ClientID}, nil
}

func pickToken(body any) string {
	switch v := body.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return Record(v).String(tokenKeys...)
	default:
		return ""
	}
}
