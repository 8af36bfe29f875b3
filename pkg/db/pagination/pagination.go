package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	Limit     int    `form:"limit"`
}

// Cursor marks the last row of a page ordered by (created_at DESC, id DESC).
type Cursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// ClampLimit parses a raw limit, falling back to def and capping at max.
func ClampLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidPageToken
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidPageToken
	}
	if _, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt); err != nil || cursor.ID == "" {
		return nil, ErrInvalidPageToken
	}
	return &cursor, nil
}

// Trim cuts a limit+1 result down to limit and builds the page info from the last kept row.
func Trim[T any](data []T, limit int, cursorOf func(T) Cursor) ([]T, PageInfo, error) {
	if len(data) <= limit {
		return data, PageInfo{}, nil
	}
	data = data[:limit]
	token, err := EncodeCursor(cursorOf(data[len(data)-1]))
	if err != nil {
		return nil, PageInfo{}, err
	}
	return data, PageInfo{NextPageToken: token, HasMore: true}, nil
}
