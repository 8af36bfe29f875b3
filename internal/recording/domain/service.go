package domain

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
)

type ListRequest struct {
	OrgID *snowflake.ID
	Limit int
	// AssignedNumbersOnly keeps recordings tied to the org's numbers.
	AssignedNumbersOnly bool
}

type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	FileName      string
}

type Service interface {
	List(ctx context.Context, req ListRequest) ([]View, error)
	Get(ctx context.Context, id snowflake.ID) (*Recording, error)
	Open(ctx context.Context, rec *Recording) (*Download, error)
}

var (
	ErrNotFound = errors.New("recording_not_found")
	ErrNoURL    = errors.New("recording_url_missing")
)

// FetchError is a non-2xx response from the recording host.
type FetchError struct {
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("recording fetch failed: status %d", e.Status)
}
