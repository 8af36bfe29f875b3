package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	List(ctx context.Context, scope string, orgID *snowflake.ID) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Revoke(ctx context.Context, scope string, orgID *snowflake.ID, id string) error
	// Verify resolves a presented key to an active record and stamps last_used_at.
	Verify(ctx context.Context, raw string) (*APIKey, error)
}

type CreateRequest struct {
	Scope     string
	OrgID     *snowflake.ID
	Name      string
	CreatedBy *snowflake.ID
}

type Response struct {
	ID         string        `json:"id"`
	Scope      string        `json:"scope"`
	OrgID      *snowflake.ID `json:"org_id,omitempty"`
	Name       string        `json:"name"`
	KeyPrefix  string        `json:"key_prefix"`
	CreatedAt  time.Time     `json:"created_at"`
	LastUsedAt *time.Time    `json:"last_used_at"`
	RevokedAt  *time.Time    `json:"revoked_at"`
}

type SecretResponse struct {
	Response
	APIKey string `json:"api_key"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidScope        = errors.New("invalid_scope")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidKeyID        = errors.New("invalid_key_id")
	ErrInvalidKey          = errors.New("invalid_api_key")
	ErrNotFound            = errors.New("api_key_not_found")
)
