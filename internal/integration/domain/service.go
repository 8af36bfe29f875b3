package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/mightycall"
)

type PutRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type Service interface {
	Get(ctx context.Context, orgID snowflake.ID) (*View, error)
	Put(ctx context.Context, orgID snowflake.ID, req PutRequest) (*View, error)
	Delete(ctx context.Context, orgID snowflake.ID) error
	// Credentials returns the org's override credentials, or nil when the
	// org has none and the global credentials apply.
	Credentials(ctx context.Context, orgID snowflake.ID) (*mightycall.Credentials, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrNotFound            = errors.New("integration_not_found")
	ErrNotConfigured       = errors.New("integration_encryption_not_configured")
)
