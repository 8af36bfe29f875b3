package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	ListAll(ctx context.Context, unassignedOnly bool) ([]PhoneNumber, error)
	ListForOrg(ctx context.Context, orgID snowflake.ID) ([]PhoneNumber, error)
	MatchSetForOrg(ctx context.Context, orgID snowflake.ID) (MatchSet, error)
	Assign(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID) error
	Unassign(ctx context.Context, orgID, id snowflake.ID) error
	Upsert(ctx context.Context, numbers []PhoneNumber) (int, error)
	OrgIDsWithNumbers(ctx context.Context) ([]snowflake.ID, error)
}

var (
	ErrMissingRequiredFields = errors.New("missing_required_fields")
	ErrNotFound              = errors.New("phone_number_not_found")
	ErrNotFoundForOrg        = errors.New("phone_number_not_found_for_org")
)
