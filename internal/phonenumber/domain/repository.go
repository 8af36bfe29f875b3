package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository hides whether ownership lives in phone_numbers.org_id or in org_phone_numbers.
type Repository interface {
	Upsert(ctx context.Context, numbers []PhoneNumber) (int64, error)
	ListAll(ctx context.Context, unassignedOnly bool) ([]PhoneNumber, error)
	ListForOrg(ctx context.Context, orgID snowflake.ID) ([]PhoneNumber, error)
	CountExisting(ctx context.Context, ids []snowflake.ID) (int64, error)
	// Assign moves ids to orgID. Ownership changes never touch the number's
	// updated_at; at stamps the mapping row where one exists.
	Assign(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID, at time.Time) error
	Unassign(ctx context.Context, orgID, id snowflake.ID) (int64, error)
	OrgIDsWithNumbers(ctx context.Context) ([]snowflake.ID, error)
}
