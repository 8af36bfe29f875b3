package authorization

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Authorize returns nil, ErrUnauthenticated or ErrForbidden. A nil
	// orgID authorizes a platform-level operation.
	Authorize(ctx context.Context, actor Actor, orgID *snowflake.ID, object string, action string) error
	// IsAdminFor reports whether the actor has full visibility of an org's
	// data: a platform admin, an org admin, or a key scoped to it.
	IsAdminFor(ctx context.Context, actor Actor, orgID snowflake.ID) (bool, error)
	IsPlatformAdmin(ctx context.Context, actor Actor) (bool, error)
	// VisibleOrgIDs returns nil for actors that see every org.
	VisibleOrgIDs(ctx context.Context, actor Actor) ([]snowflake.ID, error)
}
