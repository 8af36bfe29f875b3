package authorization

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

type ActorKind string

const (
	ActorUser   ActorKind = "user"
	ActorAPIKey ActorKind = "api_key"
	ActorSystem ActorKind = "system"
)

type ScopeKind string

const (
	ScopePlatform ScopeKind = "platform"
	ScopeOrg      ScopeKind = "org"
)

// Scope limits what an API key may reach.
type Scope struct {
	Kind  ScopeKind
	OrgID *snowflake.ID
}

// Allows reports whether the scope reaches orgID. A nil orgID means a
// platform-level operation, which only platform keys may perform.
func (s Scope) Allows(orgID *snowflake.ID) bool {
	switch s.Kind {
	case ScopePlatform:
		return true
	case ScopeOrg:
		return orgID != nil && s.OrgID != nil && *s.OrgID == *orgID
	default:
		return false
	}
}

// Actor is the authenticated caller of a request.
type Actor struct {
	Kind     ActorKind
	UserID   snowflake.ID
	APIKeyID string
	Scope    *Scope
}

func UserActor(userID snowflake.ID) Actor {
	return Actor{Kind: ActorUser, UserID: userID}
}

func SystemActor() Actor {
	return Actor{Kind: ActorSystem}
}

func (a Actor) IsZero() bool {
	switch a.Kind {
	case ActorUser:
		return a.UserID == 0
	case ActorAPIKey:
		return a.APIKeyID == ""
	case ActorSystem:
		return false
	default:
		return true
	}
}

// ID returns the identifier recorded in audit logs.
func (a Actor) ID() string {
	switch a.Kind {
	case ActorUser:
		return a.UserID.String()
	case ActorAPIKey:
		return a.APIKeyID
	default:
		return ""
	}
}

func (a Actor) subject() string {
	switch a.Kind {
	case ActorUser:
		return fmt.Sprintf("user:%s", a.UserID.String())
	case ActorAPIKey:
		return fmt.Sprintf("api_key:%s", a.APIKeyID)
	default:
		return "system"
	}
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.IsZero() {
		return Actor{}, false
	}
	return actor, true
}
