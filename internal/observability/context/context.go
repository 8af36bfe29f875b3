// Package context carries request correlation fields used by logs and traces.
package context

import "context"

type requestIDKey struct{}
type orgIDKey struct{}
type actorKey struct{}

type actor struct {
	kind string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey{}, orgID)
}

func OrgIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(orgIDKey{}).(string)
	return v
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{kind: actorType, id: actorID})
}

func ActorFromContext(ctx context.Context) (string, string) {
	v, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return v.kind, v.id
}
