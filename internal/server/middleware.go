package server

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/switchboard/internal/apikey/domain"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
	"github.com/smallbiznis/switchboard/internal/authorization"
	obscontext "github.com/smallbiznis/switchboard/internal/observability/context"
)

const (
	headerAPIKey = "X-API-Key"
	apiKeyPrefix = "sk_"
)

// AuthRequired resolves the caller from a bearer session token or an API key
// and stores it on the request context. The legacy x-user-id header is never
// consulted.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := s.resolveActor(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := authorization.WithActor(c.Request.Context(), actor)
		ctx = obscontext.WithActor(ctx, string(actor.Kind), actor.ID())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) resolveActor(c *gin.Context) (authorization.Actor, error) {
	ctx := c.Request.Context()

	if raw := strings.TrimSpace(c.GetHeader(headerAPIKey)); raw != "" {
		return s.apiKeyActor(ctx, raw)
	}

	token := bearerToken(c)
	if token == "" {
		return authorization.Actor{}, ErrUnauthorized
	}
	if strings.HasPrefix(token, apiKeyPrefix) {
		return s.apiKeyActor(ctx, token)
	}

	session, err := s.authsvc.Authenticate(ctx, token)
	if err != nil {
		return authorization.Actor{}, err
	}
	if session == nil || session.UserID == 0 {
		return authorization.Actor{}, ErrUnauthorized
	}
	return authorization.UserActor(session.UserID), nil
}

func (s *Server) apiKeyActor(ctx context.Context, raw string) (authorization.Actor, error) {
	key, err := s.apiKeySvc.Verify(ctx, raw)
	if err != nil {
		if errors.Is(err, apikeydomain.ErrNotFound) {
			return authorization.Actor{}, ErrUnauthorized
		}
		return authorization.Actor{}, err
	}
	return authorization.Actor{
		Kind:     authorization.ActorAPIKey,
		APIKeyID: key.ID,
		Scope: &authorization.Scope{
			Kind:  authorization.ScopeKind(key.Scope),
			OrgID: key.OrgID,
		},
	}, nil
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func actorFrom(c *gin.Context) (authorization.Actor, bool) {
	return authorization.ActorFromContext(c.Request.Context())
}

// userActor returns the calling user. API keys are refused on user-only routes.
func userActor(c *gin.Context) (authorization.Actor, error) {
	actor, ok := actorFrom(c)
	if !ok {
		return authorization.Actor{}, ErrUnauthorized
	}
	if actor.Kind != authorization.ActorUser {
		return authorization.Actor{}, ErrForbidden
	}
	return actor, nil
}

// authorize checks the caller against an org, or against the platform when
// orgID is nil.
func (s *Server) authorize(c *gin.Context, orgID *snowflake.ID, object, action string) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrUnauthorized
	}
	if orgID != nil {
		c.Request = c.Request.WithContext(obscontext.WithOrgID(c.Request.Context(), orgID.String()))
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor, orgID, object, action)
}

func (s *Server) authorizePlatform(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorize(c, nil, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// authorizeOrgParam checks the caller against the org named by a path parameter.
func (s *Server) authorizeOrgParam(param, object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := pathID(c, param)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.authorize(c, &orgID, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// visibleOrgs returns nil when the caller sees every org.
func (s *Server) visibleOrgs(c *gin.Context) ([]snowflake.ID, error) {
	actor, ok := actorFrom(c)
	if !ok {
		return nil, ErrUnauthorized
	}
	return s.authzSvc.VisibleOrgIDs(c.Request.Context(), actor)
}

// assignedOnly reports whether org data must be narrowed to the org's
// assigned numbers for this caller. Admins of the org see everything.
func (s *Server) assignedOnly(c *gin.Context, orgID snowflake.ID) (bool, error) {
	actor, ok := actorFrom(c)
	if !ok {
		return false, ErrUnauthorized
	}
	admin, err := s.authzSvc.IsAdminFor(c.Request.Context(), actor, orgID)
	if err != nil {
		return false, err
	}
	return !admin, nil
}

func isSessionError(err error) bool {
	return errors.Is(err, authdomain.ErrSessionNotFound) ||
		errors.Is(err, authdomain.ErrSessionExpired) ||
		errors.Is(err, authdomain.ErrSessionRevoked) ||
		errors.Is(err, authdomain.ErrInvalidSession)
}
