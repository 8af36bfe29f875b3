package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/switchboard/internal/apikey/domain"
	"github.com/smallbiznis/switchboard/internal/authorization"
)

type createAPIKeyRequest struct {
	Name string `json:"name"`
}

func (s *Server) ListPlatformAPIKeys(c *gin.Context) {
	s.listAPIKeys(c, apikeydomain.ScopePlatform, nil)
}

func (s *Server) CreatePlatformAPIKey(c *gin.Context) {
	s.createAPIKey(c, apikeydomain.ScopePlatform, nil)
}

func (s *Server) RevokePlatformAPIKey(c *gin.Context) {
	s.revokeAPIKey(c, apikeydomain.ScopePlatform, nil, c.Param("id"))
}

func (s *Server) ListOrgAPIKeys(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.listAPIKeys(c, apikeydomain.ScopeOrg, &orgID)
}

func (s *Server) CreateOrgAPIKey(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.createAPIKey(c, apikeydomain.ScopeOrg, &orgID)
}

func (s *Server) RevokeOrgAPIKey(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.revokeAPIKey(c, apikeydomain.ScopeOrg, &orgID, c.Param("keyId"))
}

func (s *Server) listAPIKeys(c *gin.Context, scope string, orgID *snowflake.ID) {
	keys, err := s.apiKeySvc.List(c.Request.Context(), scope, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": nonNil(keys)})
}

// createAPIKey returns the raw secret once. Only its hash is stored.
func (s *Server) createAPIKey(c *gin.Context, scope string, orgID *snowflake.ID) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var createdBy *snowflake.ID
	if actor, ok := actorFrom(c); ok && actor.Kind == authorization.ActorUser {
		createdBy = &actor.UserID
	}

	key, err := s.apiKeySvc.Create(c.Request.Context(), apikeydomain.CreateRequest{
		Scope:     scope,
		OrgID:     orgID,
		Name:      req.Name,
		CreatedBy: createdBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, key)
}

func (s *Server) revokeAPIKey(c *gin.Context, scope string, orgID *snowflake.ID, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		AbortWithError(c, apikeydomain.ErrInvalidKeyID)
		return
	}
	if err := s.apiKeySvc.Revoke(c.Request.Context(), scope, orgID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
