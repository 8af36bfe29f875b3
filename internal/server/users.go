package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/switchboard/internal/authorization"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	userdomain "github.com/smallbiznis/switchboard/internal/user/domain"
)

type createUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	GlobalRole  string `json:"globalRole"`
	OrgID       string `json:"orgId"`
	Role        string `json:"role"`
}

type membershipRequest struct {
	OrgID     string  `json:"orgId"`
	UserID    string  `json:"userId"`
	Role      string  `json:"role"`
	Extension *string `json:"mightycall_extension"`
}

type globalRoleRequest struct {
	GlobalRole string `json:"globalRole"`
}

func (s *Server) ListUsers(c *gin.Context) {
	users, err := s.userSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": nonNil(users)})
}

// CreateUser creates a login. With orgId the caller needs member management
// on that org, otherwise platform user management.
func (s *Server) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orgID, err := parseOptionalSnowflakeID(req.OrgID)
	if err != nil {
		AbortWithError(c, newValidationError("orgId", "invalid_org_id", "orgId must be a valid id"))
		return
	}

	if orgID != nil {
		err = s.authorizeMembershipGrant(c, *orgID, req.Role)
	} else {
		err = s.authorize(c, nil, authorization.ObjectUser, authorization.ActionUserManage)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if req.GlobalRole != "" {
		if err := s.requirePlatformAdmin(c); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	user, err := s.userSvc.Create(c.Request.Context(), userdomain.CreateRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		GlobalRole:  req.GlobalRole,
		OrgID:       orgID,
		Role:        req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (s *Server) UpdateUserMembership(c *gin.Context) {
	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req membershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orgID, err := parseOptionalSnowflakeID(req.OrgID)
	if err != nil || orgID == nil {
		AbortWithError(c, newValidationError("orgId", "invalid_org_id", "orgId is required"))
		return
	}
	if err := s.authorizeMembershipGrant(c, *orgID, req.Role); err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.userSvc.UpdateMembership(c.Request.Context(), userID, *orgID, req.Role); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) SetGlobalRole(c *gin.Context) {
	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req globalRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.userSvc.SetGlobalRole(c.Request.Context(), userID, req.GlobalRole); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) GetPlatformPermissions(c *gin.Context) {
	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	perms, err := s.userSvc.GetPlatformPermissions(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

func (s *Server) SetPlatformPermissions(c *gin.Context) {
	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req userdomain.PlatformPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	perms, err := s.userSvc.SetPlatformPermissions(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

// ListAgents lists agents across the orgs visible to the caller.
func (s *Server) ListAgents(c *gin.Context) {
	visible, err := s.visibleOrgs(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if visible != nil && len(visible) == 0 {
		c.JSON(http.StatusOK, gin.H{"agents": []userdomain.Agent{}})
		return
	}

	agents, err := s.userSvc.ListAgents(c.Request.Context(), visible)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": nonNil(agents)})
}

func (s *Server) ListOrgUsers(c *gin.Context) {
	orgID, err := queryOrgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if orgID != nil {
		err = s.authorize(c, orgID, authorization.ObjectMember, authorization.ActionMemberView)
	} else {
		err = s.authorize(c, nil, authorization.ObjectUser, authorization.ActionUserView)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	members, err := s.orgSvc.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"org_users": nonNil(members)})
}

func (s *Server) UpsertOrgUser(c *gin.Context) {
	orgID, userID, req, ok := s.bindMembership(c)
	if !ok {
		return
	}
	if err := s.authorizeMembershipGrant(c, orgID, req.Role); err != nil {
		AbortWithError(c, err)
		return
	}

	member, err := s.orgSvc.UpsertMember(c.Request.Context(), orgdomain.UpsertMemberRequest{
		OrgID:     orgID,
		UserID:    userID,
		Role:      req.Role,
		Extension: req.Extension,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"org_user": member})
}

func (s *Server) RemoveOrgUser(c *gin.Context) {
	orgID, userID, _, ok := s.bindMembership(c)
	if !ok {
		return
	}
	if err := s.authorize(c, &orgID, authorization.ObjectMember, authorization.ActionMemberManage); err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.orgSvc.RemoveMember(c.Request.Context(), orgID, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) bindMembership(c *gin.Context) (snowflake.ID, snowflake.ID, membershipRequest, bool) {
	var req membershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return 0, 0, req, false
	}
	orgID, err := parseOptionalSnowflakeID(req.OrgID)
	if err != nil || orgID == nil {
		AbortWithError(c, newValidationError("orgId", "invalid_org_id", "orgId is required"))
		return 0, 0, req, false
	}
	userID, err := parseOptionalSnowflakeID(req.UserID)
	if err != nil || userID == nil {
		AbortWithError(c, newValidationError("userId", "invalid_user_id", "userId is required"))
		return 0, 0, req, false
	}
	return *orgID, *userID, req, true
}

// authorizeMembershipGrant requires member management on the org. Granting an
// admin-level role additionally requires being an admin of that org.
func (s *Server) authorizeMembershipGrant(c *gin.Context, orgID snowflake.ID, role string) error {
	if err := s.authorize(c, &orgID, authorization.ObjectMember, authorization.ActionMemberManage); err != nil {
		return err
	}
	if !isOrgAdminRole(role) {
		return nil
	}
	actor, ok := actorFrom(c)
	if !ok {
		return ErrUnauthorized
	}
	admin, err := s.authzSvc.IsAdminFor(c.Request.Context(), actor, orgID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}

func (s *Server) requirePlatformAdmin(c *gin.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrUnauthorized
	}
	admin, err := s.authzSvc.IsPlatformAdmin(c.Request.Context(), actor)
	if err != nil {
		return err
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}

func isOrgAdminRole(role string) bool {
	switch role {
	case orgdomain.RoleOrgAdmin, orgdomain.RoleAdmin, orgdomain.RoleOwner:
		return true
	}
	return false
}
