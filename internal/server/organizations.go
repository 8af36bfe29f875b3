package server

import (
	"errors"
	"net/http"
	"slices"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/switchboard/internal/authorization"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
)

type createOrganizationRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type updateOrganizationRequest struct {
	Name             *string        `json:"name"`
	Timezone         *string        `json:"timezone"`
	SLATargetPercent *int           `json:"sla_target_percent"`
	SLATargetSeconds *int           `json:"sla_target_seconds"`
	BusinessHours    map[string]any `json:"business_hours"`
	EscalationEmail  *string        `json:"escalation_email"`
}

type assignPhoneNumbersRequest struct {
	PhoneNumberIDs []string `json:"phoneNumberIds"`
}

func (s *Server) ListOrganizations(c *gin.Context) {
	visible, err := s.visibleOrgs(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orgs, err := s.orgSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if visible != nil {
		orgs = slices.DeleteFunc(orgs, func(o orgdomain.Organization) bool {
			return !slices.Contains(visible, o.ID)
		})
	}

	c.JSON(http.StatusOK, gin.H{"orgs": nonNil(orgs)})
}

func (s *Server) CreateOrganization(c *gin.Context) {
	actor, err := userActor(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.orgSvc.Create(c.Request.Context(), actor.UserID, orgdomain.CreateOrganizationRequest{
		Name:     req.Name,
		Timezone: req.Timezone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"org": org})
}

// GetOrganization returns the org with its members, assigned numbers, today's
// stats and the permissions of its managers.
func (s *Server) GetOrganization(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ctx := c.Request.Context()

	org, err := s.orgSvc.Get(ctx, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	members, err := s.orgSvc.ListMembers(ctx, &orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	phones, err := s.phoneSvc.ListForOrg(ctx, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	stats, err := s.callSvc.TodayStats(ctx, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	canEdit, err := s.canEditPhoneNumbers(c, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"org":         org,
		"members":     nonNil(members),
		"phones":      nonNil(phones),
		"stats":       stats,
		"permissions": gin.H{"canEditPhoneNumbers": canEdit},
	})
}

// canEditPhoneNumbers reports whether the caller may assign numbers to orgID.
func (s *Server) canEditPhoneNumbers(c *gin.Context, orgID snowflake.ID) (bool, error) {
	err := s.authorize(c, &orgID, authorization.ObjectPhoneNumber, authorization.ActionPhoneNumberAssign)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, authorization.ErrForbidden):
		return false, nil
	default:
		return false, err
	}
}

func (s *Server) UpdateOrganization(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.orgSvc.Update(c.Request.Context(), orgID, orgdomain.UpdateOrganizationRequest{
		Name:             req.Name,
		Timezone:         req.Timezone,
		SLATargetPercent: req.SLATargetPercent,
		SLATargetSeconds: req.SLATargetSeconds,
		BusinessHours:    req.BusinessHours,
		EscalationEmail:  req.EscalationEmail,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"org": org})
}

func (s *Server) GetOrganizationStats(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	stats, err := s.callSvc.OrgStats(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) ListOrgMetrics(c *gin.Context) {
	metrics, err := s.callSvc.OrgMetrics(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orgs": nonNil(metrics)})
}

func (s *Server) ListPhoneNumbers(c *gin.Context) {
	unassigned, err := parseOptionalBool(c.Query("unassignedOnly"))
	if err != nil {
		AbortWithError(c, newValidationError("unassignedOnly", "invalid_unassigned_only", "unassignedOnly must be a boolean"))
		return
	}

	numbers, err := s.phoneSvc.ListAll(c.Request.Context(), unassigned != nil && *unassigned)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"phone_numbers": nonNil(numbers)})
}

func (s *Server) AssignPhoneNumbers(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req assignPhoneNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, phonenumberdomain.ErrMissingRequiredFields)
		return
	}
	ids := make([]snowflake.ID, 0, len(req.PhoneNumberIDs))
	for _, raw := range req.PhoneNumberIDs {
		id, err := parseOptionalSnowflakeID(raw)
		if err != nil || id == nil {
			AbortWithError(c, newValidationError("phoneNumberIds", "invalid_phone_number_id", "phoneNumberIds must contain valid ids"))
			return
		}
		ids = append(ids, *id)
	}

	if err := s.phoneSvc.Assign(c.Request.Context(), orgID, ids); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) UnassignPhoneNumber(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	phoneID, err := pathID(c, "phoneNumberId")
	if err != nil {
		AbortWithError(c, phonenumberdomain.ErrMissingRequiredFields)
		return
	}

	if err := s.phoneSvc.Unassign(c.Request.Context(), orgID, phoneID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetManagerPermissions(c *gin.Context) {
	orgID, memberID, ok := orgMemberParams(c)
	if !ok {
		return
	}

	perms, err := s.orgSvc.GetManagerPermissions(c.Request.Context(), orgID, memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

func (s *Server) SetManagerPermissions(c *gin.Context) {
	orgID, memberID, ok := orgMemberParams(c)
	if !ok {
		return
	}

	var req orgdomain.ManagerPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	perms, err := s.orgSvc.SetManagerPermissions(c.Request.Context(), orgID, memberID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

func orgMemberParams(c *gin.Context) (snowflake.ID, snowflake.ID, bool) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return 0, 0, false
	}
	memberID, err := pathID(c, "orgMemberId")
	if err != nil {
		AbortWithError(c, err)
		return 0, 0, false
	}
	return orgID, memberID, true
}
