package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      *authdomain.User `json:"user"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		AbortWithError(c, newValidationError("email", "missing_credentials", "email and password are required"))
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.User,
	})
}

// Logout revokes the presented session. An already dead session is not an error.
func (s *Server) Logout(c *gin.Context) {
	if _, err := userActor(c); err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authsvc.Logout(c.Request.Context(), bearerToken(c)); err != nil && !isSessionError(err) {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) GetProfile(c *gin.Context) {
	actor, err := userActor(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	user, err := s.authsvc.GetUser(c.Request.Context(), actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": user})
}

func (s *Server) ListUserOrgs(c *gin.Context) {
	actor, err := userActor(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orgs, err := s.orgSvc.ListForUser(c.Request.Context(), actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if orgs == nil {
		orgs = []orgdomain.OrganizationListItem{}
	}

	c.JSON(http.StatusOK, gin.H{"orgs": orgs})
}
