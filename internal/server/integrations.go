package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	integrationdomain "github.com/smallbiznis/switchboard/internal/integration/domain"
)

// GetMightyCallIntegration never returns the secret. The client id is masked.
func (s *Server) GetMightyCallIntegration(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	view, err := s.integrationSvc.Get(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integration": view})
}

func (s *Server) PutMightyCallIntegration(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req integrationdomain.PutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.integrationSvc.Put(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integration": view})
}

func (s *Server) DeleteMightyCallIntegration(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.integrationSvc.Delete(c.Request.Context(), orgID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
