package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	userdomain "github.com/janmager/myfreelance-backend/internal/user/domain"
)

type usageRequest struct {
	UserID string `json:"user_id"`
}

// UsageOverview returns per-resource usage against the user's limits.
func (s *Server) UsageOverview(c *gin.Context) {
	var req usageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		AbortWithError(c, userdomain.ErrUserIDMissing)
		return
	}

	overview, err := s.usageSvc.Overview(c.Request.Context(), req.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}
