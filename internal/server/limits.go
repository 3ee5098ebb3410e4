package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	entitlementdomain "github.com/janmager/myfreelance-backend/internal/entitlement/domain"
	userdomain "github.com/janmager/myfreelance-backend/internal/user/domain"
)

type limitCheckRequest struct {
	UserID string `json:"user_id"`
}

type fileCheckRequest struct {
	UserID   string `json:"user_id"`
	FileSize int64  `json:"file_size"`
}

// CheckResourceLimit answers whether the user may create one more item
// of the given kind.
func (s *Server) CheckResourceLimit(kind entitlementdomain.ResourceKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req limitCheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if strings.TrimSpace(req.UserID) == "" {
			AbortWithError(c, userdomain.ErrUserIDMissing)
			return
		}

		result, err := s.entitlementSvc.CheckResource(c.Request.Context(), req.UserID, kind)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// CheckFileSize answers whether a candidate upload fits in the user's
// storage allowance.
func (s *Server) CheckFileSize(c *gin.Context) {
	var req fileCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		AbortWithError(c, userdomain.ErrUserIDMissing)
		return
	}

	result, err := s.entitlementSvc.CheckFileUpload(c.Request.Context(), req.UserID, req.FileSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) ListLimits(c *gin.Context) {
	limits, err := s.entitlementSvc.ListLimits(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"limits": limits})
}

type updateLimitsRequest struct {
	Limits []entitlementdomain.Limit `json:"limits"`
}

// UpdateLimits replaces per-tier allowances. The batch applies
// atomically.
func (s *Server) UpdateLimits(c *gin.Context) {
	var req updateLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if len(req.Limits) == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.entitlementSvc.UpdateLimits(c.Request.Context(), req.Limits); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AdminLimitsStats serves the admin panel: active users by tier,
// global usage totals and the current limit table.
func (s *Server) AdminLimitsStats(c *gin.Context) {
	stats, err := s.usageSvc.AdminStats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	limits, err := s.entitlementSvc.ListLimits(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": gin.H{
		"users_by_level": stats.UsersByLevel,
		"total_usage":    stats.TotalUsage,
		"limits":         limits,
	}})
}
