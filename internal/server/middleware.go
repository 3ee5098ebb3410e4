package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const headerAdminUser = "X-Admin-User-ID"

// RequireAdmin gates the admin routes on an active admin account.
func (s *Server) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID := strings.TrimSpace(c.GetHeader(headerAdminUser))
		if adminID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.userRepo.FindByID(c.Request.Context(), s.db, adminID)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !user.IsAdmin() {
			AbortWithError(c, ErrForbidden)
			return
		}

		c.Next()
	}
}
