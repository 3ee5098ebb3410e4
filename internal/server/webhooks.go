package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/janmager/myfreelance-backend/internal/config"
)

// HandleProviderWebhook ingests a raw delivery addressed to a specific
// provider.
func (s *Server) HandleProviderWebhook(c *gin.Context) {
	s.ingestWebhook(c, strings.TrimSpace(c.Param("provider")))
}

// HandleWebhook ingests a delivery on the shared webhook path and
// infers the provider from its signature header.
func (s *Server) HandleWebhook(c *gin.Context) {
	provider := s.cfg.BillingProvider
	switch {
	case c.GetHeader("Stripe-Signature") != "":
		provider = config.ProviderStripe
	case c.GetHeader("X-Signature") != "":
		provider = config.ProviderLemonSqueezy
	}
	s.ingestWebhook(c, provider)
}

func (s *Server) ingestWebhook(c *gin.Context, provider string) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.reconciler.HandleWebhook(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
