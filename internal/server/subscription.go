package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	userdomain "github.com/janmager/myfreelance-backend/internal/user/domain"
)

type checkoutRequest struct {
	UserID      string `json:"user_id"`
	ProductName string `json:"product_name"`
	Provider    string `json:"provider"`
}

// Checkout starts a hosted checkout for the requested plan.
func (s *Server) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.subscriptionSvc.Checkout(c.Request.Context(), req.UserID, req.ProductName, req.Provider)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type subscriptionActionRequest struct {
	UserID         string `json:"user_id"`
	SubscriptionID string `json:"subscription_id"`
}

// CancelSubscription schedules a period-end cancellation. Access and
// the premium tier stay until the paid period ends.
func (s *Server) CancelSubscription(c *gin.Context) {
	var req subscriptionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.subscriptionSvc.Cancel(c.Request.Context(), req.UserID, req.SubscriptionID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ResumeSubscription undoes a pending period-end cancellation.
func (s *Server) ResumeSubscription(c *gin.Context) {
	var req subscriptionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.subscriptionSvc.Resume(c.Request.Context(), req.UserID, req.SubscriptionID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type userRequest struct {
	UserID string `json:"user_id"`
}

func bindUserID(c *gin.Context) (string, bool) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return "", false
	}
	if strings.TrimSpace(req.UserID) == "" {
		AbortWithError(c, userdomain.ErrUserIDMissing)
		return "", false
	}
	return req.UserID, true
}

func (s *Server) GetSubscription(c *gin.Context) {
	userID, ok := bindUserID(c)
	if !ok {
		return
	}

	info, err := s.subscriptionSvc.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": info})
}

func (s *Server) PremiumStatus(c *gin.Context) {
	userID, ok := bindUserID(c)
	if !ok {
		return
	}

	status, err := s.subscriptionSvc.PremiumStatus(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) ManagementInfo(c *gin.Context) {
	userID, ok := bindUserID(c)
	if !ok {
		return
	}

	info, err := s.subscriptionSvc.ManagementInfo(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// ListProducts exposes the plan catalog for the pricing page.
func (s *Server) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": s.catalog.Products()})
}
