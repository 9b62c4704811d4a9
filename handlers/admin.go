package handlers

import (
	"errors"
	"net/http"
	"strings"

	sandboxRepo "flexify/database/repository/sandbox"
	"flexify/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminUsers returns all accounts.
func (hb *HandlerBundle) AdminUsers(c *gin.Context) {
	c.JSON(http.StatusOK, hb.Repo.ListAccounts(""))
}

// AdminUpdateUser handles PATCH /admin/users/:id. Only the blocked flag can
// change; admins cannot block themselves.
func (hb *HandlerBundle) AdminUpdateUser(c *gin.Context) {
	logger := hb.getLogger(c)
	adminID, _ := caller(c)

	var req struct {
		Blocked *bool `json:"blocked" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "blocked is required"})
		return
	}
	if c.Param("id") == adminID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot block your own account"})
		return
	}

	user, err := hb.Repo.SetBlocked(c.Param("id"), *req.Blocked)
	if errors.Is(err, sandboxRepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		logger.Error("Failed to update user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	logger.Info("User block status changed", zap.String("userID", user.ID), zap.Bool("blocked", user.Blocked))
	c.JSON(http.StatusOK, user)
}

// AdminProviders returns every provider profile.
func (hb *HandlerBundle) AdminProviders(c *gin.Context) {
	c.JSON(http.StatusOK, hb.Repo.ListProviders("", false))
}

// AdminPendingProviders returns the profiles awaiting verification.
func (hb *HandlerBundle) AdminPendingProviders(c *gin.Context) {
	pending := []models.ProviderCandidate{}
	for _, p := range hb.Repo.ListProviders("", false) {
		if p.VerificationStatus == models.VerificationPending {
			pending = append(pending, p)
		}
	}
	c.JSON(http.StatusOK, pending)
}

// AdminVerifyProvider handles POST /admin/providers/:id/verify.
func (hb *HandlerBundle) AdminVerifyProvider(c *gin.Context) {
	hb.moderateProvider(c, func(p *models.ProviderCandidate) {
		p.Verified = true
		p.VerificationStatus = models.VerificationVerified
		p.RejectionReason = ""
	})
}

// AdminRejectProvider handles POST /admin/providers/:id/reject. A reason is
// required.
func (hb *HandlerBundle) AdminRejectProvider(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A rejection reason is required"})
		return
	}
	hb.moderateProvider(c, func(p *models.ProviderCandidate) {
		p.Verified = false
		p.VerificationStatus = models.VerificationRejected
		p.RejectionReason = strings.TrimSpace(req.Reason)
	})
}

func (hb *HandlerBundle) moderateProvider(c *gin.Context, apply func(p *models.ProviderCandidate)) {
	logger := hb.getLogger(c)
	p, err := hb.Repo.UpdateProvider(c.Param("id"), func(p *models.ProviderCandidate) error {
		apply(p)
		return nil
	})
	if errors.Is(err, sandboxRepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider not found"})
		return
	}
	if err != nil {
		logger.Error("Failed to moderate provider", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update provider"})
		return
	}
	logger.Info("Provider moderated", zap.String("providerID", p.ID), zap.String("status", p.VerificationStatus))
	c.JSON(http.StatusOK, p)
}

// AdminBookings returns every booking, newest first.
func (hb *HandlerBundle) AdminBookings(c *gin.Context) {
	c.JSON(http.StatusOK, hb.Repo.AllBookings())
}
