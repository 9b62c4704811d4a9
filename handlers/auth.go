package handlers

import (
	"errors"
	"net/http"
	"strings"

	sandboxRepo "flexify/database/repository/sandbox"
	"flexify/middleware"
	"flexify/models"
	"flexify/services/booking"
	"flexify/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (hb *HandlerBundle) issueTokens(user models.User) (tokenPair, error) {
	access, err := utils.GenerateToken(hb.Secret, user.ID, string(user.Role), utils.AccessTokenKind, hb.AccessTTL)
	if err != nil {
		return tokenPair{}, err
	}
	refresh, err := utils.GenerateToken(hb.Secret, user.ID, string(user.Role), utils.RefreshTokenKind, hb.RefreshTTL)
	if err != nil {
		return tokenPair{}, err
	}
	return tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Login handles POST /auth/login and returns the account with a token pair.
func (hb *HandlerBundle) Login(c *gin.Context) {
	logger := hb.getLogger(c)

	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	user, err := hb.Repo.Authenticate(req.Email, req.Password)
	if errors.Is(err, sandboxRepo.ErrBlocked) {
		logger.Info("Blocked account tried to log in", zap.String("email", req.Email))
		c.JSON(http.StatusForbidden, gin.H{"error": "Your account has been blocked. Please contact support."})
		return
	}
	if err != nil {
		logger.Info("Login failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	tokens, err := hb.issueTokens(*user)
	if err != nil {
		logger.Error("Failed to sign tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	logger.Info("Account logged in", zap.String("accountID", user.ID), zap.String("role", string(user.Role)))
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"user":         user,
		"role":         user.Role,
	})
}

// Register handles POST /auth/register. Provider accounts get a provider
// profile that stays unverified until an admin approves it.
func (hb *HandlerBundle) Register(c *gin.Context) {
	logger := hb.getLogger(c)

	var req models.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid registration request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid registration request"})
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if msg := validateRegistration(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if req.Role == models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin accounts cannot be registered"})
		return
	}

	user, err := hb.Repo.CreateAccount(models.User{
		Name:  strings.TrimSpace(req.Name),
		Email: req.Email,
		Phone: req.Phone,
		Role:  req.Role,
	}, req.Password)
	if errors.Is(err, sandboxRepo.ErrDuplicateUser) {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}
	if err != nil {
		logger.Error("Failed to create account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	if user.Role == models.RoleProvider {
		profile := models.ProviderCandidate{
			ID:                 user.ID,
			Name:               user.Name,
			Category:           req.Category,
			Description:        req.Description,
			Languages:          req.Languages,
			VerificationStatus: models.VerificationPending,
		}
		if req.ServiceArea != nil && req.ServiceArea.Valid() {
			profile.Location = req.ServiceArea.Point()
		}
		hb.Repo.UpsertProvider(profile)
	}
	logger.Info("Account registered", zap.String("accountID", user.ID), zap.String("role", string(user.Role)))
	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful", "user": user})
}

func validateRegistration(req models.Registration) string {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return "Name is required"
	case !strings.Contains(req.Email, "@"):
		return "A valid email is required"
	case len(req.Password) < 6:
		return "Password must be at least 6 characters long"
	}
	if _, ok := models.ParseRole(string(req.Role)); !ok {
		return "Invalid role"
	}
	if req.Role == models.RoleProvider {
		if _, ok := booking.LookupCategory(req.Category); !ok {
			return "Please select a valid service category"
		}
	}
	return ""
}

// RefreshToken handles POST /auth/refresh. Refresh tokens are single use.
func (hb *HandlerBundle) RefreshToken(c *gin.Context) {
	logger := hb.getLogger(c)

	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token is required"})
		return
	}

	claims, err := utils.ValidateToken(hb.Secret, req.RefreshToken)
	if err != nil {
		logger.Info("Token refresh failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}
	hash := utils.HashToken(req.RefreshToken)
	if kind, _ := claims["typ"].(string); kind != utils.RefreshTokenKind || hb.Repo.IsRevoked(hash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}
	accountID, _ := claims["sub"].(string)
	user, err := hb.Repo.GetAccount(accountID)
	if err != nil || user.Blocked {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account not found"})
		return
	}

	tokens, err := hb.issueTokens(*user)
	if err != nil {
		logger.Error("Failed to sign tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token refresh failed"})
		return
	}
	hb.Repo.RevokeToken(hash)
	c.JSON(http.StatusOK, tokens)
}

// Logout handles POST /auth/logout. The presented access token, if any, is
// revoked; the call always succeeds.
func (hb *HandlerBundle) Logout(c *gin.Context) {
	if token := middleware.BearerToken(c); token != "" {
		hb.Repo.RevokeToken(utils.HashToken(token))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
