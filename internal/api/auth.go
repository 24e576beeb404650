package api

import (
	"net/http"

	"funnel-crm/internal/account"
	"funnel-crm/internal/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	Accounts     *account.Service
	JWT          *auth.JWTService
	SecureCookie bool
	log          *zap.Logger
}

func NewAuthHandler(accounts *account.Service, jwt *auth.JWTService, secureCookie bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Accounts: accounts, JWT: jwt, SecureCookie: secureCookie, log: log}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	acc, err := h.Accounts.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info("account registered", zap.Uint("account_id", acc.ID))
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user": gin.H{
			"id":     acc.ID,
			"email":  acc.Email,
			"apiKey": acc.APIKey,
		},
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	acc, err := h.Accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	token, err := h.JWT.SignSession(acc.ID, acc.Email, acc.Role)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	auth.SetSessionCookie(c, token, h.JWT.TTL(), h.SecureCookie)

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":    acc.ID,
			"email": acc.Email,
			"role":  acc.Role,
		},
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	auth.ClearSessionCookie(c, h.SecureCookie)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	acc := currentAccount(c)
	c.JSON(http.StatusOK, gin.H{
		"id":     acc.ID,
		"email":  acc.Email,
		"role":   acc.Role,
		"apiKey": acc.APIKey,
	})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	if err := h.Accounts.UpdatePassword(c.Request.Context(), currentAccount(c).ID, req.Password); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
