// Package api wires the interactive HTTP surface onto gin.
package api

import (
	"net/http"
	"strings"

	"funnel-crm/internal/account"
	"funnel-crm/internal/auth"
	"funnel-crm/internal/config"
	"funnel-crm/internal/contacts"
	"funnel-crm/internal/funnel"
	"funnel-crm/internal/ledger"
	"funnel-crm/internal/logger"
	"funnel-crm/internal/media"
	"funnel-crm/internal/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the services the router exposes.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Accounts *account.Service
	JWT      *auth.JWTService
	Funnels  *funnel.Engine
	Contacts *contacts.Service
	Ledger   *ledger.Ledger
	Bridge   *webhook.Bridge
	Notifier *webhook.Notifier
	Media    *media.Store
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(d.Log))
	r.Use(corsMiddleware(d.Config.CORSOrigin))

	sessions := auth.NewMiddleware(d.JWT, d.Accounts)
	requireSession := sessions.RequireSession()

	authHandler := NewAuthHandler(d.Accounts, d.JWT, d.Config.IsProduction(), d.Log)
	contactHandler := NewContactHandler(d.Contacts, d.Ledger, d.Log)
	messageHandler := NewMessageHandler(d.Ledger, d.Contacts, d.Notifier, d.Log)
	funnelHandler := NewFunnelHandler(d.Funnels, d.Log)
	uploadHandler := NewUploadHandler(d.Media, d.Config.UploadRequireAuth, d.Log)
	adminHandler := NewAdminHandler(d.Accounts, d.Ledger, d.Log)
	webhookHandler := webhook.NewHandler(d.Bridge, d.Log)

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/files/:name", uploadHandler.Serve)

	// Automation platform, authenticated by API key
	webhookHandler.Register(r.Group("/api/v1"))

	apiGroup := r.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/profile", requireSession, authHandler.Profile)
		authGroup.PATCH("/profile", requireSession, authHandler.UpdateProfile)

		apiGroup.POST("/upload", sessions.OptionalSession(), uploadHandler.Upload)

		session := apiGroup.Group("", requireSession)

		// CRM Routes
		session.GET("/contacts", contactHandler.GetContacts)
		session.POST("/contacts", contactHandler.CreateContact)
		session.GET("/contacts/export", contactHandler.ExportContacts)
		session.GET("/contacts/:id", contactHandler.GetContact)
		session.PATCH("/contacts/:id", contactHandler.UpdateContact)
		session.DELETE("/contacts/:id", contactHandler.DeleteContact)
		session.GET("/contacts/:id/window", contactHandler.GetWindow)

		// Message ledger
		session.GET("/messages", messageHandler.GetMessages)
		session.POST("/messages", messageHandler.SendMessage)
		session.DELETE("/messages", messageHandler.ClearMessages)

		// Funnels and stages
		session.GET("/funnels", funnelHandler.GetFunnels)
		session.POST("/funnels", funnelHandler.CreateFunnel)
		session.GET("/funnels/:id/stages", funnelHandler.GetStages)
		session.POST("/funnels/:id/stages", funnelHandler.AddStage)
		session.PUT("/stages/:id", funnelHandler.UpdateStage)
		session.PATCH("/stages/:id", funnelHandler.UpdateStage)
		session.DELETE("/stages/:id", funnelHandler.DeleteStage)

		admin := session.Group("/admin", auth.RequireAdmin())
		admin.GET("/accounts", adminHandler.GetAccounts)
		admin.GET("/messages", adminHandler.GetMessages)
	}

	return r
}

// corsMiddleware answers preflights. CORS_ORIGIN is "*" or a comma-separated
// allow-list; only allow-listed origins may send credentials.
func corsMiddleware(origins string) gin.HandlerFunc {
	allowed := map[string]bool{}
	wildcard := false
	for _, o := range strings.Split(origins, ",") {
		switch o = strings.TrimRight(strings.TrimSpace(o), "/"); o {
		case "":
		case "*":
			wildcard = true
		default:
			allowed[o] = true
		}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		if reqOrigin := c.GetHeader("Origin"); allowed[reqOrigin] {
			h.Set("Access-Control-Allow-Origin", reqOrigin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		} else if wildcard {
			h.Set("Access-Control-Allow-Origin", "*")
		}
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
