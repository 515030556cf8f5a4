package main

import (
	"database/sql"
	"net/http"
	"time"

	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/rbac"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Keep this file free of business logic. Handlers delegate to internal modules.

func registerPublicRoutes(r *gin.Engine, a *app, db *sql.DB, reg *prometheus.Registry) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Voice-AI provider callbacks. Signature checked in the handler when a secret is configured.
	r.POST("/webhooks/voice-ai/calls", a.webhook.HandleCallEvent)
}

func registerAuthRoutes(r *gin.Engine, h httpapi.Handlers) {
	g := r.Group("/v1/auth")
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
}

func registerProtectedRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Handlers) {
	v1 := r.Group("/v1")
	v1.Use(authMW, rbac.RequireUser())

	v1.GET("/me", h.Me)

	reports := v1.Group("/reports")
	reports.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleMember, rbac.RoleAnalyst))
	{
		reports.GET("/calls", h.CallsReport)
		reports.GET("/conversions", h.ConversionsReport)
	}

	v1.GET("/credits/balance", h.GetCreditBalance)

	// Hidden support role is intentionally not included.
	admin := v1.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
	{
		admin.POST("/credits", h.AdminCredit)
	}
}
