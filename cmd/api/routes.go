package main

import (
	"database/sql"
	"net/http"
	"time"

	"cart-recovery/internal/httpapi"
	"cart-recovery/internal/webhooks"
	"cart-recovery/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, hooks webhooks.Handlers, api httpapi.Handlers, authMW gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks. Each endpoint authenticates its caller itself
	// (shared secret or HMAC) rather than via the dashboard middleware.
	wh := r.Group("/webhooks")
	{
		wh.POST("/klaviyo/abandoned-cart", hooks.AbandonedCart)
		wh.POST("/shopify/abandoned-checkout", hooks.ShopifyAbandonedCheckout)
		wh.POST("/shopify/order-created", hooks.ShopifyOrderCreated)
		wh.POST("/vapi/call-status", hooks.CallStatus)
		wh.POST("/vapi/tools/send-sms", hooks.SendSMS)
		wh.POST("/vapi/tools/apply-discount", hooks.ApplyDiscount)
	}
	r.POST("/import/carts", hooks.BulkImportCarts)

	r.POST("/auth/login", api.Login)
	r.POST("/auth/refresh", api.Refresh)

	// Operator dashboard API.
	v1 := r.Group("/api")
	v1.Use(authMW)
	{
		v1.GET("/calls", api.ListCalls)
		v1.GET("/calls/:id", api.GetCall)
		v1.GET("/dashboard/stats", api.DashboardStats)
		v1.GET("/carts", api.ListCarts)
		v1.GET("/carts/stats", api.CartStats)
		v1.PATCH("/carts/:id/call", api.PatchCartCall)
		v1.GET("/rules", api.GetRules)
		v1.PUT("/rules", api.SetRules)
	}
}
