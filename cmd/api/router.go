package api

import (
	"net/http"

	authdelivery "inbox-triage/internal/auth/delivery"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		drafts := api.Group("/drafts")
		drafts.Use(authdelivery.AuthMiddleware(h.tokens))
		{
			drafts.POST("/:id/approve", h.Approve)
			drafts.POST("/:id/revise", h.Revise)
			drafts.POST("/:id/reject", h.Reject)
		}

		api.GET("/outstanding", authdelivery.AuthMiddleware(h.tokens), h.Outstanding)
	}
}
