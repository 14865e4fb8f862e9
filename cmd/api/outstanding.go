package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/outstanding?lookbackDays=7&staleHours=24
// Outstanding builds the report without sending notifications.
func (h *Handler) Outstanding(c *gin.Context) {
	opts := h.sweepOptions()
	// Notifications belong to the scheduled sweep.
	opts.DisableNotify = true

	if v := c.Query("lookbackDays"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lookbackDays must be a positive integer"})
			return
		}
		opts.LookbackDays = n
	}
	if v := c.Query("staleHours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "staleHours must be a positive integer"})
			return
		}
		opts.StaleHours = n
	}

	report, err := h.outstanding.Sweep(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("outstanding sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build outstanding report"})
		return
	}
	c.JSON(http.StatusOK, report)
}
