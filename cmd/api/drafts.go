package api

import (
	"errors"
	"net/http"
	"strconv"

	authdelivery "inbox-triage/internal/auth/delivery"
	draftdomain "inbox-triage/internal/draft/domain"
	draftusecase "inbox-triage/internal/draft/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ActionRequest is the optional JSON body of an approval callback.
type ActionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// POST /api/drafts/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	h.runAction(c, draftdomain.ActionApprove)
}

// POST /api/drafts/:id/revise
func (h *Handler) Revise(c *gin.Context) {
	h.runAction(c, draftdomain.ActionRevise)
}

// POST /api/drafts/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	h.runAction(c, draftdomain.ActionReject)
}

func (h *Handler) runAction(c *gin.Context, action string) {
	approver, ok := authdelivery.CurrentApprover(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req ActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	draftID := c.Param("id")
	result, err := h.approvals.Do(c.Request.Context(), action, draftID, draftusecase.ActionInput{
		ApprovedBy: approver.Subject,
		Notes:      req.Notes,
		Reason:     req.Reason,
	})
	if err != nil {
		h.metrics.ApprovalActions.WithLabelValues(action, "error").Inc()
		status := actionErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("approval action failed",
				zap.String("action", action),
				zap.String("draft_id", draftID),
				zap.String("approver", approver.Subject),
				zap.Error(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.metrics.ApprovalActions.WithLabelValues(action, strconv.FormatBool(result.OK)).Inc()
	if !result.OK {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func actionErrorStatus(err error) int {
	switch {
	case errors.Is(err, draftusecase.ErrDraftNotFound):
		return http.StatusNotFound
	case errors.Is(err, draftusecase.ErrNotesRequired),
		errors.Is(err, draftusecase.ErrReasonRequired),
		errors.Is(err, draftusecase.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, draftusecase.ErrMissingFields):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
