package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	authdelivery "inbox-triage/internal/auth/delivery"
	draftdomain "inbox-triage/internal/draft/domain"
	draftusecase "inbox-triage/internal/draft/usecase"
	outstanding "inbox-triage/internal/outstanding/usecase"
	"inbox-triage/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// ApprovalService runs approval actions on drafts.
type ApprovalService interface {
	Do(ctx context.Context, action, draftID string, in draftusecase.ActionInput) (*draftdomain.ActionResult, error)
}

// OutstandingService builds the outstanding work report.
type OutstandingService interface {
	Sweep(ctx context.Context, opts outstanding.Options) (*outstanding.Report, error)
}

// Handler serves approval callbacks from chat buttons and the outstanding
// report.
type Handler struct {
	approvals    ApprovalService
	outstanding  OutstandingService
	tokens       authdelivery.TokenValidator
	metrics      *metrics.Server
	sweepOptions func() outstanding.Options
	logger       *zap.Logger
}

// NewHandler wires the server. sweepOptions supplies the defaults for
// GET /api/outstanding; query parameters override them.
func NewHandler(approvals ApprovalService, sweeper OutstandingService, tokens authdelivery.TokenValidator, m *metrics.Server, sweepOptions func() outstanding.Options, logger *zap.Logger) *Handler {
	if m == nil {
		m = metrics.NewServer()
	}
	if sweepOptions == nil {
		sweepOptions = func() outstanding.Options { return outstanding.Options{} }
	}
	return &Handler{
		approvals:    approvals,
		outstanding:  sweeper,
		tokens:       tokens,
		metrics:      m,
		sweepOptions: sweepOptions,
		logger:       logger.Named("api"),
	}
}

// Engine builds the gin engine with every route mounted.
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestMetrics())
	SetupRoutes(r, h)
	return r
}

// Start serves on addr until ctx is cancelled, then drains in-flight requests.
func (h *Handler) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("approval server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.logger.Info("approval server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (h *Handler) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.metrics.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
