package ai

import (
	"context"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// FallbackService routes calls to a primary backend and retries on a
// secondary one when the primary fails.
type FallbackService struct {
	primary   Backend
	secondary Backend
	logger    *zap.Logger
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(primary, secondary Backend, logger *zap.Logger) *FallbackService {
	return &FallbackService{
		primary:   primary,
		secondary: secondary,
		logger:    logger.Named("ai"),
	}
}

func (f *FallbackService) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(net.Error); ok {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}

	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource_exhausted",
		"resource exhausted",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

func (f *FallbackService) logFailure(op string, err error) {
	kind := "error"
	switch {
	case isQuotaError(err):
		kind = "quota"
	case isConnectionError(err):
		kind = "connection"
	}
	f.logger.Warn("primary model failed, falling back",
		zap.String("op", op),
		zap.String("primary", f.primary.Name()),
		zap.String("secondary", f.secondary.Name()),
		zap.String("kind", kind),
		zap.Error(err))
}

func (f *FallbackService) ClassifyEmail(ctx context.Context, req ClassificationRequest) (*Classification, error) {
	out, err := f.primary.ClassifyEmail(ctx, req)
	if err == nil {
		return out, nil
	}
	f.logFailure("classify", err)

	out, err2 := f.secondary.ClassifyEmail(ctx, req)
	if err2 != nil {
		return nil, fmt.Errorf("all model backends failed: %v; %w", err, err2)
	}
	return out, nil
}

func (f *FallbackService) ComposeReply(ctx context.Context, req ReplyRequest) (*ReplyDraft, error) {
	out, err := f.primary.ComposeReply(ctx, req)
	if err == nil {
		return out, nil
	}
	f.logFailure("compose", err)

	out, err2 := f.secondary.ComposeReply(ctx, req)
	if err2 != nil {
		return nil, fmt.Errorf("all model backends failed: %v; %w", err, err2)
	}
	return out, nil
}
