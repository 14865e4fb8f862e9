package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to a backend so a batch never exceeds the
// provider's request budget.
type RateLimited struct {
	backend Backend
	limiter *rate.Limiter
}

func NewRateLimited(backend Backend, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{backend: backend, limiter: limiter}
}

func (r *RateLimited) Name() string {
	return r.backend.Name()
}

func (r *RateLimited) ClassifyEmail(ctx context.Context, req ClassificationRequest) (*Classification, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.backend.ClassifyEmail(ctx, req)
}

func (r *RateLimited) ComposeReply(ctx context.Context, req ReplyRequest) (*ReplyDraft, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.backend.ComposeReply(ctx, req)
}
