package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inbox-triage/internal/policy/domain"
	"inbox-triage/internal/policy/repository"

	"go.uber.org/zap"
)

// ErrNoPolicyAvailable means the live fetch failed and nothing was cached.
var ErrNoPolicyAvailable = errors.New("policy unavailable: fetch failed and no cached snapshot exists")

type Provider struct {
	source repository.Source
	cache  repository.CacheRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewProvider(source repository.Source, cache repository.CacheRepository, logger *zap.Logger) *Provider {
	return &Provider{
		source: source,
		cache:  cache,
		logger: logger.Named("policy"),
		now:    time.Now,
	}
}

// FetchPolicy returns a fresh snapshot, or the last cached one flagged as
// degraded when the source cannot be read.
func (p *Provider) FetchPolicy(ctx context.Context, sourceID string) (*domain.PolicySnapshot, error) {
	doc, fetchErr := p.source.Fetch(ctx, sourceID)
	if fetchErr == nil {
		snapshot := &domain.PolicySnapshot{
			SourceID:   sourceID,
			SourceOK:   true,
			PolicyHash: domain.Fingerprint(doc.Sections, doc.RawText),
			Sections:   doc.Sections,
			RawText:    doc.RawText,
			Warnings:   []string{},
			FetchedAt:  p.now().UTC(),
		}
		if err := p.cache.Save(snapshot); err != nil {
			// The snapshot is still usable; only the fallback copy is stale.
			p.logger.Warn("policy cache write failed", zap.String("source", sourceID), zap.Error(err))
			snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("policy cache write failed: %v", err))
		}
		p.logger.Info("policy fetched",
			zap.String("source", sourceID),
			zap.String("hash", snapshot.PolicyHash),
			zap.Int("sections", len(snapshot.Sections)))
		return snapshot, nil
	}

	p.logger.Warn("policy fetch failed", zap.String("source", sourceID), zap.Error(fetchErr))

	cached, err := p.cache.Load(sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v (cache: %v)", ErrNoPolicyAvailable, fetchErr, err)
	}
	if cached == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPolicyAvailable, fetchErr)
	}

	snapshot := *cached
	snapshot.SourceOK = false
	snapshot.Degraded = true
	snapshot.Warnings = append(append([]string{}, cached.Warnings...),
		fmt.Sprintf("policy fetch failed for %s: %v; serving cached snapshot from %s",
			sourceID, fetchErr, cached.FetchedAt.UTC().Format(time.RFC3339)))
	if snapshot.PolicyHash == "" {
		snapshot.PolicyHash = domain.Fingerprint(snapshot.Sections, snapshot.RawText)
	}
	return &snapshot, nil
}
