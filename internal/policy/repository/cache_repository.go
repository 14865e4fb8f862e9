package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"inbox-triage/internal/policy/domain"
)

// CacheRepository keeps the last good snapshot per policy source.
type CacheRepository interface {
	Load(sourceID string) (*domain.PolicySnapshot, error)
	Save(snapshot *domain.PolicySnapshot) error
}

type fileCache struct {
	Entries map[string]*domain.PolicySnapshot `json:"entries"`
}

type fileCacheRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileCacheRepository stores snapshots as JSON in path, keyed by source id.
func NewFileCacheRepository(path string) CacheRepository {
	return &fileCacheRepository{path: path}
}

func (r *fileCacheRepository) read() (*fileCache, error) {
	cache := &fileCache{Entries: map[string]*domain.PolicySnapshot{}}
	content, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cache, nil
		}
		return nil, fmt.Errorf("read policy cache: %w", err)
	}
	if err := json.Unmarshal(content, cache); err != nil {
		return nil, fmt.Errorf("parse policy cache: %w", err)
	}
	if cache.Entries == nil {
		cache.Entries = map[string]*domain.PolicySnapshot{}
	}
	return cache, nil
}

// Load returns nil, nil when the source has never been cached.
func (r *fileCacheRepository) Load(sourceID string) (*domain.PolicySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cache, err := r.read()
	if err != nil {
		return nil, err
	}
	return cache.Entries[sourceID], nil
}

func (r *fileCacheRepository) Save(snapshot *domain.PolicySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cache, err := r.read()
	if err != nil {
		// A corrupt cache is replaced rather than blocking fresh snapshots.
		cache = &fileCache{Entries: map[string]*domain.PolicySnapshot{}}
	}
	cache.Entries[snapshot.SourceID] = snapshot

	content, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return fmt.Errorf("write policy cache: %w", err)
	}
	return os.Rename(tmp, r.path)
}
