package compliance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nikhilbhutani/promptcompliance/internal/cache"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

// AnalysisStore keeps compliance analyses addressable by id.
type AnalysisStore interface {
	Put(ctx context.Context, analysis *models.ComplianceAnalysis) error
	Get(ctx context.Context, id string) (*models.ComplianceAnalysis, error)
}

// MemoryStore is an unbounded in-process store without eviction.
type MemoryStore struct {
	mu       sync.RWMutex
	analyses map[string]*models.ComplianceAnalysis
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{analyses: make(map[string]*models.ComplianceAnalysis)}
}

func (s *MemoryStore) Put(_ context.Context, analysis *models.ComplianceAnalysis) error {
	s.mu.Lock()
	s.analyses[analysis.ComplianceID] = analysis
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.ComplianceAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.analyses[id]
	if !ok {
		return nil, ErrAnalysisNotFound
	}
	return a, nil
}

// RedisStore shares analyses across processes. A zero ttl disables expiry.
type RedisStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewRedisStore(c *cache.Cache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, analysis *models.ComplianceAnalysis) error {
	if err := s.cache.Set(ctx, analysis.ComplianceID, analysis, s.ttl); err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.ComplianceAnalysis, error) {
	var a models.ComplianceAnalysis
	if err := s.cache.Get(ctx, id, &a); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return &a, nil
}
