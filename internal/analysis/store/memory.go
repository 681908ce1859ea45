// Package store provides the in-memory analysis history used when no
// database is configured. Records expire after a TTL; uploaded image bytes
// never enter the store and are zeroed by the service after processing.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/licenselens/licenselens-backend/internal/analysis/domain"
)

// Memory holds completed analyses in RAM with TTL-based cleanup.
type Memory struct {
	mu       sync.RWMutex
	analyses map[string]*domain.Analysis
	ttl      time.Duration
	stop     chan struct{}
}

// NewMemory creates an in-memory store with the given record TTL.
func NewMemory(ttl time.Duration) *Memory {
	s := &Memory{
		analyses: make(map[string]*domain.Analysis),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Save stores a completed analysis.
func (s *Memory) Save(ctx context.Context, a *domain.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[a.ID] = a
	return nil
}

// Get retrieves an analysis by ID.
func (s *Memory) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.analyses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

// List returns up to limit analyses, newest first.
func (s *Memory) List(ctx context.Context, limit int) ([]*domain.Analysis, error) {
	s.mu.RLock()
	result := make([]*domain.Analysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		result = append(result, a)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Close stops the cleanup loop.
func (s *Memory) Close() {
	close(s.stop)
}

// ZeroBytes overwrites a byte slice with zeros for secure deletion.
// License images are identity documents; their bytes must not linger
// in memory after the model call.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// cleanupLoop periodically removes expired records
func (s *Memory) cleanupLoop() {
	interval := s.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *Memory) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.ttl)
	for id, a := range s.analyses {
		if a.CreatedAt.Before(cutoff) {
			delete(s.analyses, id)
		}
	}
}
