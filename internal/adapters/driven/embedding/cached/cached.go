// Package cached wraps an embedding service with a bounded TTL cache for
// question embeddings. The cache is a pure optimisation: it never changes
// the vector a text maps to, which the backend guarantees by being a
// deterministic function of its input. As a side benefit the cache serves
// stale entries when the backend is down, so a repeated question can still
// be answered during an outage.
package cached

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
	"github.com/brightpath-labs/tutorcore/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultTTL bounds how long a cached question embedding stays fresh.
const DefaultTTL = 10 * time.Minute

// DefaultMaxEntries caps cache size; the oldest entry is evicted beyond it.
const DefaultMaxEntries = 1024

type entry struct {
	vector    []float32
	expiresAt time.Time
}

// EmbeddingService decorates a backend embedding service with a TTL cache
// keyed by normalised text.
type EmbeddingService struct {
	backend driven.EmbeddingService

	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]entry

	now func() time.Time // injectable for tests
}

// Option configures the cache.
type Option func(*EmbeddingService)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *EmbeddingService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxEntries sets the cache size cap.
func WithMaxEntries(n int) Option {
	return func(s *EmbeddingService) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithClock overrides the time source. Useful for testing expiry.
func WithClock(now func() time.Time) Option {
	return func(s *EmbeddingService) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps backend with a question-embedding cache.
func New(backend driven.EmbeddingService, opts ...Option) *EmbeddingService {
	s := &EmbeddingService{
		backend:    backend,
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		entries:    make(map[string]entry),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Embed returns the cached vector for the normalised text when fresh,
// otherwise asks the backend. If the backend fails and a stale entry
// exists, the stale vector is served as a degraded fallback.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := normalise(text)

	if vec, ok := s.lookup(key, true); ok {
		logger.Debug("Embedding cache hit")
		return vec, nil
	}

	vec, err := s.backend.Embed(ctx, text)
	if err != nil {
		if stale, ok := s.lookup(key, false); ok {
			logger.Warn("Embedding backend failed (%v), serving stale cached vector", err)
			return stale, nil
		}
		return nil, err
	}

	s.store(key, vec)
	return vec, nil
}

// EmbedBatch passes straight through to the backend. Ingestion embeds each
// unit once per content change, so caching would only hold memory.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.backend.EmbedBatch(ctx, texts)
}

// Dimensions returns the backend's vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.backend.Dimensions()
}

// ModelName returns the backend's model name.
func (s *EmbeddingService) ModelName() string {
	return s.backend.ModelName()
}

// Ping validates the backend is reachable.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the backend's resources.
func (s *EmbeddingService) Close() error {
	return s.backend.Close()
}

// lookup returns the cached vector for key. When freshOnly is set, expired
// entries are treated as misses.
func (s *EmbeddingService) lookup(key string, freshOnly bool) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if freshOnly && s.now().After(e.expiresAt) {
		return nil, false
	}

	vec := make([]float32, len(e.vector))
	copy(vec, e.vector)
	return vec, true
}

func (s *EmbeddingService) store(key string, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Evict the entry closest to expiry once the cap is reached.
	if len(s.entries) >= s.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range s.entries {
			if oldestKey == "" || e.expiresAt.Before(oldest) {
				oldestKey = k
				oldest = e.expiresAt
			}
		}
		delete(s.entries, oldestKey)
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	s.entries[key] = entry{vector: stored, expiresAt: s.now().Add(s.ttl)}
}

// normalise lowercases and collapses whitespace so trivially reworded
// repeats of a question share a cache entry.
func normalise(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
