package repository

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/observability"
	"brain2-canvas/internal/surface"
)

// DefaultMaxSessions bounds how many open diagrams are held in memory.
const DefaultMaxSessions = 256

// Session is one open diagram. Its surface is not safe for concurrent use;
// all access goes through Do.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	surface   *surface.Surface
	updatedAt time.Time
}

// NewSession wraps s under id.
func NewSession(id string, s *surface.Surface) *Session {
	now := time.Now()
	return &Session{ID: id, CreatedAt: now, surface: s, updatedAt: now}
}

// Do runs fn with exclusive access to the session's surface.
func (s *Session) Do(fn func(*surface.Surface) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
	return fn(s.surface)
}

// UpdatedAt is the last time Do was called.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// SessionStore holds open sessions.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Len() int
}

// MemoryStore keeps the most recently used sessions in an LRU cache.
// Sessions idle longer than the TTL are dropped on access.
type MemoryStore struct {
	cache   *lru.Cache[string, *Session]
	idleTTL time.Duration
	logger  *zap.Logger
	metrics *observability.Collector
	onEvict func(id string)

	mu       sync.Mutex
	deleting map[string]struct{}
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithIdleTTL drops sessions untouched for longer than ttl. Zero disables it.
func WithIdleTTL(ttl time.Duration) StoreOption {
	return func(m *MemoryStore) { m.idleTTL = ttl }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(m *MemoryStore) { m.logger = l }
}

// WithStoreMetrics reports open and evicted sessions to c.
func WithStoreMetrics(c *observability.Collector) StoreOption {
	return func(m *MemoryStore) { m.metrics = c }
}

// WithEvictionHook is called with the id of every session the store drops
// on its own, through capacity or idleness.
func WithEvictionHook(fn func(id string)) StoreOption {
	return func(m *MemoryStore) { m.onEvict = fn }
}

// NewMemoryStore creates a store holding at most size sessions.
func NewMemoryStore(size int, opts ...StoreOption) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	m := &MemoryStore{logger: zap.NewNop(), deleting: make(map[string]struct{})}
	for _, opt := range opts {
		opt(m)
	}
	cache, err := lru.NewWithEvict(size, m.evicted)
	if err != nil {
		return nil, apperrors.Internal(apperrors.CodeInternalError, "create session cache").WithCause(err).Build()
	}
	m.cache = cache
	return m, nil
}

func (m *MemoryStore) evicted(id string, _ *Session) {
	m.mu.Lock()
	_, explicit := m.deleting[id]
	delete(m.deleting, id)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionsOpen.Dec()
	}
	if explicit {
		return
	}
	if m.metrics != nil {
		m.metrics.SessionsEvicted.Inc()
	}
	m.logger.Info("session evicted", zap.String("diagram_id", id))
	if m.onEvict != nil {
		m.onEvict(id)
	}
}

// Save stores s, replacing any session with the same id.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return apperrors.Validation(apperrors.CodeValidationFailed, "session id is required").
			WithOperation("Save").Build()
	}
	m.markDeleting(s.ID)
	if !m.cache.Remove(s.ID) {
		m.unmark(s.ID)
	}
	m.cache.Add(s.ID, s)
	if m.metrics != nil {
		m.metrics.SessionsOpen.Inc()
	}
	return nil
}

// Get returns the session with the given id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, notFound(id)
	}
	if m.idleTTL > 0 && time.Since(s.UpdatedAt()) > m.idleTTL {
		m.cache.Remove(id)
		return nil, notFound(id)
	}
	return s, nil
}

// Delete removes the session with the given id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.markDeleting(id)
	if !m.cache.Remove(id) {
		m.unmark(id)
		return notFound(id)
	}
	return nil
}

// Len reports how many sessions are held.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}

func (m *MemoryStore) markDeleting(id string) {
	m.mu.Lock()
	m.deleting[id] = struct{}{}
	m.mu.Unlock()
}

func (m *MemoryStore) unmark(id string) {
	m.mu.Lock()
	delete(m.deleting, id)
	m.mu.Unlock()
}

func notFound(id string) error {
	return apperrors.NotFound(apperrors.CodeDiagramNotFound, "diagram not found").
		WithResource(id).Build()
}
