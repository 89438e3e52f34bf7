package repository

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-canvas/internal/domain/diagram"
	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/observability"
	"brain2-canvas/internal/surface"
)

func newSession(t *testing.T, id string) *Session {
	t.Helper()
	return NewSession(id, surface.Restore(diagram.New(id), diagram.NewLayout(), surface.Options{}, nil))
}

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(4)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, newSession(t, "d1")))
	got, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.ID)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, "d1"))
	_, err = store.Get(ctx, "d1")
	assert.True(t, apperrors.IsNotFound(err))

	err = store.Delete(ctx, "d1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDiagramNotFound))
}

func TestMemoryStore_SaveRequiresID(t *testing.T) {
	store, err := NewMemoryStore(1)
	require.NoError(t, err)
	err = store.Save(context.Background(), &Session{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewCollector("test")
	var evicted []string
	store, err := NewMemoryStore(2,
		WithStoreMetrics(metrics),
		WithEvictionHook(func(id string) { evicted = append(evicted, id) }))
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, newSession(t, "a")))
	require.NoError(t, store.Save(ctx, newSession(t, "b")))
	_, err = store.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, newSession(t, "c")))

	assert.Equal(t, []string{"b"}, evicted)
	_, err = store.Get(ctx, "b")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SessionsOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsEvicted))

	// Explicit deletes and replacements are not evictions.
	require.NoError(t, store.Save(ctx, newSession(t, "a")))
	require.NoError(t, store.Delete(ctx, "c"))
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsEvicted))
}

func TestMemoryStore_IdleTTL(t *testing.T) {
	ctx := context.Background()
	var evicted []string
	store, err := NewMemoryStore(4, WithIdleTTL(time.Millisecond),
		WithEvictionHook(func(id string) { evicted = append(evicted, id) }))
	require.NoError(t, err)

	s := newSession(t, "idle")
	require.NoError(t, store.Save(ctx, s))
	time.Sleep(5 * time.Millisecond)

	_, err = store.Get(ctx, "idle")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, []string{"idle"}, evicted)
	assert.Zero(t, store.Len())
}

func TestSession_DoTouches(t *testing.T) {
	s := newSession(t, "d")
	before := s.UpdatedAt()
	time.Sleep(time.Millisecond)

	var title string
	require.NoError(t, s.Do(func(sf *surface.Surface) error {
		title = sf.Document().Title
		return nil
	}))
	assert.Equal(t, "d", title)
	assert.True(t, s.UpdatedAt().After(before))
}
