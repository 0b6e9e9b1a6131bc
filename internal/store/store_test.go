package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planloop/planloop/internal/store"
)

// newTestStore creates a Store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.DataDir = t.TempDir()
	s, err := store.New(cfg)
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fakeClock is an advanceable clock installed via store.SetNowFunc so
// updated_at ordering and expiry are deterministic in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t *testing.T) *fakeClock {
	t.Helper()
	c := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	restore := store.SetNowFunc(c.Now)
	t.Cleanup(restore)
	return c
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ttl(d time.Duration) *time.Duration { return &d }

// ─── Put / Get round trip ───────────────────────────────────────────────────

func TestPutGet_RoundTripStructured(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "dev", "planner", "sess-1")

	value := store.Structured(map[string]any{
		"summary": "schema reviewed",
		"count":   float64(3),
		"nested":  map[string]any{"ok": true},
	})
	require.NoError(t, s.Put(ctx, ns, "evidence/schema", value, store.PutOptions{
		DataType: "evidence",
		Tags:     map[string]any{"source": "db"},
	}))

	rec, err := s.Get(ctx, ns, "evidence/schema")
	require.NoError(t, err)
	assert.Equal(t, value, rec.Value)
	assert.Equal(t, "evidence", rec.DataType)
	assert.Equal(t, map[string]any{"source": "db"}, rec.Tags)
	assert.Equal(t, ns, rec.Namespace)
}

func TestPutGet_RoundTripRaw(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "sess-1")

	require.NoError(t, s.Put(ctx, ns, "note", store.Raw("free-form text"), store.PutOptions{}))

	rec, err := s.Get(ctx, ns, "note")
	require.NoError(t, err)
	text, ok := rec.Value.Text()
	require.True(t, ok)
	assert.Equal(t, "free-form text", text)
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), store.NS("proj"), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPut_ZeroValueRejected(t *testing.T) {
	s := newTestStore(t)

	err := s.Put(context.Background(), store.NS("proj"), "k", store.Value{}, store.PutOptions{})
	assert.Error(t, err)
}

func TestPut_InvalidNamespaceRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.Put(ctx, store.NS(), "k", store.Raw("v"), store.PutOptions{}))
	assert.Error(t, s.Put(ctx, store.NS("a", ""), "k", store.Raw("v"), store.PutOptions{}))
	assert.Error(t, s.Put(ctx, store.NS("a/b"), "k", store.Raw("v"), store.PutOptions{}))
}

// ─── Upsert semantics ───────────────────────────────────────────────────────

func TestPut_LastWriterWinsPreservesCreatedAt(t *testing.T) {
	clock := newFakeClock(t)
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "sess-1")

	require.NoError(t, s.Put(ctx, ns, "k", store.Raw("first"), store.PutOptions{DataType: "draft"}))
	first, err := s.Get(ctx, ns, "k")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, s.Put(ctx, ns, "k", store.Raw("second"), store.PutOptions{
		DataType: "final",
		Tags:     map[string]any{"rev": float64(2)},
	}))

	rec, err := s.Get(ctx, ns, "k")
	require.NoError(t, err)
	text, _ := rec.Value.Text()
	assert.Equal(t, "second", text)
	assert.Equal(t, "final", rec.DataType)
	assert.Equal(t, map[string]any{"rev": float64(2)}, rec.Tags)
	assert.Equal(t, first.CreatedAt, rec.CreatedAt, "created_at must survive rewrites")
	assert.True(t, rec.UpdatedAt.After(rec.CreatedAt))
}

// ─── Expiry ─────────────────────────────────────────────────────────────────

func TestPut_ZeroTTLExpiresImmediately(t *testing.T) {
	newFakeClock(t)
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "sess-1")

	require.NoError(t, s.Put(ctx, ns, "k", store.Raw("v"), store.PutOptions{TTL: ttl(0)}))

	_, err := s.Get(ctx, ns, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPut_TTLLazyExpiry(t *testing.T) {
	clock := newFakeClock(t)
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "sess-1")

	require.NoError(t, s.Put(ctx, ns, "k", store.Raw("v"), store.PutOptions{TTL: ttl(time.Hour)}))

	_, err := s.Get(ctx, ns, "k")
	require.NoError(t, err, "not yet expired")

	clock.Advance(2 * time.Hour)
	_, err = s.Get(ctx, ns, "k")
	assert.ErrorIs(t, err, store.ErrNotFound, "expired records read as not-found")
}

func TestPut_NoTTLLeavesExpiryUnchanged(t *testing.T) {
	clock := newFakeClock(t)
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "sess-1")

	require.NoError(t, s.Put(ctx, ns, "k", store.Raw("v1"), store.PutOptions{TTL: ttl(time.Hour)}))
	// Rewrite without a TTL: the original expiry must stick.
	require.NoError(t, s.Put(ctx, ns, "k", store.Raw("v2"), store.PutOptions{}))

	rec, err := s.Get(ctx, ns, "k")
	require.NoError(t, err)
	require.NotNil(t, rec.ExpiresAt)

	clock.Advance(2 * time.Hour)
	_, err = s.Get(ctx, ns, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPurgeExpired(t *testing.T) {
	clock := newFakeClock(t)
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "sess-1")

	require.NoError(t, s.Put(ctx, ns, "short", store.Raw("v"), store.PutOptions{TTL: ttl(time.Minute)}))
	require.NoError(t, s.Put(ctx, ns, "keep", store.Raw("v"), store.PutOptions{}))

	clock.Advance(time.Hour)
	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, ns, "keep")
	assert.NoError(t, err)
}

// ─── Delete ─────────────────────────────────────────────────────────────────

func TestDelete_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "sess-1")

	require.NoError(t, s.Put(ctx, ns, "k", store.Raw("v"), store.PutOptions{}))

	require.NoError(t, s.Delete(ctx, ns, "k"))
	_, err := s.Get(ctx, ns, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Second delete of an absent record is not an error.
	require.NoError(t, s.Delete(ctx, ns, "k"))
	_, err = s.Get(ctx, ns, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// ─── List ───────────────────────────────────────────────────────────────────

func TestList_RecentFirstExcludingExpired(t *testing.T) {
	clock := newFakeClock(t)
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "sess-1")

	require.NoError(t, s.Put(ctx, ns, "a", store.Raw("1"), store.PutOptions{}))
	clock.Advance(time.Second)
	require.NoError(t, s.Put(ctx, ns, "b", store.Raw("2"), store.PutOptions{}))
	clock.Advance(time.Second)
	require.NoError(t, s.Put(ctx, ns, "gone", store.Raw("3"), store.PutOptions{TTL: ttl(time.Millisecond)}))
	clock.Advance(time.Second)
	require.NoError(t, s.Put(ctx, ns, "a", store.Raw("1b"), store.PutOptions{}))

	var keys []string
	for rec, err := range s.List(ctx, ns) {
		require.NoError(t, err)
		keys = append(keys, rec.Key)
	}
	assert.Equal(t, []string{"a", "b"}, keys)

	// The sequence is restartable: a second range re-runs the query.
	count := 0
	for _, err := range s.List(ctx, ns) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestList_EarlyBreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "sess-1")

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, ns, k, store.Raw(k), store.PutOptions{}))
	}

	seen := 0
	for _, err := range s.List(ctx, ns) {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

// ─── Namespace isolation ────────────────────────────────────────────────────

func TestNamespaces_Isolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	nsA := store.NS("proj", "dev", "planner", "sess-1")
	nsB := store.NS("proj", "dev", "planner", "sess-2")

	require.NoError(t, s.Put(ctx, nsA, "k", store.Raw("for A"), store.PutOptions{}))

	_, err := s.Get(ctx, nsB, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Delete(ctx, nsB, "k"))
	rec, err := s.Get(ctx, nsA, "k")
	require.NoError(t, err)
	text, _ := rec.Value.Text()
	assert.Equal(t, "for A", text)
}

// ─── Corrupt payloads ───────────────────────────────────────────────────────

func TestGet_CorruptPayloadSurfaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "sess-1")

	require.NoError(t, s.Put(ctx, ns, "k", store.Raw("fine"), store.PutOptions{}))

	// Corrupt the stored payload behind the store's back.
	_, err := s.DB().Exec(
		`UPDATE records SET value = '[1,2,3]' WHERE namespace = ? AND key = ?`,
		ns.Path(), "k",
	)
	require.NoError(t, err)

	_, err = s.Get(ctx, ns, "k")
	var corrupt *store.CorruptRecordError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "k", corrupt.Key)
}

// ─── Concurrency smoke ──────────────────────────────────────────────────────

func TestPut_ConcurrentWritersConverge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ns := store.NS("proj", "shared")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Put(ctx, ns, "k", store.Structured(map[string]any{"writer": float64(i)}), store.PutOptions{})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	rec, err := s.Get(ctx, ns, "k")
	require.NoError(t, err)
	m, ok := rec.Value.Map()
	require.True(t, ok)
	assert.Contains(t, m, "writer")
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.NS("proj", "a"), "k1", store.Raw("v"), store.PutOptions{}))
	require.NoError(t, s.Put(ctx, store.NS("proj", "b"), "k2", store.Raw("v"), store.PutOptions{}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRecords)
	assert.ElementsMatch(t, []string{"proj/a", "proj/b"}, stats.Namespaces)
}
