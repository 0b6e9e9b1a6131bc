// Package memory provides the namespace-scoped facade over the record
// store that every agent uses for shared state.
//
// A Pool owns the store handle (and with it the process-wide SQLite
// connection pool): it is opened once at process start and closed once
// at shutdown. Each logical agent builds its namespace once, up front,
// and receives a Memory bound to it; below the facade the namespace is
// an opaque composite key.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/planloop/planloop/internal/store"
)

// Pool owns the shared store handle for the whole process.
type Pool struct {
	store *store.Store
	log   *zap.Logger
}

// Open acquires the store. Call Close on every exit path.
func Open(cfg store.Config, log *zap.Logger) (*Pool, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s, err := store.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("memory: open pool: %w", err)
	}
	log.Info("memory pool opened", zap.String("data_dir", cfg.DataDir))
	return &Pool{store: s, log: log}, nil
}

// Close sweeps expired records opportunistically and releases the pool.
func (p *Pool) Close() error {
	if n, err := p.store.PurgeExpired(context.Background()); err != nil {
		p.log.Warn("expired-record sweep failed", zap.Error(err))
	} else if n > 0 {
		p.log.Debug("purged expired records", zap.Int64("count", n))
	}
	err := p.store.Close()
	p.log.Info("memory pool closed")
	return err
}

// Store exposes the underlying record store for callers that need the
// full search/batch surface.
func (p *Pool) Store() *store.Store { return p.store }

// Stats reports aggregate store counts.
func (p *Pool) Stats(ctx context.Context) (*store.Stats, error) {
	return p.store.Stats(ctx)
}

// Namespace binds a Memory to the composite namespace built from the
// given segments (typically project/environment/agent-type/session).
func (p *Pool) Namespace(segments ...string) (*Memory, error) {
	ns := store.NS(segments...)
	if err := ns.Validate(); err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	return &Memory{ns: ns, store: p.store}, nil
}

// ─── Memory ──────────────────────────────────────────────────────────────────

// Memory is the namespace-bound convenience API.
type Memory struct {
	ns    store.Namespace
	store *store.Store
}

// Namespace returns the bound namespace.
func (m *Memory) Namespace() store.Namespace { return m.ns }

// Save upserts a value under the bound namespace.
func (m *Memory) Save(ctx context.Context, key string, value store.Value, opts store.PutOptions) error {
	return m.store.Put(ctx, m.ns, key, value, opts)
}

// Load returns the value for key. A missing or expired record reports
// found=false with no error; store failures are returned as-is.
func (m *Memory) Load(ctx context.Context, key string) (store.Value, bool, error) {
	rec, err := m.store.Get(ctx, m.ns, key)
	if errors.Is(err, store.ErrNotFound) {
		return store.Value{}, false, nil
	}
	if err != nil {
		return store.Value{}, false, err
	}
	return rec.Value, true, nil
}

// LoadAll returns every live key/value in the namespace whose key
// starts with prefix (all of them when prefix is empty). Built by
// listing and filtering client-side.
func (m *Memory) LoadAll(ctx context.Context, prefix string) (map[string]store.Value, error) {
	out := make(map[string]store.Value)
	for rec, err := range m.store.List(ctx, m.ns) {
		if err != nil {
			return nil, err
		}
		if prefix != "" && !strings.HasPrefix(rec.Key, prefix) {
			continue
		}
		out[rec.Key] = rec.Value
	}
	return out, nil
}

// Delete removes key. Idempotent.
func (m *Memory) Delete(ctx context.Context, key string) error {
	return m.store.Delete(ctx, m.ns, key)
}

// Search runs a filtered query within the bound namespace.
func (m *Memory) Search(ctx context.Context, opts store.SearchOptions) ([]store.SearchResult, error) {
	return m.store.Search(ctx, m.ns, opts)
}

// SaveMany writes a group of related facts atomically: all items commit
// or none do.
func (m *Memory) SaveMany(ctx context.Context, items []store.BatchItem) error {
	return m.store.PutMany(ctx, m.ns, items)
}
