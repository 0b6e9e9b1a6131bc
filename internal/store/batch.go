package store

import (
	"context"
	"fmt"
)

// BatchItem is one entry in an atomic multi-item write.
type BatchItem struct {
	Key      string
	Value    Value
	DataType string
	Tags     map[string]any
}

// PutMany upserts all items in a single transaction: either every item
// commits or none do. Any failure rolls the transaction back and
// surfaces as a BatchWriteError carrying the triggering item's key and
// the underlying cause. Concurrent readers never observe a partial
// batch — committed writes become visible atomically as a set.
//
// Callers that do not need cross-item atomicity should prefer repeated
// Put calls, which do not hold a transaction open.
func (s *Store) PutMany(ctx context.Context, ns Namespace, items []BatchItem) error {
	if err := ns.Validate(); err != nil {
		return fmt.Errorf("store: put many: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("put many: begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(timeNow())
	for _, item := range items {
		if item.Key == "" {
			return &BatchWriteError{Namespace: ns.Path(), Key: item.Key, Cause: fmt.Errorf("key is required")}
		}
		payload, err := encodeValue(item.Value)
		if err != nil {
			return &BatchWriteError{Namespace: ns.Path(), Key: item.Key, Cause: err}
		}
		tags, err := encodeTags(item.Tags)
		if err != nil {
			return &BatchWriteError{Namespace: ns.Path(), Key: item.Key, Cause: err}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (namespace, key, value, data_type, tags, created_at, updated_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
			ON CONFLICT(namespace, key) DO UPDATE SET
				value      = excluded.value,
				data_type  = excluded.data_type,
				tags       = excluded.tags,
				updated_at = excluded.updated_at`,
			ns.Path(), item.Key, payload, nullableString(item.DataType), tags, now, now,
		)
		if err != nil {
			return &BatchWriteError{Namespace: ns.Path(), Key: item.Key, Cause: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &BatchWriteError{Namespace: ns.Path(), Key: "", Cause: err}
	}
	return nil
}
