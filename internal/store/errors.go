package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist or has expired.
var ErrNotFound = errors.New("store: record not found")

// UnavailableError wraps connectivity or transport failures from the
// backing database. Callers are expected to retry with backoff; the
// store never retries internally.
type UnavailableError struct {
	Op    string
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store: unavailable during %s: %v", e.Op, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// CorruptRecordError is returned when a stored payload fails to
// deserialize. It is surfaced immediately — the store never silently
// coerces a malformed row into a default value.
type CorruptRecordError struct {
	Namespace string
	Key       string
	Cause     error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("store: corrupt record %s/%s: %v", e.Namespace, e.Key, e.Cause)
}

func (e *CorruptRecordError) Unwrap() error { return e.Cause }

// BatchWriteError is returned when PutMany rolls back. Key identifies
// the item that triggered the rollback; no item in the batch was
// committed.
type BatchWriteError struct {
	Namespace string
	Key       string
	Cause     error
}

func (e *BatchWriteError) Error() string {
	return fmt.Sprintf("store: batch write to %s failed at %q, rolled back: %v", e.Namespace, e.Key, e.Cause)
}

func (e *BatchWriteError) Unwrap() error { return e.Cause }

// unavailable classifies a raw database error as a transport failure.
func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Cause: err}
}
