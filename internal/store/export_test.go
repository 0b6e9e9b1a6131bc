package store

import (
	"database/sql"
	"time"
)

// DB exposes the internal *sql.DB for test helpers in store_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetNowFunc overrides the store clock and returns a restore func.
func SetNowFunc(f func() time.Time) func() {
	old := timeNow
	timeNow = f
	return func() { timeNow = old }
}
