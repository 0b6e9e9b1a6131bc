package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// ─── Options ─────────────────────────────────────────────────────────────────

// OrderBy selects the search sort column.
type OrderBy string

const (
	OrderByUpdatedAt OrderBy = "updatedAt"
	OrderByKey       OrderBy = "key"
)

// OrderDirection selects ascending or descending order.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// SearchOptions holds read-side filters. All supplied predicates are
// ANDed together. The zero value means: no filters, default ordering
// (updated_at desc), default result cap.
type SearchOptions struct {
	// KeyPattern matches keys with * (any run) and ? (single char)
	// wildcards, e.g. "evidence/*".
	KeyPattern string
	// DataType matches records with exactly this data type.
	DataType string
	// Tags matches records whose tag map contains every supplied
	// key/value pair (superset containment, not equality).
	Tags map[string]any
	// Limit caps results after filtering and ordering. Values <= 0 or
	// above the configured maximum fall back to the configured maximum.
	Limit int
	// Offset skips results after filtering and ordering.
	Offset int
	// OrderBy defaults to OrderByUpdatedAt.
	OrderBy OrderBy
	// OrderDirection defaults to OrderDesc.
	OrderDirection OrderDirection
}

// SearchResult projects a Record with a relevance score. The store
// itself assigns no ranking, so Score is always 1.0 here; search
// backends layered on top may replace it.
type SearchResult struct {
	Record
	Score float64 `json:"score"`
}

// ─── Search ──────────────────────────────────────────────────────────────────

// Search returns the namespace's live records matching all supplied
// predicates, ordered and paginated deterministically. Expired records
// are always excluded regardless of other filters.
//
// Key pattern, data type, expiry, and ordering are evaluated in SQL.
// Tag containment is evaluated here on the decoded tag maps, before
// limit/offset are applied, so pagination stays stable.
func (s *Store) Search(ctx context.Context, ns Namespace, opts SearchOptions) ([]SearchResult, error) {
	if err := ns.Validate(); err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 || limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	orderClause, err := orderSQL(opts.OrderBy, opts.OrderDirection)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}

	query := `
		SELECT namespace, key, value, data_type, tags, created_at, updated_at, expires_at
		FROM records
		WHERE namespace = ?
		  AND (expires_at IS NULL OR expires_at > ?)
	`
	args := []any{ns.Path(), formatTime(timeNow())}

	if opts.KeyPattern != "" {
		query += ` AND key LIKE ? ESCAPE '\'`
		args = append(args, likePattern(opts.KeyPattern))
	}
	if opts.DataType != "" {
		query += " AND data_type = ?"
		args = append(args, opts.DataType)
	}

	query += orderClause

	// Without a tag filter the whole query pushes down to SQL. With one,
	// pagination must wait until after containment filtering.
	tagFilter := normalizeTags(opts.Tags)
	if tagFilter == nil {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	skipped := 0
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		if tagFilter != nil {
			if !tagsContain(rec.Tags, tagFilter) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			if len(results) >= limit {
				break
			}
		}
		results = append(results, SearchResult{Record: *rec, Score: 1.0})
	}
	return results, rows.Err()
}

// orderSQL builds the ORDER BY clause, with a stable key tiebreak for
// the updated_at ordering.
func orderSQL(by OrderBy, dir OrderDirection) (string, error) {
	if by == "" {
		by = OrderByUpdatedAt
	}
	if dir == "" {
		dir = OrderDesc
	}

	var sqlDir string
	switch dir {
	case OrderAsc:
		sqlDir = "ASC"
	case OrderDesc:
		sqlDir = "DESC"
	default:
		return "", fmt.Errorf("invalid order direction %q", dir)
	}

	switch by {
	case OrderByUpdatedAt:
		return " ORDER BY updated_at " + sqlDir + ", key ASC", nil
	case OrderByKey:
		return " ORDER BY key " + sqlDir, nil
	default:
		return "", fmt.Errorf("invalid order column %q", by)
	}
}

// likePattern translates * and ? wildcards into a SQL LIKE pattern,
// escaping LIKE's own metacharacters in the literal parts.
func likePattern(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeTags round-trips the supplied filter through JSON so its
// values compare equal to tag values decoded from storage (e.g. int 1
// and float64(1) both become float64(1)). Returns nil for an empty
// filter.
func normalizeTags(tags map[string]any) map[string]any {
	if len(tags) == 0 {
		return nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return tags
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return tags
	}
	return m
}

// tagsContain reports whether have is a superset of want.
func tagsContain(have, want map[string]any) bool {
	for k, v := range want {
		got, ok := have[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}
