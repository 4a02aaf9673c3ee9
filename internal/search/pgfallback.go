package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFallback implements Searcher using a PostgreSQL ILIKE query as a fallback.
type PgFallback struct {
	db *sql.DB
}

// NewPgFallback creates the PostgreSQL fallback searcher.
func NewPgFallback(db *sql.DB) *PgFallback {
	return &PgFallback{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFallback) Healthy() bool {
	return true
}

// Search runs a case-insensitive substring match over original filenames.
func (p *PgFallback) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	pattern := "%" + escapeLike(q.Text) + "%"
	args := []any{pattern}
	where := "original_filename ILIKE $1"
	if q.UserID != "" {
		where += " AND user_id = $2"
		args = append(args, q.UserID)
	}

	ctx := context.Background()

	var total int
	countSQL := "SELECT count(*) FROM documents WHERE " + where
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg search count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT id, original_filename, original_type, share_hash
		FROM documents
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.OriginalFilename, &r.OriginalType, &r.ShareHash); err != nil {
			return nil, 0, fmt.Errorf("pg search scan: %w", err)
		}
		r.Snippet = r.OriginalFilename
		results = append(results, r)
	}

	return results, total, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// LoadAllRecords returns all documents for full reindexing.
func (p *PgFallback) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, original_filename, original_type, share_hash, coalesce(user_id, '')
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	documents := make([]DocumentRecord, 0)
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.OriginalFilename, &d.OriginalType, &d.ShareHash, &d.UserID); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return documents, nil
}
