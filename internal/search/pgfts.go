package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements post search using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries the posts fts column with plainto_tsquery and ts_rank,
// using ts_headline for snippets. The 'simple' configuration matches the
// generated column so accents and Portuguese stemming do not diverge.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
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

	tsQuery := "plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	argN := 2

	where := "p.fts @@ " + tsQuery
	if q.Status != "" {
		where += fmt.Sprintf(" AND p.status = $%d", argN)
		args = append(args, q.Status)
		argN++
	}

	countSQL := fmt.Sprintf(`SELECT count(*) FROM posts p WHERE %s`, where)

	dataSQL := fmt.Sprintf(`
		SELECT p.id, p.title, p.slug, p.status,
			ts_headline('simple', coalesce(p.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet
		FROM posts p
		WHERE %s
		ORDER BY ts_rank(p.fts, %s) DESC
		LIMIT %d OFFSET %d`,
		tsQuery, where, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Slug, &r.Status, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all posts for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PostRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, slug, status, content
		FROM posts
	`)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	defer rows.Close()

	posts := make([]PostRecord, 0)
	for rows.Next() {
		var rec PostRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Slug, &rec.Status, &rec.Content); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	return posts, nil
}
