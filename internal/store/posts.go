package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const postColumns = `id, title, slug, status, featured_image_url, author_id, content, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (Post, error) {
	var item Post
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Slug,
		&item.Status,
		&item.FeaturedImageURL,
		&item.AuthorID,
		&item.Content,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertPost(ctx context.Context, post Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, title, slug, status, featured_image_url, author_id, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, post.ID, post.Title, post.Slug, post.Status, post.FeaturedImageURL, post.AuthorID, post.Content)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPost(ctx context.Context, postID string) (Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id=$1`, postID)
	return scanPost(row)
}

func (s *PostgresStore) ListPosts(ctx context.Context, status string) ([]Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	args := []any{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]Post, 0)
	for rows.Next() {
		item, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdatePost(ctx context.Context, post Post) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET title=$2, slug=$3, status=$4, featured_image_url=$5, content=$6, updated_at=NOW()
		WHERE id=$1
	`, post.ID, post.Title, post.Slug, post.Status, post.FeaturedImageURL, post.Content)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TrashPost soft-deletes a post. The row and its blocks stay in place so
// restore from the trash view remains possible.
// DeletePost permanently removes a post; its blocks go with it through the
// FK cascade.
func (s *PostgresStore) DeletePost(ctx context.Context, postID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id=$1`, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) TrashPost(ctx context.Context, postID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE posts SET status=$2, updated_at=NOW() WHERE id=$1`, postID, PostStatusTrash)
	if err != nil {
		return fmt.Errorf("trash post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("trash post rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
