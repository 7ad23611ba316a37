package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const blockColumns = `id, post_id, type, position, payload, created_at, updated_at`

func scanBlock(row interface{ Scan(...any) error }) (Block, error) {
	var item Block
	err := row.Scan(
		&item.ID,
		&item.PostID,
		&item.Type,
		&item.Position,
		&item.Payload,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) ListBlocks(ctx context.Context, postID string) ([]Block, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+blockColumns+`
		FROM post_blocks
		WHERE post_id=$1
		ORDER BY position ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	items := make([]Block, 0)
	for rows.Next() {
		item, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBlock(ctx context.Context, blockID string) (Block, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM post_blocks WHERE id=$1`, blockID)
	return scanBlock(row)
}

// InsertBlockAt inserts a block and shifts every sibling at or above the
// requested position up by one. The shift and the insert commit together, so
// the post never persists a half-shifted ordering.
func (s *PostgresStore) InsertBlockAt(ctx context.Context, block Block) (Block, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Block{}, fmt.Errorf("begin insert block: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_blocks WHERE post_id=$1`, block.PostID).Scan(&count); err != nil {
		return Block{}, fmt.Errorf("count blocks: %w", err)
	}
	if block.Position < 0 {
		block.Position = 0
	}
	if block.Position > count {
		block.Position = count
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE post_blocks
		SET position = position + 1, updated_at = NOW()
		WHERE post_id=$1 AND position >= $2
	`, block.PostID, block.Position); err != nil {
		return Block{}, fmt.Errorf("shift blocks: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO post_blocks (id, post_id, type, position, payload)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING `+blockColumns+`
	`, block.ID, block.PostID, block.Type, block.Position, string(block.Payload))
	inserted, err := scanBlock(row)
	if err != nil {
		return Block{}, fmt.Errorf("insert block: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Block{}, fmt.Errorf("commit insert block: %w", err)
	}
	return inserted, nil
}

// ReorderBlocks rewrites position to the index of each id in blockIDs, all in
// one transaction. The caller has already checked that blockIDs is exactly
// the post's block-id set.
func (s *PostgresStore) ReorderBlocks(ctx context.Context, postID string, blockIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for index, blockID := range blockIDs {
		result, err := tx.ExecContext(ctx, `
			UPDATE post_blocks
			SET position=$3, updated_at=NOW()
			WHERE post_id=$1 AND id=$2
		`, postID, blockID, index)
		if err != nil {
			return fmt.Errorf("reorder block %s: %w", blockID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("reorder block rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("reorder block %s: %w", blockID, sql.ErrNoRows)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBlockPayload(ctx context.Context, blockID string, payload []byte) (Block, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE post_blocks
		SET payload=$2::jsonb, updated_at=NOW()
		WHERE id=$1
		RETURNING `+blockColumns+`
	`, blockID, string(payload))
	return scanBlock(row)
}

// DeleteBlock removes a block and closes the position gap it leaves behind.
func (s *PostgresStore) DeleteBlock(ctx context.Context, blockID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete block: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var postID string
	var position int
	err = tx.QueryRowContext(ctx, `
		DELETE FROM post_blocks WHERE id=$1
		RETURNING post_id, position
	`, blockID).Scan(&postID, &position)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE post_blocks
		SET position = position - 1, updated_at = NOW()
		WHERE post_id=$1 AND position > $2
	`, postID, position); err != nil {
		return fmt.Errorf("compact positions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete block: %w", err)
	}
	return nil
}
