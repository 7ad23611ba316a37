package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertShareLink(ctx context.Context, link ShareLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_links (token, post_id, password_hash, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, link.Token, link.PostID, link.PasswordHash, link.CreatedBy, link.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert share link: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetShareLink(ctx context.Context, token string) (ShareLink, error) {
	var item ShareLink
	err := s.db.QueryRowContext(ctx, `
		SELECT token, post_id, password_hash, created_by, expires_at, revoked_at, access_count, created_at
		FROM share_links
		WHERE token=$1
	`, token).Scan(
		&item.Token,
		&item.PostID,
		&item.PasswordHash,
		&item.CreatedBy,
		&item.ExpiresAt,
		&item.RevokedAt,
		&item.AccessCount,
		&item.CreatedAt,
	)
	if err != nil {
		return ShareLink{}, err
	}
	return item, nil
}

func (s *PostgresStore) TouchShareLink(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE share_links SET access_count = access_count + 1 WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("touch share link: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeShareLink(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE share_links SET revoked_at=NOW() WHERE token=$1 AND revoked_at IS NULL`, token)
	if err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	return nil
}
