package store

import (
	"context"
	"fmt"
	"strings"
)

// HasProfiles probes for the profile cache table once at startup. The table
// may legitimately be absent, in which case the auth provider's own user
// store is the only directory.
func (s *PostgresStore) HasProfiles(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT to_regclass('profiles') IS NOT NULL`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe profiles table: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, role, created_at
		FROM profiles
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	items := make([]Profile, 0)
	for rows.Next() {
		var item Profile
		if err := rows.Scan(&item.ID, &item.Name, &item.Email, &item.Role, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProfileRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM profiles WHERE id=$1`, userID).Scan(&role)
	if err != nil {
		return "", err
	}
	return role, nil
}

func (s *PostgresStore) UpsertProfileRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, role)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET role=EXCLUDED.role, updated_at=NOW()
	`, userID, role)
	if err != nil {
		return fmt.Errorf("upsert profile role: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// MissingTable reports whether err is Postgres complaining that a relation
// does not exist (undefined_table). The profile cache tolerates that case.
func MissingTable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 42P01") || strings.Contains(msg, "does not exist")
}
