package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pauta/api/internal/rbac"
	"pauta/api/internal/store"
)

// ProfileDirectory reads the Postgres profile cache, falling back to the auth
// provider's metadata for users the cache has not seen yet.
type ProfileDirectory struct {
	profiles ProfileStore
	api      ProviderAPI
}

func NewProfileDirectory(profiles ProfileStore, api ProviderAPI) *ProfileDirectory {
	return &ProfileDirectory{profiles: profiles, api: api}
}

func (d *ProfileDirectory) ListUsers(ctx context.Context) ([]User, error) {
	profiles, err := d.profiles.ListProfiles(ctx)
	if err != nil {
		if store.MissingTable(err) {
			// Table dropped since startup; enumerate the provider instead.
			return (&ProviderDirectory{api: d.api}).ListUsers(ctx)
		}
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	users := make([]User, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, User{
			ID:        p.ID,
			Name:      p.Name,
			Email:     p.Email,
			Role:      rbac.Normalize(p.Role),
			CreatedAt: p.CreatedAt,
		})
	}
	return users, nil
}

func (d *ProfileDirectory) Role(ctx context.Context, userID string) (rbac.Role, bool, error) {
	role, err := d.profiles.GetProfileRole(ctx, userID)
	if err == nil {
		return rbac.Normalize(role), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) && !store.MissingTable(err) {
		return "", false, fmt.Errorf("profile role: %w", err)
	}
	return providerRole(ctx, d.api, userID)
}
