// Package directory answers "who are the users and what can they do" from
// one of two sources: the Postgres profile cache when the table exists, or
// the auth provider's own user store when it does not. The implementation is
// picked once at startup, never per call.
package directory

import (
	"context"
	"log"
	"time"

	"pauta/api/internal/provider"
	"pauta/api/internal/rbac"
	"pauta/api/internal/store"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      rbac.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Directory interface {
	ListUsers(ctx context.Context) ([]User, error)
	// Role resolves a user's permission tier; the boolean reports whether the
	// user was found at all.
	Role(ctx context.Context, userID string) (rbac.Role, bool, error)
}

// ProfileStore is the slice of the Postgres store the profile-backed
// directory needs.
type ProfileStore interface {
	HasProfiles(ctx context.Context) (bool, error)
	ListProfiles(ctx context.Context) ([]store.Profile, error)
	GetProfileRole(ctx context.Context, userID string) (string, error)
}

// ProviderAPI is the slice of the auth-provider client the directory needs.
type ProviderAPI interface {
	ListUsers(ctx context.Context) ([]provider.User, error)
	GetUser(ctx context.Context, userID string) (provider.User, error)
}

// Select probes the profile table once and returns the directory to use for
// the life of the process.
func Select(ctx context.Context, profiles ProfileStore, api ProviderAPI) Directory {
	has, err := profiles.HasProfiles(ctx)
	if err != nil {
		log.Printf("directory: profile probe failed, using auth provider: %v", err)
		return &ProviderDirectory{api: api}
	}
	if !has {
		log.Printf("directory: profiles table absent, using auth provider")
		return &ProviderDirectory{api: api}
	}
	return &ProfileDirectory{profiles: profiles, api: api}
}
