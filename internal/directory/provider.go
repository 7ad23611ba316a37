package directory

import (
	"context"
	"errors"
	"fmt"

	"pauta/api/internal/provider"
	"pauta/api/internal/rbac"
)

// ProviderDirectory enumerates the auth provider's user store directly, for
// deployments without a profile table. The role defaults to assinante when
// the metadata carries none.
type ProviderDirectory struct {
	api ProviderAPI
}

func NewProviderDirectory(api ProviderAPI) *ProviderDirectory {
	return &ProviderDirectory{api: api}
}

func (d *ProviderDirectory) ListUsers(ctx context.Context) ([]User, error) {
	accounts, err := d.api.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider users: %w", err)
	}
	users := make([]User, 0, len(accounts))
	for _, account := range accounts {
		users = append(users, User{
			ID:        account.ID,
			Name:      account.Name(),
			Email:     account.Email,
			Role:      rbac.Normalize(account.Role()),
			CreatedAt: account.CreatedAt,
		})
	}
	return users, nil
}

func (d *ProviderDirectory) Role(ctx context.Context, userID string) (rbac.Role, bool, error) {
	return providerRole(ctx, d.api, userID)
}

func providerRole(ctx context.Context, api ProviderAPI, userID string) (rbac.Role, bool, error) {
	account, err := api.GetUser(ctx, userID)
	if errors.Is(err, provider.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("provider role: %w", err)
	}
	return rbac.Normalize(account.Role()), true, nil
}
