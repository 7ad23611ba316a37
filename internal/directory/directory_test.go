package directory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"pauta/api/internal/provider"
	"pauta/api/internal/rbac"
	"pauta/api/internal/store"
)

type fakeProfiles struct {
	has         bool
	hasErr      error
	profiles    []store.Profile
	profilesErr error
	roles       map[string]string
}

func (f *fakeProfiles) HasProfiles(ctx context.Context) (bool, error) {
	return f.has, f.hasErr
}

func (f *fakeProfiles) ListProfiles(ctx context.Context) ([]store.Profile, error) {
	return f.profiles, f.profilesErr
}

func (f *fakeProfiles) GetProfileRole(ctx context.Context, userID string) (string, error) {
	role, ok := f.roles[userID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return role, nil
}

type fakeProvider struct {
	users []provider.User
	err   error
}

func (f *fakeProvider) ListUsers(ctx context.Context) ([]provider.User, error) {
	return f.users, f.err
}

func (f *fakeProvider) GetUser(ctx context.Context, userID string) (provider.User, error) {
	if f.err != nil {
		return provider.User{}, f.err
	}
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return provider.User{}, provider.ErrNotFound
}

func TestSelectPicksProfileBackedWhenTableExists(t *testing.T) {
	dir := Select(context.Background(), &fakeProfiles{has: true}, &fakeProvider{})
	if _, ok := dir.(*ProfileDirectory); !ok {
		t.Fatalf("expected ProfileDirectory, got %T", dir)
	}

	dir = Select(context.Background(), &fakeProfiles{has: false}, &fakeProvider{})
	if _, ok := dir.(*ProviderDirectory); !ok {
		t.Fatalf("expected ProviderDirectory, got %T", dir)
	}

	dir = Select(context.Background(), &fakeProfiles{hasErr: errors.New("boom")}, &fakeProvider{})
	if _, ok := dir.(*ProviderDirectory); !ok {
		t.Fatalf("probe failure must fall back to ProviderDirectory, got %T", dir)
	}
}

func TestProfileDirectoryListsProfiles(t *testing.T) {
	dir := NewProfileDirectory(&fakeProfiles{
		has: true,
		profiles: []store.Profile{
			{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: "editor"},
			{ID: "u2", Name: "Bia", Email: "bia@example.com", Role: "banido"},
		},
	}, &fakeProvider{})

	users, err := dir.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Role != rbac.RoleEditor {
		t.Fatalf("expected editor, got %q", users[0].Role)
	}
	if users[1].Role != rbac.RoleAssinante {
		t.Fatalf("invalid role must normalize to assinante, got %q", users[1].Role)
	}
}

func TestProfileDirectoryRoleFallsBackToProvider(t *testing.T) {
	api := &fakeProvider{users: []provider.User{
		{ID: "u9", Email: "zoe@example.com", Metadata: map[string]any{"role": "autor"}},
	}}
	dir := NewProfileDirectory(&fakeProfiles{has: true, roles: map[string]string{"u1": "administrador"}}, api)

	role, found, err := dir.Role(context.Background(), "u1")
	if err != nil || !found || role != rbac.RoleAdministrador {
		t.Fatalf("profile role = (%q, %v, %v)", role, found, err)
	}

	role, found, err = dir.Role(context.Background(), "u9")
	if err != nil || !found || role != rbac.RoleAutor {
		t.Fatalf("fallback role = (%q, %v, %v)", role, found, err)
	}

	_, found, err = dir.Role(context.Background(), "missing")
	if err != nil || found {
		t.Fatalf("missing user = (%v, %v)", found, err)
	}
}

func TestProviderDirectoryDefaultsRoleAndName(t *testing.T) {
	dir := NewProviderDirectory(&fakeProvider{users: []provider.User{
		{ID: "u1", Email: "carlos.souza@example.com", Metadata: map[string]any{}},
		{ID: "u2", Email: "ana@example.com", Metadata: map[string]any{"name": "Ana", "role": "editor"}},
	}})

	users, err := dir.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if users[0].Name != "carlos.souza" || users[0].Role != rbac.RoleAssinante {
		t.Fatalf("expected email local-part name and assinante default, got %+v", users[0])
	}
	if users[1].Name != "Ana" || users[1].Role != rbac.RoleEditor {
		t.Fatalf("expected metadata name and role, got %+v", users[1])
	}
}
