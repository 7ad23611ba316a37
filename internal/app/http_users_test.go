package app

import (
	"context"
	"net/http"
	"testing"

	"pauta/api/internal/directory"
	"pauta/api/internal/provider"
	"pauta/api/internal/rbac"
)

func TestListUsersRoute(t *testing.T) {
	dir := &fakeDirectory{
		listFn: func(ctx context.Context) ([]directory.User, error) {
			return []directory.User{
				{ID: "user_1", Name: "Ana", Email: "ana@example.com", Role: rbac.RoleAdministrador},
				{ID: "user_2", Name: "Leo", Email: "leo@example.com", Role: rbac.RoleAssinante},
			}, nil
		},
	}
	svc := newTestService(&fakeStore{}, &fakeAuth{}, func(d *Deps) { d.Directory = dir })
	handler := newTestHTTP(svc).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/users", "dev-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	data, _ := payload["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("expected 2 users, got %v", payload)
	}
}

func TestUpdateRoleRoute(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeAuth{})
	handler := newTestHTTP(svc).Handler()

	rec := doRequest(t, handler, http.MethodPatch, "/users/user_1/role", "dev-token", `{"role":"editor"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	data, _ := payload["data"].(map[string]any)
	if data["role"] != "editor" {
		t.Fatalf("unexpected data: %v", payload)
	}

	rec = doRequest(t, handler, http.MethodPatch, "/users/user_1/role", "dev-token", `{"role":"root"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid role, got %d", rec.Code)
	}
	payload = decodeResponse(t, rec)
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error body: %v", payload)
	}
	details, _ := payload["details"].(map[string]any)
	if details == nil || details["allowed"] == nil {
		t.Fatalf("expected allowed roles in details: %v", payload)
	}
}

func TestResetPasswordRoute(t *testing.T) {
	auth := &fakeAuth{
		getUserFn: func(ctx context.Context, id string) (provider.User, error) {
			return provider.User{ID: id, Email: "ana@example.com"}, nil
		},
	}
	mail := &fakeMailer{configured: true}
	svc := newTestService(&fakeStore{}, auth, func(d *Deps) { d.Email = mail })
	handler := newTestHTTP(svc).Handler()

	rec := doRequest(t, handler, http.MethodPatch, "/users/user_1/password", "dev-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	data, _ := payload["data"].(map[string]any)
	password, _ := data["password"].(string)
	if len(password) != 12 {
		t.Fatalf("expected 12-char password, got %v", payload)
	}
	if data["emailSent"] != true {
		t.Fatalf("expected emailSent, got %v", payload)
	}
}

func TestResetPasswordRouteUnconfiguredProvider(t *testing.T) {
	auth := &fakeAuth{
		getUserFn: func(ctx context.Context, id string) (provider.User, error) {
			return provider.User{}, provider.ErrNotConfigured
		},
	}
	svc := newTestService(&fakeStore{}, auth)
	handler := newTestHTTP(svc).Handler()

	rec := doRequest(t, handler, http.MethodPatch, "/users/user_1/password", "dev-token", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unconfigured provider, got %d", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["code"] != "BACKEND_UNAVAILABLE" {
		t.Fatalf("unexpected body: %v", payload)
	}
}

func TestDeleteUserRoute(t *testing.T) {
	deletedProvider := ""
	deletedProfile := ""
	auth := &fakeAuth{
		deleteUserFn: func(ctx context.Context, id string) error {
			deletedProvider = id
			return nil
		},
	}
	st := &fakeStore{
		deleteProfileFn: func(ctx context.Context, id string) error {
			deletedProfile = id
			return nil
		},
	}
	svc := newTestService(st, auth)
	handler := newTestHTTP(svc).Handler()

	rec := doRequest(t, handler, http.MethodDelete, "/users", "dev-token", `{"userId":"user_9"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if deletedProvider != "user_9" || deletedProfile != "user_9" {
		t.Fatalf("expected both deletes, got provider=%q profile=%q", deletedProvider, deletedProfile)
	}

	rec = doRequest(t, handler, http.MethodDelete, "/users", "dev-token", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing userId, got %d", rec.Code)
	}
}

func TestSendEmailRoute(t *testing.T) {
	mail := &fakeMailer{configured: true}
	svc := newTestService(&fakeStore{}, &fakeAuth{}, func(d *Deps) { d.Email = mail })
	handler := newTestHTTP(svc).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/send-email", "dev-token",
		`{"to":"ana@example.com","name":"Ana","email":"ana@example.com","password":"s3nh4!"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(mail.sent) != 1 || mail.sent[0] != "ana@example.com" {
		t.Fatalf("expected one email, got %v", mail.sent)
	}

	rec = doRequest(t, handler, http.MethodPost, "/send-email", "dev-token", `{"to":"ana@example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}
}
