package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pauta/api/internal/provider"
	"pauta/api/internal/rbac"
	"pauta/api/internal/store"
)

func newTestHTTP(svc *Service) *HTTPServer {
	return NewHTTPServer(svc, "http://localhost:3000", nil)
}

func doRequest(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestHealthNeedsNoAuth(t *testing.T) {
	handler := newTestHTTP(newTestService(&fakeStore{}, &fakeAuth{})).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["ok"] != true {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestMutatingRoutesRequireToken(t *testing.T) {
	handler := newTestHTTP(newTestService(&fakeStore{}, &fakeAuth{})).Handler()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/posts"},
		{http.MethodGet, "/posts/post_1/blocks"},
		{http.MethodPost, "/posts/post_1/blocks"},
		{http.MethodGet, "/users"},
		{http.MethodDelete, "/users"},
		{http.MethodPatch, "/users/user_1/role"},
		{http.MethodPost, "/send-email"},
	}
	for _, p := range paths {
		rec := doRequest(t, handler, p.method, p.path, "", "{}")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, rec.Code)
		}
		if payload := decodeResponse(t, rec); payload["code"] != "UNAUTHORIZED" {
			t.Errorf("%s %s: unexpected body %v", p.method, p.path, payload)
		}
	}
}

func TestInvalidTokenIsUnauthorized(t *testing.T) {
	auth := &fakeAuth{
		userFromTokenFn: func(ctx context.Context, token string) (provider.User, error) {
			return provider.User{}, provider.ErrUnauthorized
		},
	}
	handler := newTestHTTP(newTestService(&fakeStore{}, auth)).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/posts", "garbage", `{"title":"t"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestDevBypassGrantsAdmin(t *testing.T) {
	dir := &fakeDirectory{}
	svc := newTestService(&fakeStore{}, &fakeAuth{}, func(d *Deps) { d.Directory = dir })
	handler := newTestHTTP(svc).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/users", "dev-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for dev bypass admin, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminGate(t *testing.T) {
	auth := &fakeAuth{
		userFromTokenFn: func(ctx context.Context, token string) (provider.User, error) {
			return provider.User{ID: "user_2", Email: "leo@example.com"}, nil
		},
	}
	dir := &fakeDirectory{
		roleFn: func(ctx context.Context, id string) (rbac.Role, bool, error) {
			return rbac.RoleAutor, true, nil
		},
	}
	svc := newTestService(&fakeStore{}, auth, func(d *Deps) { d.Directory = dir })
	handler := newTestHTTP(svc).Handler()

	for _, p := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/users"},
		{http.MethodDelete, "/users"},
		{http.MethodPatch, "/users/user_1/role"},
		{http.MethodPatch, "/users/user_1/password"},
	} {
		rec := doRequest(t, handler, p.method, p.path, "user-token", "{}")
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403 for non-admin, got %d", p.method, p.path, rec.Code)
		}
	}

	// The same author can still write content.
	rec := doRequest(t, handler, http.MethodPost, "/posts", "user-token",
		`{"title":"t","slug":"t","author_id":"user_2","content":"c"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for author post create, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetPostsById(t *testing.T) {
	st := &fakeStore{
		getPostFn: func(ctx context.Context, id string) (store.Post, error) {
			return store.Post{ID: id, Title: "Um post", AuthorID: "user_1", FeaturedImageURL: "https://cdn.example.com/a.jpg"}, nil
		},
	}
	handler := newTestHTTP(newTestService(st, &fakeAuth{})).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/posts?id=post_1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	data, _ := payload["data"].(map[string]any)
	if payload["ok"] != true || data == nil {
		t.Fatalf("unexpected envelope: %v", payload)
	}
	// Responses use the same snake_case keys clients send.
	if data["author_id"] != "user_1" || data["featured_image_url"] != "https://cdn.example.com/a.jpg" {
		t.Fatalf("expected snake_case post keys, got %v", data)
	}

	rec = doRequest(t, handler, http.MethodGet, "/posts?id=", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty id, got %d", rec.Code)
	}
}

func TestGetPostsByIdNotFound(t *testing.T) {
	handler := newTestHTTP(newTestService(&fakeStore{}, &fakeAuth{})).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/posts?id=post_missing", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected body: %v", payload)
	}
}
