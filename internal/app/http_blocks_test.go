package app

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"pauta/api/internal/store"
)

func blocksFixtureService(current *[]store.Block) *Service {
	st := &fakeStore{
		getPostFn: func(ctx context.Context, id string) (store.Post, error) {
			if id == "post_1" {
				return store.Post{ID: id, Title: "Post"}, nil
			}
			return store.Post{}, sql.ErrNoRows
		},
		listBlocksFn: func(ctx context.Context, postID string) ([]store.Block, error) {
			return *current, nil
		},
		insertBlockAtFn: func(ctx context.Context, b store.Block) (store.Block, error) {
			*current = append(*current, b)
			return b, nil
		},
	}
	return newTestService(st, &fakeAuth{})
}

func TestCreateBlockRoute(t *testing.T) {
	current := []store.Block{}
	handler := newTestHTTP(blocksFixtureService(&current)).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/posts/post_1/blocks", "dev-token",
		`{"type":"rich_text","position":0,"payload":{"text":"Olá","font":"papyrus"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	data, _ := payload["data"].(map[string]any)
	if data == nil {
		t.Fatalf("missing data: %v", payload)
	}
	// Disallowed payload fields are stripped, not stored.
	inner, _ := data["payload"].(map[string]any)
	if _, ok := inner["font"]; ok {
		t.Fatalf("payload not sanitized: %v", inner)
	}
}

func TestCreateBlockRouteValidation(t *testing.T) {
	current := []store.Block{}
	handler := newTestHTTP(blocksFixtureService(&current)).Handler()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"unknown type", `{"type":"marquee","position":0,"payload":{}}`, http.StatusBadRequest},
		{"missing position", `{"type":"rich_text","payload":{"text":"a"}}`, http.StatusBadRequest},
		{"negative position", `{"type":"rich_text","position":-1,"payload":{"text":"a"}}`, http.StatusBadRequest},
		{"malformed payload", `{"type":"image","position":0,"payload":{"alt":"sem url"}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := doRequest(t, handler, http.MethodPost, "/posts/post_1/blocks", "dev-token", tc.body)
		if rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(t, handler, http.MethodPost, "/posts/post_missing/blocks", "dev-token",
		`{"type":"rich_text","position":0,"payload":{"text":"a"}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing post, got %d", rec.Code)
	}
}

func TestReorderRoute(t *testing.T) {
	current := []store.Block{
		{ID: "blk_a", PostID: "post_1", Position: 0},
		{ID: "blk_b", PostID: "post_1", Position: 1},
	}
	handler := newTestHTTP(blocksFixtureService(&current)).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/posts/post_1/blocks/reorder", "dev-token",
		`{"blockIds":["blk_b","blk_a"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodPost, "/posts/post_1/blocks/reorder", "dev-token",
		`{"blockIds":["blk_b"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for partial set, got %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/posts/post_1/blocks/reorder", "dev-token",
		`{"blockIds":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty list, got %d", rec.Code)
	}
}

func TestListBlocksOrdered(t *testing.T) {
	current := []store.Block{
		{ID: "blk_a", PostID: "post_1", Position: 0},
		{ID: "blk_b", PostID: "post_1", Position: 1},
	}
	handler := newTestHTTP(blocksFixtureService(&current)).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/posts/post_1/blocks", "dev-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	data, _ := payload["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("expected 2 blocks, got %v", payload)
	}
}
