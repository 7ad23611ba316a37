package revisions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestPostRevisionLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	snap := Snapshot{
		Title:  "Primeiro post",
		Slug:   "primeiro-post",
		Status: "draft",
		Blocks: json.RawMessage(`[
			{"id":"blk_1","type":"rich_text","position":0,"payload":{"text":"Olá"}},
			{"id":"blk_2","type":"image","position":1,"payload":{"url":"https://cdn.example.com/a.jpg"}}
		]`),
	}

	first, err := svc.Record("post_1", snap, "Avery", "Create post")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if first.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if _, err := os.Stat(filepath.Join(tempDir, "post_1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	snap.Title = "Primeiro post (editado)"
	second, err := svc.Record("post_1", snap, "Avery", "Update title")
	if err != nil {
		t.Fatalf("Record() second error = %v", err)
	}
	if second.Hash == first.Hash {
		t.Fatal("expected a new commit hash")
	}

	history, err := svc.History("post_1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(history))
	}
	if history[0].Hash != second.Hash {
		t.Fatalf("expected newest revision first, got %+v", history[0])
	}
	if history[0].Author != "Avery" {
		t.Fatalf("unexpected author: %q", history[0].Author)
	}

	old, err := svc.GetByHash("post_1", first.Hash)
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if old.Title != "Primeiro post" {
		t.Fatalf("unexpected snapshot title: %q", old.Title)
	}
	if len(old.Blocks) == 0 {
		t.Fatal("expected persisted block JSON")
	}
}

func TestHistoryForUnknownPost(t *testing.T) {
	svc := New(t.TempDir())

	history, err := svc.History("post_missing", 5)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(history))
	}
}

func TestRemoveDeletesHistory(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if _, err := svc.Record("post_9", Snapshot{Title: "t", Status: "draft"}, "Leo", "Create"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := svc.Remove("post_9"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "post_9")); !os.IsNotExist(err) {
		t.Fatalf("expected repo directory gone, stat err = %v", err)
	}
}
