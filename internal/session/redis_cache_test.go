package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	cache, err := NewRedisCache("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	return cache, s
}

func TestPutAndGet(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	hash := HashToken("bearer-token")
	identity := Identity{UserID: "u1", Name: "Ana", Email: "ana@example.com", Role: "editor"}

	if err := cache.Put(ctx, hash, identity); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cache.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != identity {
		t.Fatalf("expected %+v, got %+v", identity, got)
	}
}

func TestGetMissReturnsErrNotCached(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	_, err := cache.Get(context.Background(), HashToken("never-seen"))
	if !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
}

func TestEntriesExpire(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	hash := HashToken("expiring")
	if err := cache.Put(ctx, hash, Identity{UserID: "u1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, err := cache.Get(ctx, hash); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestDropUserEvictsEverySession(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	first := HashToken("laptop-session")
	second := HashToken("phone-session")
	other := HashToken("someone-else")
	if err := cache.Put(ctx, first, Identity{UserID: "u1", Role: "editor"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Put(ctx, second, Identity{UserID: "u1", Role: "editor"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Put(ctx, other, Identity{UserID: "u2", Role: "autor"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := cache.DropUser(ctx, "u1"); err != nil {
		t.Fatalf("DropUser failed: %v", err)
	}
	if _, err := cache.Get(ctx, first); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected miss after drop, got %v", err)
	}
	if _, err := cache.Get(ctx, second); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected miss after drop, got %v", err)
	}
	if _, err := cache.Get(ctx, other); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}
}

func TestDropUserWithNoSessions(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	if err := cache.DropUser(context.Background(), "ghost"); err != nil {
		t.Fatalf("DropUser failed: %v", err)
	}
}

func TestHashTokenIsStableAndOpaque(t *testing.T) {
	a := HashToken("secret-token")
	b := HashToken("secret-token")
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if a == "secret-token" || len(a) != 64 {
		t.Fatalf("unexpected hash %q", a)
	}
}
