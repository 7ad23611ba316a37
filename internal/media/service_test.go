package media

import (
	"context"
	"strings"
	"testing"
)

func TestNewServiceUnconfigured(t *testing.T) {
	if svc := NewService(context.Background(), Config{}); svc != nil {
		t.Fatal("expected nil service without endpoint")
	}
	if svc := NewService(context.Background(), Config{Endpoint: "localhost:9000"}); svc != nil {
		t.Fatal("expected nil service without bucket")
	}
}

func TestStoreRejectsUnsupportedType(t *testing.T) {
	// The content-type gate runs before any storage call, so a service
	// with no client is enough to exercise it.
	svc := &Service{bucket: "pauta", publicURL: "https://cdn.example.com"}

	_, err := svc.Store(context.Background(), strings.NewReader("data"), 4, "application/pdf")
	if err != ErrUnsupportedType {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	_, err = svc.Store(context.Background(), strings.NewReader("data"), 4, "text/html")
	if err != ErrUnsupportedType {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}
