package util

import (
	"strings"
	"testing"
)

func TestNewIDPrefix(t *testing.T) {
	id := NewID("post")
	if !strings.HasPrefix(id, "post_") {
		t.Fatalf("expected post_ prefix, got %q", id)
	}
	if len(id) != len("post_")+32 {
		t.Fatalf("unexpected id length: %q", id)
	}
	if id == NewID("post") {
		t.Fatal("two ids should not collide")
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"  Edição  Especial!  ", "edi-o-especial"},
		{"já-publicado", "j-publicado"},
		{"2024: o ano", "2024-o-ano"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
