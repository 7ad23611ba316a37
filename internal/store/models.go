package store

import (
	"encoding/json"
	"time"
)

const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusTrash     = "trash"
)

type Post struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Slug             string    `json:"slug"`
	Status           string    `json:"status"`
	FeaturedImageURL string    `json:"featured_image_url"`
	AuthorID         string    `json:"author_id"`
	Content          string    `json:"content"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Block struct {
	ID        string          `json:"id"`
	PostID    string          `json:"post_id"`
	Type      string          `json:"type"`
	Position  int             `json:"position"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Profile is the denormalized cache of a directory user. The auth provider's
// own record stays canonical; this table may be absent entirely.
type Profile struct {
	ID        string
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
}

type ShareLink struct {
	Token        string
	PostID       string
	PasswordHash *string
	CreatedBy    string
	ExpiresAt    *time.Time
	RevokedAt    *time.Time
	AccessCount  int
	CreatedAt    time.Time
}
