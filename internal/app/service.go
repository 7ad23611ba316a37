package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pauta/api/internal/blocks"
	"pauta/api/internal/config"
	"pauta/api/internal/directory"
	"pauta/api/internal/export"
	"pauta/api/internal/media"
	"pauta/api/internal/provider"
	"pauta/api/internal/rbac"
	"pauta/api/internal/realtime"
	"pauta/api/internal/revisions"
	"pauta/api/internal/search"
	"pauta/api/internal/session"
	"pauta/api/internal/store"
	"pauta/api/internal/util"
)

// Session is the verified caller identity attached to a request.
type Session struct {
	UserID string
	Name   string
	Email  string
	Role   rbac.Role
}

type dataStore interface {
	Ping(context.Context) error
	InsertPost(context.Context, store.Post) error
	GetPost(context.Context, string) (store.Post, error)
	ListPosts(context.Context, string) ([]store.Post, error)
	UpdatePost(context.Context, store.Post) error
	TrashPost(context.Context, string) error
	DeletePost(context.Context, string) error
	ListBlocks(context.Context, string) ([]store.Block, error)
	GetBlock(context.Context, string) (store.Block, error)
	InsertBlockAt(context.Context, store.Block) (store.Block, error)
	ReorderBlocks(context.Context, string, []string) error
	UpdateBlockPayload(context.Context, string, []byte) (store.Block, error)
	DeleteBlock(context.Context, string) error
	GetProfileRole(context.Context, string) (string, error)
	UpsertProfileRole(context.Context, string, string) error
	DeleteProfile(context.Context, string) error
	InsertShareLink(context.Context, store.ShareLink) error
	GetShareLink(context.Context, string) (store.ShareLink, error)
	TouchShareLink(context.Context, string) error
	RevokeShareLink(context.Context, string) error
}

type authAPI interface {
	UserFromToken(context.Context, string) (provider.User, error)
	ListUsers(context.Context) ([]provider.User, error)
	GetUser(context.Context, string) (provider.User, error)
	UpdateUserRole(context.Context, string, string) error
	UpdateUserPassword(context.Context, string, string) error
	DeleteUser(context.Context, string) error
}

type identityCache interface {
	Get(context.Context, string) (session.Identity, error)
	Put(context.Context, string, session.Identity) error
	DropUser(context.Context, string) error
}

type searcher interface {
	Search(search.Query) search.Response
	IndexPost(search.PostRecord)
	DeletePost(string)
}

type revisionLog interface {
	Record(string, revisions.Snapshot, string, string) (revisions.CommitInfo, error)
	History(string, int) ([]revisions.CommitInfo, error)
	GetByHash(string, string) (revisions.Snapshot, error)
	Remove(string) error
}

type exporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type mailer interface {
	IsConfigured() bool
	SendCredentialsEmail(to, userName, userEmail, password string) error
}

type mediaStore interface {
	Store(context.Context, io.Reader, int64, string) (media.Upload, error)
	Remove(context.Context, string) error
}

type notifier interface {
	Publish(realtime.Event)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	auth      authAPI
	directory directory.Directory
	cache     identityCache
	search    searcher
	revisions revisionLog
	exporter  exporter
	email     mailer
	media     mediaStore
	events    notifier
}

// Deps bundles the long-lived clients the service composes. Optional fields
// (cache, search, revisions, exporter, events) may be nil and the related
// feature degrades.
type Deps struct {
	Store     dataStore
	Auth      authAPI
	Directory directory.Directory
	Cache     identityCache
	Search    searcher
	Revisions revisionLog
	Exporter  exporter
	Email     mailer
	Media     mediaStore
	Events    notifier
}

func New(cfg config.Config, deps Deps) *Service {
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		auth:      deps.Auth,
		directory: deps.Directory,
		cache:     deps.Cache,
		search:    deps.Search,
		revisions: deps.Revisions,
		exporter:  deps.Exporter,
		email:     deps.Email,
		media:     deps.Media,
		events:    deps.Events,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

// SessionFromToken resolves a bearer token to an identity: dev bypass first,
// then the Redis cache, then a round trip to the auth provider.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	if s.cfg.DevBypassToken != "" && !s.cfg.Production() && token == s.cfg.DevBypassToken {
		return Session{
			UserID: "dev-bypass",
			Name:   "Dev",
			Role:   rbac.RoleAdministrador,
		}, nil
	}

	tokenHash := session.HashToken(token)
	if s.cache != nil {
		if identity, err := s.cache.Get(ctx, tokenHash); err == nil {
			return Session{
				UserID: identity.UserID,
				Name:   identity.Name,
				Email:  identity.Email,
				Role:   rbac.Normalize(identity.Role),
			}, nil
		}
	}

	user, err := s.auth.UserFromToken(ctx, token)
	if err != nil {
		return Session{}, err
	}

	role := s.resolveRole(ctx, user)
	sess := Session{
		UserID: user.ID,
		Name:   user.Name(),
		Email:  user.Email,
		Role:   role,
	}

	if s.cache != nil {
		identity := session.Identity{
			UserID: sess.UserID,
			Name:   sess.Name,
			Email:  sess.Email,
			Role:   string(sess.Role),
		}
		if err := s.cache.Put(ctx, tokenHash, identity); err != nil {
			log.Printf("app: cache identity: %v", err)
		}
	}
	return sess, nil
}

func (s *Service) resolveRole(ctx context.Context, user provider.User) rbac.Role {
	if s.directory != nil {
		role, found, err := s.directory.Role(ctx, user.ID)
		if err != nil {
			log.Printf("app: resolve role for %s: %v", user.ID, err)
		} else if found {
			return role
		}
	}
	return rbac.Normalize(user.Role())
}

// --- Posts ---

type CreatePostInput struct {
	Title            string `json:"title"`
	Slug             string `json:"slug"`
	Status           string `json:"status"`
	FeaturedImageURL string `json:"featured_image_url"`
	AuthorID         string `json:"author_id"`
	Content          string `json:"content"`
}

type UpdatePostInput struct {
	Title            *string `json:"title"`
	Slug             *string `json:"slug"`
	Status           *string `json:"status"`
	FeaturedImageURL *string `json:"featured_image_url"`
	Content          *string `json:"content"`
}

func validStatus(status string) bool {
	switch status {
	case store.PostStatusDraft, store.PostStatusPublished, store.PostStatusTrash:
		return true
	}
	return false
}

func (s *Service) CreatePost(ctx context.Context, input CreatePostInput, actor Session) (store.Post, error) {
	var missing []string
	if strings.TrimSpace(input.Title) == "" {
		missing = append(missing, "title")
	}
	slug := util.Slugify(input.Slug)
	if slug == "" {
		missing = append(missing, "slug")
	}
	if strings.TrimSpace(input.AuthorID) == "" {
		missing = append(missing, "author_id")
	}
	if input.Content == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return store.Post{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "missing required fields", map[string]any{"fields": missing})
	}

	status := input.Status
	if status == "" {
		status = store.PostStatusDraft
	}
	if !validStatus(status) {
		return store.Post{}, validationError("invalid status", map[string]any{"allowed": []string{store.PostStatusDraft, store.PostStatusPublished, store.PostStatusTrash}})
	}
	if status == store.PostStatusPublished && !rbac.Can(actor.Role, rbac.ActionPublish) {
		return store.Post{}, domainError(http.StatusForbidden, "FORBIDDEN", "role cannot publish posts", nil)
	}

	now := time.Now().UTC()
	post := store.Post{
		ID:               util.NewID("post"),
		Title:            input.Title,
		Slug:             slug,
		Status:           status,
		FeaturedImageURL: input.FeaturedImageURL,
		AuthorID:         input.AuthorID,
		Content:          input.Content,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertPost(ctx, post); err != nil {
		return store.Post{}, err
	}

	s.indexPost(post)
	s.notify("posts", "insert", post.ID)
	s.snapshot(ctx, post.ID, actor, "Create post")
	return post, nil
}

func (s *Service) GetPost(ctx context.Context, postID string) (store.Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Post{}, notFound("post not found")
		}
		return store.Post{}, err
	}
	return post, nil
}

func (s *Service) ListPosts(ctx context.Context, status string) ([]store.Post, error) {
	if status != "" && !validStatus(status) {
		return nil, validationError("invalid status filter", nil)
	}
	items, err := s.store.ListPosts(ctx, status)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Post{}
	}
	return items, nil
}

func (s *Service) UpdatePost(ctx context.Context, postID string, input UpdatePostInput, actor Session) (store.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return store.Post{}, err
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return store.Post{}, validationError("title cannot be empty", nil)
		}
		post.Title = *input.Title
	}
	if input.Slug != nil {
		slug := util.Slugify(*input.Slug)
		if slug == "" {
			return store.Post{}, validationError("slug cannot be empty", nil)
		}
		post.Slug = slug
	}
	if input.Status != nil {
		if !validStatus(*input.Status) {
			return store.Post{}, validationError("invalid status", map[string]any{"allowed": []string{store.PostStatusDraft, store.PostStatusPublished, store.PostStatusTrash}})
		}
		if *input.Status == store.PostStatusPublished && post.Status != store.PostStatusPublished && !rbac.Can(actor.Role, rbac.ActionPublish) {
			return store.Post{}, domainError(http.StatusForbidden, "FORBIDDEN", "role cannot publish posts", nil)
		}
		post.Status = *input.Status
	}
	if input.FeaturedImageURL != nil {
		post.FeaturedImageURL = *input.FeaturedImageURL
	}
	if input.Content != nil {
		post.Content = *input.Content
	}
	post.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Post{}, notFound("post not found")
		}
		return store.Post{}, err
	}

	s.indexPost(post)
	s.notify("posts", "update", post.ID)
	s.snapshot(ctx, post.ID, actor, "Update post")
	return post, nil
}

// TrashPost soft-deletes a post. Deleting a post that is already in the
// trash removes it for good, blocks and revision history included.
func (s *Service) TrashPost(ctx context.Context, postID string, actor Session) error {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}

	if post.Status == store.PostStatusTrash {
		if err := s.store.DeletePost(ctx, postID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("post not found")
			}
			return err
		}
		if s.revisions != nil {
			if err := s.revisions.Remove(postID); err != nil {
				log.Printf("app: remove revisions for %s: %v", postID, err)
			}
		}
	} else {
		if err := s.store.TrashPost(ctx, postID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("post not found")
			}
			return err
		}
		s.snapshot(ctx, postID, actor, "Move post to trash")
	}

	if s.search != nil {
		s.search.DeletePost(postID)
	}
	s.notify("posts", "delete", postID)
	return nil
}

// --- Blocks ---

type CreateBlockInput struct {
	Type     string          `json:"type"`
	Position *int            `json:"position"`
	Payload  json.RawMessage `json:"payload"`
}

func (s *Service) ListBlocks(ctx context.Context, postID string) ([]store.Block, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	items, err := s.store.ListBlocks(ctx, postID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Block{}
	}
	return items, nil
}

func (s *Service) CreateBlock(ctx context.Context, postID string, input CreateBlockInput, actor Session) (store.Block, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return store.Block{}, err
	}
	if input.Position == nil {
		return store.Block{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "position is required", nil)
	}
	if *input.Position < 0 {
		return store.Block{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "position cannot be negative", nil)
	}

	payload, err := blocks.Sanitize(input.Type, input.Payload)
	if err != nil {
		return store.Block{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), map[string]any{"known_types": blocks.KnownTypes()})
	}

	now := time.Now().UTC()
	created, err := s.store.InsertBlockAt(ctx, store.Block{
		ID:        util.NewID("blk"),
		PostID:    postID,
		Type:      input.Type,
		Position:  *input.Position,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return store.Block{}, err
	}

	s.notify("post_blocks", "insert", created.ID)
	s.snapshot(ctx, postID, actor, "Add block")
	return created, nil
}

func (s *Service) ReorderBlocks(ctx context.Context, postID string, blockIDs []string, actor Session) ([]store.Block, error) {
	if len(blockIDs) == 0 {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "blockIds cannot be empty", nil)
	}

	current, err := s.ListBlocks(ctx, postID)
	if err != nil {
		return nil, err
	}
	if len(blockIDs) != len(current) {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "blockIds must name every block of the post exactly once", nil)
	}
	known := make(map[string]bool, len(current))
	for _, b := range current {
		known[b.ID] = true
	}
	seen := make(map[string]bool, len(blockIDs))
	for _, id := range blockIDs {
		if !known[id] || seen[id] {
			return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "blockIds must name every block of the post exactly once", nil)
		}
		seen[id] = true
	}

	if err := s.store.ReorderBlocks(ctx, postID, blockIDs); err != nil {
		return nil, err
	}

	items, err := s.store.ListBlocks(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.notify("post_blocks", "update", postID)
	s.snapshot(ctx, postID, actor, "Reorder blocks")
	return items, nil
}

func (s *Service) UpdateBlock(ctx context.Context, blockID string, payload json.RawMessage, actor Session) (store.Block, error) {
	block, err := s.store.GetBlock(ctx, blockID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Block{}, notFound("block not found")
		}
		return store.Block{}, err
	}

	clean, err := blocks.Sanitize(block.Type, payload)
	if err != nil {
		return store.Block{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}

	updated, err := s.store.UpdateBlockPayload(ctx, blockID, clean)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Block{}, notFound("block not found")
		}
		return store.Block{}, err
	}

	s.notify("post_blocks", "update", blockID)
	s.snapshot(ctx, updated.PostID, actor, "Edit block")
	return updated, nil
}

func (s *Service) DeleteBlock(ctx context.Context, blockID string, actor Session) error {
	block, err := s.store.GetBlock(ctx, blockID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("block not found")
		}
		return err
	}

	if err := s.store.DeleteBlock(ctx, blockID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("block not found")
		}
		return err
	}

	s.notify("post_blocks", "delete", blockID)
	s.snapshot(ctx, block.PostID, actor, "Remove block")
	return nil
}

// --- Search, history, export ---

func (s *Service) SearchPosts(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) PostHistory(ctx context.Context, postID string, limit int) ([]revisions.CommitInfo, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	if s.revisions == nil {
		return []revisions.CommitInfo{}, nil
	}
	return s.revisions.History(postID, limit)
}

// PostRevision returns the snapshot recorded at one commit of the post's
// history.
func (s *Service) PostRevision(ctx context.Context, postID, hash string) (revisions.Snapshot, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return revisions.Snapshot{}, err
	}
	if s.revisions == nil {
		return revisions.Snapshot{}, notFound("revision not found")
	}
	snapshot, err := s.revisions.GetByHash(postID, hash)
	if err != nil {
		return revisions.Snapshot{}, notFound("revision not found")
	}
	return snapshot, nil
}

func (s *Service) ExportPost(ctx context.Context, postID string, format export.Format) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "export is not configured", nil)
	}
	result, err := s.exporter.Export(ctx, export.Request{PostID: postID, Format: format})
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			return nil, validationError("format must be pdf or html", nil)
		}
		if errors.Is(err, export.ErrContentUnavailable) {
			return nil, notFound("post not found")
		}
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "pdf renderer unavailable", nil)
		}
		return nil, err
	}
	return result, nil
}

// --- Share links ---

type CreateShareInput struct {
	Password  string `json:"password"`
	ExpiresIn int    `json:"expiresInHours"`
}

func (s *Service) CreateShareLink(ctx context.Context, postID string, input CreateShareInput, actor Session) (map[string]any, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	link := store.ShareLink{
		Token:     util.NewID("share"),
		PostID:    postID,
		CreatedBy: actor.UserID,
		CreatedAt: time.Now().UTC(),
	}
	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hashed := string(hash)
		link.PasswordHash = &hashed
	}
	if input.ExpiresIn > 0 {
		expires := time.Now().UTC().Add(time.Duration(input.ExpiresIn) * time.Hour)
		link.ExpiresAt = &expires
	}

	if err := s.store.InsertShareLink(ctx, link); err != nil {
		return nil, err
	}

	payload := map[string]any{"token": link.Token}
	if link.ExpiresAt != nil {
		payload["expiresAt"] = link.ExpiresAt
	}
	return payload, nil
}

// PublicShare resolves a share token into the rendered post. password comes
// from the request and is only checked when the link carries a hash.
func (s *Service) PublicShare(ctx context.Context, token, password string) (map[string]any, error) {
	link, err := s.store.GetShareLink(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("share link not found")
		}
		return nil, err
	}

	if link.RevokedAt != nil {
		return nil, domainError(http.StatusGone, "LINK_EXPIRED", "share link revoked", nil)
	}
	if link.ExpiresAt != nil && time.Now().After(*link.ExpiresAt) {
		return nil, domainError(http.StatusGone, "LINK_EXPIRED", "share link expired", nil)
	}
	if link.PasswordHash != nil {
		if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)); err != nil {
			return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "password required", nil)
		}
	}

	post, err := s.GetPost(ctx, link.PostID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListBlocks(ctx, link.PostID)
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchShareLink(ctx, token); err != nil {
		log.Printf("app: touch share link %s: %v", token, err)
	}

	return map[string]any{
		"post":   post,
		"blocks": list,
		"html":   export.BlocksToHTML(list),
	}, nil
}

// RevokeShareLink disables a preview link. The row stays for auditing; the
// public route reports the link as expired from now on.
func (s *Service) RevokeShareLink(ctx context.Context, token string) error {
	if _, err := s.store.GetShareLink(ctx, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("share link not found")
		}
		return err
	}
	return s.store.RevokeShareLink(ctx, token)
}

// --- Side effects ---

func (s *Service) indexPost(post store.Post) {
	if s.search == nil {
		return
	}
	s.search.IndexPost(search.PostRecord{
		ID:      post.ID,
		Title:   post.Title,
		Slug:    post.Slug,
		Status:  post.Status,
		Content: post.Content,
	})
}

func (s *Service) notify(table, action, id string) {
	if s.events == nil {
		return
	}
	s.events.Publish(realtime.Event{Table: table, Action: action, ID: id})
}

// snapshot records the post's current state in the revision log.
// Best-effort: a failed snapshot is logged, never surfaced.
func (s *Service) snapshot(ctx context.Context, postID string, actor Session, message string) {
	if s.revisions == nil {
		return
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return
	}
	list, err := s.store.ListBlocks(ctx, postID)
	if err != nil {
		log.Printf("app: snapshot blocks for %s: %v", postID, err)
		return
	}

	type blockSnap struct {
		ID       string          `json:"id"`
		Type     string          `json:"type"`
		Position int             `json:"position"`
		Payload  json.RawMessage `json:"payload"`
	}
	snaps := make([]blockSnap, 0, len(list))
	for _, b := range list {
		snaps = append(snaps, blockSnap{ID: b.ID, Type: b.Type, Position: b.Position, Payload: b.Payload})
	}
	raw, err := json.Marshal(snaps)
	if err != nil {
		return
	}

	author := actor.Name
	if author == "" {
		author = "system"
	}
	if _, err := s.revisions.Record(postID, revisions.Snapshot{
		Title:  post.Title,
		Slug:   post.Slug,
		Status: post.Status,
		Blocks: raw,
	}, author, message); err != nil {
		log.Printf("app: record revision for %s: %v", postID, err)
	}
}

// --- Media ---

func (s *Service) UploadMedia(ctx context.Context, r io.Reader, size int64, contentType string) (media.Upload, error) {
	if s.media == nil {
		return media.Upload{}, domainError(http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "media storage not configured", nil)
	}
	upload, err := s.media.Store(ctx, r, size, contentType)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			return media.Upload{}, validationError("unsupported media type", map[string]any{"accepted": []string{"image/jpeg", "image/png", "image/gif", "image/webp"}})
		}
		return media.Upload{}, err
	}
	return upload, nil
}

func (s *Service) RemoveMedia(ctx context.Context, key string) error {
	if s.media == nil {
		return domainError(http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "media storage not configured", nil)
	}
	if strings.TrimSpace(key) == "" {
		return validationError("key is required", nil)
	}
	return s.media.Remove(ctx, key)
}
