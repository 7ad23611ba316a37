package export

import (
	"context"
	"fmt"
	"html/template"

	"pauta/api/internal/store"
)

// DataStore is the subset of storage the exporter needs.
type DataStore interface {
	GetPost(ctx context.Context, id string) (store.Post, error)
	ListBlocks(ctx context.Context, postID string) ([]store.Block, error)
}

// Service renders posts into downloadable files.
type Service struct {
	store DataStore
}

func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export loads the post and its ordered blocks and produces the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	post, err := s.store.GetPost(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	list, err := s.store.ListBlocks(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	data := TemplateData{
		Title:       post.Title,
		Author:      post.AuthorID,
		UpdatedAt:   post.UpdatedAt,
		ContentHTML: template.HTML(BlocksToHTML(list)),
	}

	html, err := RenderPostHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, post.Title)
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(post.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
