package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"pauta/api/internal/blocks"
	"pauta/api/internal/editor"
	"pauta/api/internal/store"
)

// TemplateData holds the fields the document template renders.
type TemplateData struct {
	Title       string
	Author      string
	UpdatedAt   time.Time
	ContentHTML template.HTML
}

const documentTemplateHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: Georgia, 'Times New Roman', serif; max-width: 720px; margin: 2rem auto; color: #1a1a1a; line-height: 1.6; }
  h1 { font-size: 2rem; margin-bottom: 0.25rem; }
  .meta { color: #666; font-size: 0.875rem; margin-bottom: 2rem; }
  figure { margin: 1.5rem 0; }
  figure img { max-width: 100%; }
  figcaption { color: #666; font-size: 0.8125rem; margin-top: 0.25rem; }
  blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #444; }
  .embed { margin: 1.5rem 0; }
  .embed iframe { width: 100%; aspect-ratio: 16 / 9; border: 0; }
  .embed-error { background: #fef2f2; color: #991b1b; padding: 0.75rem 1rem; border-radius: 4px; }
  .columns { display: flex; gap: 1rem; }
  .column { flex: 1; }
  @media print { body { margin: 0; max-width: none; } }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">{{if .Author}}{{.Author}} &middot; {{end}}{{formatDate .UpdatedAt "02/01/2006"}}</div>
{{.ContentHTML}}
</body>
</html>
`

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(documentTemplateHTML))

// RenderPostHTML produces the full standalone HTML document for a post.
func RenderPostHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute document template: %w", err)
	}
	return buf.String(), nil
}

// BlocksToHTML renders an ordered block list as an HTML fragment. Malformed
// payloads render as inline error shells instead of failing the export.
func BlocksToHTML(list []store.Block) string {
	var sb strings.Builder
	for _, b := range list {
		node, err := blockToNode(b)
		if err != nil {
			sb.WriteString(`<div class="embed embed-error">Bloco inválido</div>` + "\n")
			continue
		}
		sb.WriteString(node.Render())
	}
	return sb.String()
}

func blockToNode(b store.Block) (editor.Node, error) {
	switch b.Type {
	case blocks.TypeRichText:
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(b.Payload, &payload); err != nil {
			return nil, err
		}
		return &editor.Paragraph{Children: []editor.Node{&editor.Text{Text: payload.Text}}}, nil

	case blocks.TypeImage:
		var payload struct {
			URL     string `json:"url"`
			Alt     string `json:"alt"`
			Caption string `json:"caption"`
		}
		if err := json.Unmarshal(b.Payload, &payload); err != nil {
			return nil, err
		}
		return &editor.Image{URL: payload.URL, Alt: payload.Alt, Caption: payload.Caption}, nil

	case blocks.TypeGif:
		var payload struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(b.Payload, &payload); err != nil {
			return nil, err
		}
		return &editor.Image{URL: payload.URL}, nil

	case blocks.TypeYouTube:
		var payload struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(b.Payload, &payload); err != nil {
			return nil, err
		}
		return &editor.YouTube{URL: payload.URL}, nil

	case blocks.TypeColumns:
		var payload struct {
			Count int `json:"columns"`
		}
		if err := json.Unmarshal(b.Payload, &payload); err != nil {
			return nil, err
		}
		return &editor.Columns{Count: payload.Count}, nil

	default:
		return nil, fmt.Errorf("unknown block type %q", b.Type)
	}
}
