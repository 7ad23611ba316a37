// Package editor models the rich-text document as a closed set of typed
// nodes. Each kind owns its JSON record shape (ToRecord/FromRecord are
// lossless for the fields it owns) and a pure HTML rendering.
package editor

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

const (
	NodeDoc       = "doc"
	NodeParagraph = "paragraph"
	NodeQuote     = "quote"
	NodeText      = "text"
	NodeImage     = "image"
	NodeYouTube   = "youtube"
	NodeColumns   = "columns"
)

type Node interface {
	Type() string
	ToRecord() map[string]any
	Render() string
}

type Document struct {
	Children []Node
}

func (d *Document) Type() string { return NodeDoc }

func (d *Document) ToRecord() map[string]any {
	return map[string]any{"type": NodeDoc, "content": recordsOf(d.Children)}
}

func (d *Document) Render() string {
	return renderChildren(d.Children)
}

type Paragraph struct {
	Children []Node
}

func (p *Paragraph) Type() string { return NodeParagraph }

func (p *Paragraph) ToRecord() map[string]any {
	return map[string]any{"type": NodeParagraph, "content": recordsOf(p.Children)}
}

func (p *Paragraph) Render() string {
	return fmt.Sprintf("<p>%s</p>\n", renderChildren(p.Children))
}

type Quote struct {
	Children []Node
}

func (q *Quote) Type() string { return NodeQuote }

func (q *Quote) ToRecord() map[string]any {
	return map[string]any{"type": NodeQuote, "content": recordsOf(q.Children)}
}

func (q *Quote) Render() string {
	return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", renderChildren(q.Children))
}

type Text struct {
	Text string
}

func (t *Text) Type() string { return NodeText }

func (t *Text) ToRecord() map[string]any {
	return map[string]any{"type": NodeText, "text": t.Text}
}

func (t *Text) Render() string {
	return html.EscapeString(t.Text)
}

type Image struct {
	URL     string
	Alt     string
	Caption string
}

func (i *Image) Type() string { return NodeImage }

func (i *Image) ToRecord() map[string]any {
	record := map[string]any{"type": NodeImage, "url": i.URL}
	if i.Alt != "" {
		record["alt"] = i.Alt
	}
	if i.Caption != "" {
		record["caption"] = i.Caption
	}
	return record
}

func (i *Image) Render() string {
	img := fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(i.URL), html.EscapeString(i.Alt))
	if i.Caption == "" {
		return fmt.Sprintf("<figure>%s</figure>\n", img)
	}
	return fmt.Sprintf("<figure>%s<figcaption>%s</figcaption></figure>\n", img, html.EscapeString(i.Caption))
}

type YouTube struct {
	URL string
}

func (y *YouTube) Type() string { return NodeYouTube }

func (y *YouTube) ToRecord() map[string]any {
	return map[string]any{"type": NodeYouTube, "url": y.URL}
}

// Render embeds the video when a canonical id can be extracted, otherwise an
// inline error shell. An unparseable url never fails the document.
func (y *YouTube) Render() string {
	id, ok := ExtractYouTubeID(y.URL)
	if !ok {
		return fmt.Sprintf(`<div class="embed embed-error">Vídeo inválido: %s</div>`+"\n", html.EscapeString(y.URL))
	}
	return fmt.Sprintf(`<div class="embed"><iframe src="https://www.youtube.com/embed/%s" allowfullscreen></iframe></div>`+"\n", id)
}

// Columns holds a column count and renders empty column shells. Per-column
// content lives in the surrounding document tree, not in this node.
type Columns struct {
	Count int
}

func (c *Columns) Type() string { return NodeColumns }

func (c *Columns) ToRecord() map[string]any {
	return map[string]any{"type": NodeColumns, "columns": c.Count}
}

func (c *Columns) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="columns columns-%d">`, c.Count)
	for i := 0; i < c.Count; i++ {
		b.WriteString(`<div class="column"></div>`)
	}
	b.WriteString("</div>\n")
	return b.String()
}

// FromRecord rebuilds a node tree from its JSON record. Unknown type tags are
// an error: the node set is closed.
func FromRecord(record map[string]any) (Node, error) {
	nodeType, _ := record["type"].(string)
	switch nodeType {
	case NodeDoc:
		children, err := childrenOf(record)
		if err != nil {
			return nil, err
		}
		return &Document{Children: children}, nil
	case NodeParagraph:
		children, err := childrenOf(record)
		if err != nil {
			return nil, err
		}
		return &Paragraph{Children: children}, nil
	case NodeQuote:
		children, err := childrenOf(record)
		if err != nil {
			return nil, err
		}
		return &Quote{Children: children}, nil
	case NodeText:
		text, _ := record["text"].(string)
		return &Text{Text: text}, nil
	case NodeImage:
		url, _ := record["url"].(string)
		alt, _ := record["alt"].(string)
		caption, _ := record["caption"].(string)
		return &Image{URL: url, Alt: alt, Caption: caption}, nil
	case NodeYouTube:
		url, _ := record["url"].(string)
		return &YouTube{URL: url}, nil
	case NodeColumns:
		count := 2
		if raw, ok := record["columns"].(float64); ok {
			count = int(raw)
		}
		return &Columns{Count: count}, nil
	default:
		return nil, fmt.Errorf("unknown node type %q", nodeType)
	}
}

func childrenOf(record map[string]any) ([]Node, error) {
	raw, ok := record["content"].([]any)
	if !ok {
		return nil, nil
	}
	children := make([]Node, 0, len(raw))
	for _, item := range raw {
		childRecord, ok := item.(map[string]any)
		if !ok {
			continue
		}
		child, err := FromRecord(childRecord)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func recordsOf(children []Node) []any {
	records := make([]any, 0, len(children))
	for _, child := range children {
		records = append(records, child.ToRecord())
	}
	return records
}

func renderChildren(children []Node) string {
	var b strings.Builder
	for _, child := range children {
		b.WriteString(child.Render())
	}
	return b.String()
}

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?(?:[^&\s]*&)*v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{11})`),
}

// ExtractYouTubeID pulls the canonical 11-character video id out of the usual
// pasted URL forms.
func ExtractYouTubeID(url string) (string, bool) {
	for _, pattern := range youtubePatterns {
		if match := pattern.FindStringSubmatch(url); match != nil {
			return match[1], true
		}
	}
	return "", false
}
