// Package blocks validates and normalizes the per-type payloads of post
// content blocks before they are stored.
package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pauta/api/internal/editor"
)

const (
	TypeRichText = "rich_text"
	TypeImage    = "image"
	TypeGif      = "gif"
	TypeYouTube  = "youtube"
	TypeColumns  = "columns"
)

var ErrUnknownType = errors.New("unknown block type")

func KnownTypes() []string {
	return []string{TypeRichText, TypeImage, TypeGif, TypeYouTube, TypeColumns}
}

// Sanitize checks a raw payload against the schema for blockType and returns
// the normalized payload with disallowed fields stripped. There is no partial
// acceptance: a malformed payload fails outright.
func Sanitize(blockType string, payload json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if len(payload) == 0 {
		return nil, errors.New("payload is required")
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, errors.New("payload must be a JSON object")
	}

	switch blockType {
	case TypeRichText:
		return sanitizeRichText(fields)
	case TypeImage:
		return sanitizeImage(fields)
	case TypeGif:
		return sanitizeGif(fields)
	case TypeYouTube:
		return sanitizeYouTube(fields)
	case TypeColumns:
		return sanitizeColumns(fields)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, blockType)
	}
}

func sanitizeRichText(fields map[string]json.RawMessage) (json.RawMessage, error) {
	text, ok, err := stringField(fields, "text")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("rich_text payload requires text")
	}
	return marshal(map[string]any{"text": text})
}

func sanitizeImage(fields map[string]json.RawMessage) (json.RawMessage, error) {
	url, ok, err := stringField(fields, "url")
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(url) == "" {
		return nil, errors.New("image payload requires url")
	}
	out := map[string]any{"url": url}
	if alt, ok, err := stringField(fields, "alt"); err != nil {
		return nil, err
	} else if ok {
		out["alt"] = alt
	}
	if caption, ok, err := stringField(fields, "caption"); err != nil {
		return nil, err
	} else if ok {
		out["caption"] = caption
	}
	return marshal(out)
}

func sanitizeGif(fields map[string]json.RawMessage) (json.RawMessage, error) {
	url, ok, err := stringField(fields, "url")
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(url) == "" {
		return nil, errors.New("gif payload requires url")
	}
	return marshal(map[string]any{"url": url})
}

func sanitizeYouTube(fields map[string]json.RawMessage) (json.RawMessage, error) {
	url, ok, err := stringField(fields, "url")
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(url) == "" {
		return nil, errors.New("youtube payload requires url")
	}
	out := map[string]any{"url": url}
	// Canonical id is derived here; an unextractable url is still stored and
	// renders as an inline error state in the editor.
	if id, found := editor.ExtractYouTubeID(url); found {
		out["videoId"] = id
	}
	return marshal(out)
}

func sanitizeColumns(fields map[string]json.RawMessage) (json.RawMessage, error) {
	raw, ok := fields["columns"]
	if !ok {
		return nil, errors.New("columns payload requires columns count")
	}
	var count int
	if err := json.Unmarshal(raw, &count); err != nil {
		return nil, errors.New("columns must be an integer")
	}
	if count < 2 || count > 4 {
		return nil, errors.New("columns must be between 2 and 4")
	}
	return marshal(map[string]any{"columns": count})
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool, error) {
	raw, ok := fields[key]
	if !ok {
		return "", false, nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false, fmt.Errorf("%s must be a string", key)
	}
	return value, true, nil
}

func marshal(out map[string]any) (json.RawMessage, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
