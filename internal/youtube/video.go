package youtube

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Video is a videos.list resource. Every field the API returned is kept
// verbatim so persisted artifacts round-trip fields this package does not
// model; ID and the snippet text are decoded for convenience.
type Video struct {
	ID          string
	Title       string
	Description string
	PublishedAt string

	fields map[string]json.RawMessage
}

type videoSnippet struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PublishedAt string `json:"publishedAt"`
}

// UnmarshalJSON decodes a video resource, keeping unknown fields.
func (v *Video) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("video resource is null")
	}
	var id string
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("decode video id: %w", err)
		}
	}
	var snippet videoSnippet
	if raw, ok := fields["snippet"]; ok {
		if err := json.Unmarshal(raw, &snippet); err != nil {
			return fmt.Errorf("decode video snippet: %w", err)
		}
	}
	*v = Video{
		ID:          id,
		Title:       snippet.Title,
		Description: snippet.Description,
		PublishedAt: snippet.PublishedAt,
		fields:      fields,
	}
	return nil
}

// MarshalJSON re-emits the original resource plus any fields added with Set.
func (v Video) MarshalJSON() ([]byte, error) {
	if v.fields == nil {
		return json.Marshal(map[string]any{
			"id": v.ID,
			"snippet": videoSnippet{
				Title:       v.Title,
				Description: v.Description,
				PublishedAt: v.PublishedAt,
			},
		})
	}
	return json.Marshal(v.fields)
}

// Set returns a copy of v with key set to value. The receiver is not
// modified, so a persisted video is never mutated in place.
func (v Video) Set(key string, value any) (Video, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return v, fmt.Errorf("encode %s: %w", key, err)
	}
	base := v.fields
	if base == nil {
		encoded, err := v.MarshalJSON()
		if err != nil {
			return v, err
		}
		if err := json.Unmarshal(encoded, &base); err != nil {
			return v, err
		}
	}
	fields := make(map[string]json.RawMessage, len(base)+1)
	for k, val := range base {
		fields[k] = val
	}
	fields[key] = raw
	out := v
	out.fields = fields
	return out, nil
}

// Field decodes the top-level field key into dst. It reports false when the
// field is absent.
func (v Video) Field(key string, dst any) (bool, error) {
	raw, ok := v.fields[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
