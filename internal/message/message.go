// Package message handles chat message parsing: multimodal content
// extraction, transcript building, and attachment fetching. Everything here
// is a pure function over caller input apart from the URL downloads.
package message

import (
	"encoding/json"
	"fmt"
)

// Message is one turn of a conversation. Content accepts both the plain
// string form and the multimodal part-array form on the wire.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// ContentPart is one element of a multimodal content array.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an attachment reference: an http(s) URL or a data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// Content is either a plain string or a list of parts.
type Content struct {
	text       string
	parts      []ContentPart
	multimodal bool
}

// Text creates a plain-string content.
func Text(s string) Content { return Content{text: s} }

// Parts creates a multimodal content.
func Parts(parts ...ContentPart) Content {
	return Content{parts: parts, multimodal: true}
}

// Multimodal reports whether the content arrived as a part array.
func (c Content) Multimodal() bool { return c.multimodal }

// PartList returns the parts of a multimodal content, nil otherwise.
func (c Content) PartList() []ContentPart { return c.parts }

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Content{text: s}
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("content is neither string nor part array: %w", err)
	}
	*c = Content{parts: parts, multimodal: true}
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.multimodal {
		return json.Marshal(c.parts)
	}
	return json.Marshal(c.text)
}
