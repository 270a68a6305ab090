package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Content is either plain text or a rich ProseMirror document.
type Content struct {
	Text string
	Rich json.RawMessage
}

func TextContent(text string) Content {
	return Content{Text: text}
}

// RichContent keeps the document and caches its plain text.
func RichContent(doc json.RawMessage) (Content, error) {
	text, err := richPlainText(doc)
	if err != nil {
		return Content{}, err
	}
	return Content{Text: text, Rich: append(json.RawMessage(nil), doc...)}, nil
}

func (c Content) IsRich() bool {
	return len(c.Rich) > 0
}

// PlainText is the searchable, displayable text of the content.
func (c Content) PlainText() string {
	return strings.TrimSpace(c.Text)
}

func (c Content) IsEmpty() bool {
	return c.PlainText() == ""
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsRich() {
		return c.Rich, nil
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*c = Content{Text: text}
		return nil
	}
	rich, err := RichContent(trimmed)
	if err != nil {
		return err
	}
	*c = rich
	return nil
}

// ProseMirrorNode is a node of a rich-content document.
type ProseMirrorNode struct {
	Type    string            `json:"type"`
	Attrs   map[string]any    `json:"attrs"`
	Content []ProseMirrorNode `json:"content"`
	Text    string            `json:"text"`
}

var blockNodes = map[string]struct{}{
	"paragraph":   {},
	"heading":     {},
	"listItem":    {},
	"blockquote":  {},
	"codeBlock":   {},
	"tableRow":    {},
	"hardBreak":   {},
	"bulletList":  {},
	"orderedList": {},
}

func richPlainText(doc json.RawMessage) (string, error) {
	var root ProseMirrorNode
	if err := json.Unmarshal(doc, &root); err != nil {
		return "", fmt.Errorf("decode rich content: %w", err)
	}
	if root.Type == "" {
		return "", fmt.Errorf("decode rich content: missing node type")
	}
	var b strings.Builder
	renderText(&b, root)
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func renderText(b *strings.Builder, node ProseMirrorNode) {
	switch node.Type {
	case "text":
		b.WriteString(node.Text)
		return
	case "mention", "quoteReference":
		if label, ok := node.Attrs["label"].(string); ok {
			b.WriteString(label)
		}
		return
	}
	for _, child := range node.Content {
		renderText(b, child)
	}
	if _, ok := blockNodes[node.Type]; ok {
		b.WriteString(" ")
	}
}
