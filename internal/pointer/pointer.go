// Package pointer models the locations a comment thread can attach to and
// the per-type adapters that resolve them against live documents.
package pointer

import (
	"strings"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
)

// Type is the tag that selects a pointer variant and its adapter.
type Type string

const (
	TypeTextRange   Type = "tiptap-text-range"
	TypeItemSection Type = "item-view-section"
	TypeQuoteObject Type = "quote-object"
)

// Pointer is a closed sum type; only the variants in this package implement it.
// Values are immutable: replace a pointer, never mutate one a thread holds.
type Pointer interface {
	Type() Type
	DocumentID() string
	Validate() error
	sealed()
}

// Range is a half-open [From, To) span of editor positions.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (r Range) Len() int {
	return r.To - r.From
}

// TextRange anchors to a span of text inside a rich-text editor.
type TextRange struct {
	Document string
	EditorID string
	From     int
	To       int
}

func (TextRange) Type() Type           { return TypeTextRange }
func (p TextRange) DocumentID() string { return p.Document }
func (TextRange) sealed()              {}

func (p TextRange) Range() Range {
	return Range{From: p.From, To: p.To}
}

func (p TextRange) Validate() error {
	if strings.TrimSpace(p.Document) == "" {
		return apperr.Validation("pointer.Validate", "documentId is required", map[string]any{"type": TypeTextRange})
	}
	if p.From < 0 || p.From >= p.To {
		return apperr.Validation("pointer.Validate", "invalid text range", map[string]any{
			"type": TypeTextRange,
			"from": p.From,
			"to":   p.To,
		})
	}
	return nil
}

// ItemSection anchors to a named section of an item view.
type ItemSection struct {
	Document  string
	SectionID string
}

func (ItemSection) Type() Type           { return TypeItemSection }
func (p ItemSection) DocumentID() string { return p.Document }
func (ItemSection) sealed()              {}

func (p ItemSection) Validate() error {
	if strings.TrimSpace(p.Document) == "" || strings.TrimSpace(p.SectionID) == "" {
		return apperr.Validation("pointer.Validate", "documentId and sectionId are required", map[string]any{
			"type":      TypeItemSection,
			"sectionId": p.SectionID,
		})
	}
	return nil
}

// QuoteObject anchors to a quote entity excerpted from a source document.
type QuoteObject struct {
	QuoteID        string
	EntityID       string
	SourceDocument string
	SourceRange    Range
}

func (QuoteObject) Type() Type           { return TypeQuoteObject }
func (p QuoteObject) DocumentID() string { return p.SourceDocument }
func (QuoteObject) sealed()              {}

func (p QuoteObject) Validate() error {
	if strings.TrimSpace(p.QuoteID) == "" || strings.TrimSpace(p.SourceDocument) == "" {
		return apperr.Validation("pointer.Validate", "quoteId and sourceDocument are required", map[string]any{
			"type":    TypeQuoteObject,
			"quoteId": p.QuoteID,
		})
	}
	if p.SourceRange.From < 0 || p.SourceRange.From > p.SourceRange.To {
		return apperr.Validation("pointer.Validate", "invalid quote source range", map[string]any{
			"type":  TypeQuoteObject,
			"range": p.SourceRange,
		})
	}
	return nil
}

// Contains reports whether list holds a pointer equal to p.
func Contains(list []Pointer, p Pointer) bool {
	for _, item := range list {
		if item == p {
			return true
		}
	}
	return false
}
