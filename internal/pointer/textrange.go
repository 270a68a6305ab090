package pointer

import (
	"context"
	"fmt"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
)

// TextDocument is the slice of a rich-text editor the text-range adapter needs.
type TextDocument interface {
	Size() int
	TextBetween(from, to int) (string, error)
	SetHighlight(from, to int, threadID string) error
	ClearHighlight(from, to int) error
	Focus(from, to int) error
}

// DocumentProvider finds the live document behind a pointer.
type DocumentProvider interface {
	Document(documentID, editorID string) (TextDocument, bool)
}

type TextRangeAdapter struct {
	docs DocumentProvider
}

func NewTextRangeAdapter(docs DocumentProvider) *TextRangeAdapter {
	return &TextRangeAdapter{docs: docs}
}

func (a *TextRangeAdapter) Type() Type { return TypeTextRange }

// ValidatePointer probes the live document: the range must lie inside its
// bounds and still resolve to text. No positional mapping is attempted.
func (a *TextRangeAdapter) ValidatePointer(_ context.Context, p Pointer) bool {
	tr, ok := p.(TextRange)
	if !ok || tr.Validate() != nil {
		return false
	}
	doc, ok := a.docs.Document(tr.Document, tr.EditorID)
	if !ok {
		return false
	}
	if tr.To > doc.Size() {
		return false
	}
	if _, err := doc.TextBetween(tr.From, tr.To); err != nil {
		return false
	}
	return true
}

func (a *TextRangeAdapter) SerializePointer(p Pointer) (Record, error) {
	if _, ok := p.(TextRange); !ok {
		return nil, mismatch("SerializePointer", TypeTextRange, p)
	}
	return Marshal(p)
}

func (a *TextRangeAdapter) DeserializePointer(record Record) (Pointer, error) {
	p, err := Unmarshal(record)
	if err != nil {
		return nil, err
	}
	if p.Type() != TypeTextRange {
		return nil, mismatch("DeserializePointer", TypeTextRange, p)
	}
	return p, nil
}

func (a *TextRangeAdapter) HighlightPointer(_ context.Context, p Pointer, threadID string) error {
	tr, doc, err := a.open(p, "HighlightPointer")
	if err != nil {
		return err
	}
	return doc.SetHighlight(tr.From, tr.To, threadID)
}

func (a *TextRangeAdapter) UnhighlightPointer(_ context.Context, p Pointer) error {
	tr, doc, err := a.open(p, "UnhighlightPointer")
	if err != nil {
		return err
	}
	return doc.ClearHighlight(tr.From, tr.To)
}

func (a *TextRangeAdapter) FocusAtPointer(_ context.Context, p Pointer) error {
	tr, doc, err := a.open(p, "FocusAtPointer")
	if err != nil {
		return err
	}
	return doc.Focus(tr.From, tr.To)
}

func (a *TextRangeAdapter) GetContentAtPointer(ctx context.Context, p Pointer) (string, bool) {
	if !a.ValidatePointer(ctx, p) {
		return "", false
	}
	tr := p.(TextRange)
	doc, _ := a.docs.Document(tr.Document, tr.EditorID)
	text, err := doc.TextBetween(tr.From, tr.To)
	if err != nil {
		return "", false
	}
	return text, true
}

func (a *TextRangeAdapter) open(p Pointer, op string) (TextRange, TextDocument, error) {
	tr, ok := p.(TextRange)
	if !ok {
		return TextRange{}, nil, mismatch(op, TypeTextRange, p)
	}
	doc, ok := a.docs.Document(tr.Document, tr.EditorID)
	if !ok {
		return TextRange{}, nil, apperr.NotFound("pointer."+op, "document is not open", map[string]any{"documentId": tr.Document})
	}
	if tr.Validate() != nil || tr.To > doc.Size() {
		return TextRange{}, nil, apperr.Validation("pointer."+op, "range outside document", map[string]any{
			"documentId": tr.Document,
			"from":       tr.From,
			"to":         tr.To,
			"size":       doc.Size(),
		})
	}
	return tr, doc, nil
}

func mismatch(op string, want Type, p Pointer) error {
	got := "nil"
	if p != nil {
		got = string(p.Type())
	}
	return apperr.Validation("pointer."+op, fmt.Sprintf("expected %s pointer", want), map[string]any{"type": got})
}
