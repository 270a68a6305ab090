package pointer

import (
	"context"
	"log"
	"strings"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
)

// QuoteSnapshot is what the quote adapter needs to know about a quote.
type QuoteSnapshot struct {
	ID             string
	EntityID       string
	SourceDocument string
	SourceRange    Range
	Text           string
}

type QuoteLookup interface {
	LookupQuote(quoteID string) (QuoteSnapshot, bool)
}

// AnyDocumentProvider is implemented by providers that can find a document
// opened under any editor id. Quotes do not record the editor they came from.
type AnyDocumentProvider interface {
	AnyDocument(documentID string) (TextDocument, bool)
}

// QuoteAdapter resolves quote-object pointers. Highlighting and focus act on
// the quote's source range when its document is open.
type QuoteAdapter struct {
	quotes QuoteLookup
	docs   DocumentProvider
}

func NewQuoteAdapter(quotes QuoteLookup, docs DocumentProvider) *QuoteAdapter {
	return &QuoteAdapter{quotes: quotes, docs: docs}
}

func (a *QuoteAdapter) Type() Type { return TypeQuoteObject }

// ValidatePointer requires the quote to exist. A quote whose text has drifted
// from its source document is logged and still treated as valid.
func (a *QuoteAdapter) ValidatePointer(_ context.Context, p Pointer) bool {
	qo, ok := p.(QuoteObject)
	if !ok || qo.Validate() != nil {
		return false
	}
	quote, ok := a.quotes.LookupQuote(qo.QuoteID)
	if !ok {
		return false
	}
	if a.docs != nil {
		if doc, open := a.sourceDocument(quote.SourceDocument); open {
			live, err := doc.TextBetween(quote.SourceRange.From, quote.SourceRange.To)
			if err != nil || strings.TrimSpace(live) != strings.TrimSpace(quote.Text) {
				log.Printf("pointer: quote %s no longer matches %s[%d:%d]", quote.ID, quote.SourceDocument, quote.SourceRange.From, quote.SourceRange.To)
			}
		}
	}
	return true
}

func (a *QuoteAdapter) SerializePointer(p Pointer) (Record, error) {
	if _, ok := p.(QuoteObject); !ok {
		return nil, mismatch("SerializePointer", TypeQuoteObject, p)
	}
	return Marshal(p)
}

func (a *QuoteAdapter) DeserializePointer(record Record) (Pointer, error) {
	p, err := Unmarshal(record)
	if err != nil {
		return nil, err
	}
	if p.Type() != TypeQuoteObject {
		return nil, mismatch("DeserializePointer", TypeQuoteObject, p)
	}
	return p, nil
}

func (a *QuoteAdapter) HighlightPointer(_ context.Context, p Pointer, threadID string) error {
	quote, doc, err := a.source(p, "HighlightPointer")
	if err != nil || doc == nil {
		return err
	}
	return doc.SetHighlight(quote.SourceRange.From, quote.SourceRange.To, threadID)
}

func (a *QuoteAdapter) UnhighlightPointer(_ context.Context, p Pointer) error {
	quote, doc, err := a.source(p, "UnhighlightPointer")
	if err != nil || doc == nil {
		return err
	}
	return doc.ClearHighlight(quote.SourceRange.From, quote.SourceRange.To)
}

func (a *QuoteAdapter) FocusAtPointer(_ context.Context, p Pointer) error {
	quote, doc, err := a.source(p, "FocusAtPointer")
	if err != nil {
		return err
	}
	if doc == nil {
		return apperr.NotFound("pointer.FocusAtPointer", "quote source document is not open", map[string]any{"documentId": quote.SourceDocument})
	}
	return doc.Focus(quote.SourceRange.From, quote.SourceRange.To)
}

func (a *QuoteAdapter) GetContentAtPointer(_ context.Context, p Pointer) (string, bool) {
	qo, ok := p.(QuoteObject)
	if !ok {
		return "", false
	}
	quote, ok := a.quotes.LookupQuote(qo.QuoteID)
	if !ok {
		return "", false
	}
	return quote.Text, true
}

// source returns a nil document when the source is not open; highlighting is
// then a no-op because the quote itself carries no visual range.
func (a *QuoteAdapter) source(p Pointer, op string) (QuoteSnapshot, TextDocument, error) {
	qo, ok := p.(QuoteObject)
	if !ok {
		return QuoteSnapshot{}, nil, mismatch(op, TypeQuoteObject, p)
	}
	quote, ok := a.quotes.LookupQuote(qo.QuoteID)
	if !ok {
		return QuoteSnapshot{}, nil, apperr.NotFound("pointer."+op, "quote not found", map[string]any{"quoteId": qo.QuoteID})
	}
	if a.docs == nil {
		return quote, nil, nil
	}
	doc, open := a.sourceDocument(quote.SourceDocument)
	if !open {
		return quote, nil, nil
	}
	if quote.SourceRange.To > doc.Size() {
		return quote, nil, apperr.Validation("pointer."+op, "quote range outside source document", map[string]any{
			"quoteId": quote.ID,
			"size":    doc.Size(),
		})
	}
	return quote, doc, nil
}

func (a *QuoteAdapter) sourceDocument(documentID string) (TextDocument, bool) {
	if provider, ok := a.docs.(AnyDocumentProvider); ok {
		return provider.AnyDocument(documentID)
	}
	return a.docs.Document(documentID, "")
}
