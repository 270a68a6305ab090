// Package quotes indexes quote objects and the references other documents
// make to them.
package quotes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/util"
)

// Repository persists quotes and references. PostgresStore implements it.
type Repository interface {
	InsertQuote(ctx context.Context, quote store.Quote) error
	ListQuotes(ctx context.Context) ([]store.Quote, error)
	InsertQuoteReference(ctx context.Context, ref store.QuoteReference) error
	DeleteQuoteReference(ctx context.Context, referenceID string) error
	ListQuoteReferences(ctx context.Context) ([]store.QuoteReference, error)
}

type NewQuote struct {
	SourceDocument string
	SourceRange    pointer.Range
	Text           string
	CreatedBy      string
}

type ReferenceOptions struct {
	SourceDocument string
	ContextText    string
	Position       *int
}

type Index struct {
	repo  Repository
	now   func() time.Time
	newID func(prefix string) string

	mu     sync.RWMutex
	quotes map[string]store.Quote
	refs   map[string]store.QuoteReference
	// quote id -> reference ids in creation order
	byQuote map[string][]string
	// target document -> quote id -> live reference count
	byDocument map[string]map[string]int
}

type Option func(*Index)

func WithRepository(repo Repository) Option {
	return func(i *Index) { i.repo = repo }
}

func WithClock(now func() time.Time) Option {
	return func(i *Index) { i.now = now }
}

func WithIDGenerator(newID func(prefix string) string) Option {
	return func(i *Index) { i.newID = newID }
}

func New(opts ...Option) *Index {
	idx := &Index{
		now:        func() time.Time { return time.Now().UTC() },
		newID:      util.NewID,
		quotes:     map[string]store.Quote{},
		refs:       map[string]store.QuoteReference{},
		byQuote:    map[string][]string{},
		byDocument: map[string]map[string]int{},
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Load replaces the index contents with what the repository holds.
// References to unknown quotes are skipped.
func (i *Index) Load(ctx context.Context) error {
	if i.repo == nil {
		return nil
	}
	quotes, err := i.repo.ListQuotes(ctx)
	if err != nil {
		return fmt.Errorf("load quotes: %w", err)
	}
	refs, err := i.repo.ListQuoteReferences(ctx)
	if err != nil {
		return fmt.Errorf("load quote references: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.quotes = make(map[string]store.Quote, len(quotes))
	i.refs = make(map[string]store.QuoteReference, len(refs))
	i.byQuote = map[string][]string{}
	i.byDocument = map[string]map[string]int{}
	for _, q := range quotes {
		i.quotes[q.ID] = q
	}
	for _, ref := range refs {
		if _, ok := i.quotes[ref.QuoteID]; !ok {
			continue
		}
		i.addLocked(ref)
	}
	return nil
}

func (i *Index) CreateQuote(ctx context.Context, in NewQuote) (store.Quote, error) {
	const op = "quotes.CreateQuote"
	if strings.TrimSpace(in.SourceDocument) == "" {
		return store.Quote{}, apperr.Validation(op, "source document is required", nil)
	}
	if in.SourceRange.From < 0 || in.SourceRange.From >= in.SourceRange.To {
		return store.Quote{}, apperr.Validation(op, "invalid source range", map[string]any{
			"from": in.SourceRange.From,
			"to":   in.SourceRange.To,
		})
	}
	if strings.TrimSpace(in.Text) == "" {
		return store.Quote{}, apperr.Validation(op, "quote text is required", nil)
	}
	id := i.newID("quo")
	quote := store.Quote{
		ID:             id,
		EntityID:       store.EntityKey("quote", id),
		SourceDocument: in.SourceDocument,
		SourceRange:    in.SourceRange,
		Text:           in.Text,
		CreatedBy:      strings.TrimSpace(in.CreatedBy),
		CreatedAt:      i.now(),
	}
	if i.repo != nil {
		if err := i.repo.InsertQuote(ctx, quote); err != nil {
			return store.Quote{}, apperr.Storage(op, "persist quote", err)
		}
	}
	i.mu.Lock()
	i.quotes[quote.ID] = quote
	i.mu.Unlock()
	return quote, nil
}

func (i *Index) Quote(id string) (store.Quote, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	q, ok := i.quotes[id]
	return q, ok
}

// LookupQuote lets the index back the quote-object pointer adapter.
func (i *Index) LookupQuote(id string) (pointer.QuoteSnapshot, bool) {
	q, ok := i.Quote(id)
	if !ok {
		return pointer.QuoteSnapshot{}, false
	}
	return pointer.QuoteSnapshot{
		ID:             q.ID,
		EntityID:       q.EntityID,
		SourceDocument: q.SourceDocument,
		SourceRange:    q.SourceRange,
		Text:           q.Text,
	}, true
}

// Quotes returns every quote, oldest first.
func (i *Index) Quotes() []store.Quote {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]store.Quote, 0, len(i.quotes))
	for _, q := range i.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// CreateQuoteReference records that targetDocument refers to the quote.
func (i *Index) CreateQuoteReference(ctx context.Context, quoteID, targetDocument string, refType store.ReferenceType, userID string, opts ReferenceOptions) (store.QuoteReference, error) {
	const op = "quotes.CreateQuoteReference"
	details := map[string]any{"quoteId": quoteID, "targetDocument": targetDocument}
	if !refType.Valid() {
		details["referenceType"] = string(refType)
		return store.QuoteReference{}, apperr.Validation(op, "unknown reference type", details)
	}
	if strings.TrimSpace(targetDocument) == "" {
		return store.QuoteReference{}, apperr.Validation(op, "target document is required", details)
	}
	if opts.Position != nil && *opts.Position < 0 {
		return store.QuoteReference{}, apperr.Validation(op, "position must not be negative", details)
	}
	quote, ok := i.Quote(quoteID)
	if !ok {
		return store.QuoteReference{}, apperr.NotFound(op, "quote not found", details)
	}

	source := opts.SourceDocument
	if source == "" {
		source = quote.SourceDocument
	}
	ref := store.QuoteReference{
		ID:             i.newID("qref"),
		QuoteID:        quote.ID,
		SourceDocument: source,
		TargetDocument: targetDocument,
		ReferenceType:  refType,
		ContextText:    opts.ContextText,
		CreatedAt:      i.now(),
		CreatedBy:      strings.TrimSpace(userID),
	}
	if opts.Position != nil {
		pos := *opts.Position
		ref.Position = &pos
	}
	if i.repo != nil {
		if err := i.repo.InsertQuoteReference(ctx, ref); err != nil {
			return store.QuoteReference{}, apperr.Storage(op, "persist quote reference", err)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.quotes[quoteID]; !ok {
		return store.QuoteReference{}, apperr.NotFound(op, "quote not found", details)
	}
	i.addLocked(ref)
	return ref, nil
}

// RemoveQuoteReference drops the reference from both indices. Removing an
// unknown id reports false.
func (i *Index) RemoveQuoteReference(ctx context.Context, referenceID string) (bool, error) {
	i.mu.RLock()
	_, ok := i.refs[referenceID]
	i.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if i.repo != nil {
		if err := i.repo.DeleteQuoteReference(ctx, referenceID); err != nil {
			return false, apperr.Storage("quotes.RemoveQuoteReference", "delete quote reference", err)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	ref, ok := i.refs[referenceID]
	if !ok {
		return false, nil
	}
	delete(i.refs, referenceID)

	ids := i.byQuote[ref.QuoteID]
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != referenceID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		delete(i.byQuote, ref.QuoteID)
	} else {
		i.byQuote[ref.QuoteID] = kept
	}

	if docs := i.byDocument[ref.TargetDocument]; docs != nil {
		docs[ref.QuoteID]--
		if docs[ref.QuoteID] <= 0 {
			delete(docs, ref.QuoteID)
		}
		if len(docs) == 0 {
			delete(i.byDocument, ref.TargetDocument)
		}
	}
	return true, nil
}

func (i *Index) addLocked(ref store.QuoteReference) {
	i.refs[ref.ID] = ref
	i.byQuote[ref.QuoteID] = append(i.byQuote[ref.QuoteID], ref.ID)
	docs := i.byDocument[ref.TargetDocument]
	if docs == nil {
		docs = map[string]int{}
		i.byDocument[ref.TargetDocument] = docs
	}
	docs[ref.QuoteID]++
}

// QuoteReferences returns the quote's references in creation order.
func (i *Index) QuoteReferences(quoteID string) []store.QuoteReference {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]store.QuoteReference, 0, len(i.byQuote[quoteID]))
	for _, id := range i.byQuote[quoteID] {
		out = append(out, i.refs[id])
	}
	return out
}

// QuotesInDocument returns the quotes referenced from documentID, by id.
func (i *Index) QuotesInDocument(documentID string) []store.Quote {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]store.Quote, 0, len(i.byDocument[documentID]))
	for quoteID := range i.byDocument[documentID] {
		if q, ok := i.quotes[quoteID]; ok {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}
