package quotes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

type fakeRepo struct {
	insertQuote     func(ctx context.Context, q store.Quote) error
	insertReference func(ctx context.Context, ref store.QuoteReference) error
	deleteReference func(ctx context.Context, id string) error
	quotes          []store.Quote
	refs            []store.QuoteReference
}

func (f *fakeRepo) InsertQuote(ctx context.Context, q store.Quote) error {
	if f.insertQuote != nil {
		return f.insertQuote(ctx, q)
	}
	f.quotes = append(f.quotes, q)
	return nil
}

func (f *fakeRepo) ListQuotes(context.Context) ([]store.Quote, error) { return f.quotes, nil }

func (f *fakeRepo) InsertQuoteReference(ctx context.Context, ref store.QuoteReference) error {
	if f.insertReference != nil {
		return f.insertReference(ctx, ref)
	}
	f.refs = append(f.refs, ref)
	return nil
}

func (f *fakeRepo) DeleteQuoteReference(ctx context.Context, id string) error {
	if f.deleteReference != nil {
		return f.deleteReference(ctx, id)
	}
	return nil
}

func (f *fakeRepo) ListQuoteReferences(context.Context) ([]store.QuoteReference, error) {
	return f.refs, nil
}

func newTestIndex(opts ...Option) *Index {
	seq := 0
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	opts = append([]Option{
		WithClock(func() time.Time { return base }),
		WithIDGenerator(func(prefix string) string {
			seq++
			return fmt.Sprintf("%s_%02d", prefix, seq)
		}),
	}, opts...)
	return New(opts...)
}

func mustQuote(t *testing.T, idx *Index, doc, text string) store.Quote {
	t.Helper()
	q, err := idx.CreateQuote(context.Background(), NewQuote{
		SourceDocument: doc,
		SourceRange:    pointer.Range{From: 0, To: len(text)},
		Text:           text,
		CreatedBy:      "alice",
	})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	return q
}

func TestCreateQuoteReferenceUnknownQuote(t *testing.T) {
	idx := newTestIndex()
	_, err := idx.CreateQuoteReference(context.Background(), "quo_missing", "doc2", store.ReferenceCitation, "bob", ReferenceOptions{})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestCreateQuoteReferenceValidation(t *testing.T) {
	idx := newTestIndex()
	q := mustQuote(t, idx, "doc1", "Plan the launch")
	negative := -1
	cases := []struct {
		name   string
		target string
		typ    store.ReferenceType
		opts   ReferenceOptions
	}{
		{name: "bad type", target: "doc2", typ: "endorsement"},
		{name: "empty target", target: " ", typ: store.ReferenceMention},
		{name: "negative position", target: "doc2", typ: store.ReferenceMention, opts: ReferenceOptions{Position: &negative}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := idx.CreateQuoteReference(context.Background(), q.ID, tc.target, tc.typ, "bob", tc.opts)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("error = %v", err)
			}
		})
	}
	if len(idx.QuoteReferences(q.ID)) != 0 {
		t.Fatalf("rejected references were indexed")
	}
}

func TestCreateAndRemoveKeepIndicesConsistent(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	q := mustQuote(t, idx, "doc1", "Plan the launch")

	ref, err := idx.CreateQuoteReference(ctx, q.ID, "doc2", store.ReferenceDiscussion, "bob", ReferenceOptions{ContextText: "see above"})
	if err != nil {
		t.Fatalf("CreateQuoteReference: %v", err)
	}
	if ref.SourceDocument != "doc1" {
		t.Fatalf("source document = %q", ref.SourceDocument)
	}
	if got := idx.QuotesInDocument("doc2"); len(got) != 1 || got[0].ID != q.ID {
		t.Fatalf("QuotesInDocument = %+v", got)
	}

	removed, err := idx.RemoveQuoteReference(ctx, ref.ID)
	if err != nil || !removed {
		t.Fatalf("RemoveQuoteReference = %v, %v", removed, err)
	}
	if got := idx.QuoteReferences(q.ID); len(got) != 0 {
		t.Fatalf("QuoteReferences after remove = %+v", got)
	}
	if got := idx.QuotesInDocument("doc2"); len(got) != 0 {
		t.Fatalf("QuotesInDocument after remove = %+v", got)
	}
	if removed, _ := idx.RemoveQuoteReference(ctx, ref.ID); removed {
		t.Fatalf("second remove reported true")
	}
}

func TestDocumentIndexCountsReferences(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	q := mustQuote(t, idx, "doc1", "Plan the launch")
	first, _ := idx.CreateQuoteReference(ctx, q.ID, "doc2", store.ReferenceMention, "bob", ReferenceOptions{})
	if _, err := idx.CreateQuoteReference(ctx, q.ID, "doc2", store.ReferenceCitation, "bob", ReferenceOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.RemoveQuoteReference(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if got := idx.QuotesInDocument("doc2"); len(got) != 1 {
		t.Fatalf("quote should stay indexed while another reference remains: %+v", got)
	}
}

func TestAnalyzeQuoteUsage(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	q := mustQuote(t, idx, "doc1", "Plan the launch")
	for _, target := range []struct {
		doc string
		typ store.ReferenceType
	}{
		{"doc2", store.ReferenceCitation},
		{"doc2", store.ReferenceMention},
		{"doc3", store.ReferenceCitation},
	} {
		if _, err := idx.CreateQuoteReference(ctx, q.ID, target.doc, target.typ, "bob", ReferenceOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	got := idx.AnalyzeQuoteUsage(q.ID)
	want := Usage{
		QuoteID:         q.ID,
		TotalReferences: 3,
		DocumentSpread:  2,
		ReferenceTypes:  map[store.ReferenceType]int{store.ReferenceCitation: 2, store.ReferenceMention: 1},
		PopularityScore: 40,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("usage mismatch (-want +got):\n%s", diff)
	}

	if empty := idx.AnalyzeQuoteUsage("quo_missing"); empty.PopularityScore != 0 || empty.TotalReferences != 0 {
		t.Fatalf("unknown quote usage = %+v", empty)
	}
}

func TestTrendingQuotes(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	quiet := mustQuote(t, idx, "doc1", "quiet")
	busy := mustQuote(t, idx, "doc1", "busy")
	tied := mustQuote(t, idx, "doc1", "tied")
	for _, doc := range []string{"doc2", "doc3"} {
		if _, err := idx.CreateQuoteReference(ctx, busy.ID, doc, store.ReferenceMention, "bob", ReferenceOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	got := idx.TrendingQuotes(0)
	order := []string{}
	for _, tr := range got {
		order = append(order, tr.Quote.ID)
	}
	if !cmp.Equal(order, []string{busy.ID, quiet.ID, tied.ID}) {
		t.Fatalf("trending order = %v", order)
	}
	if got[0].Usage.PopularityScore != 30 {
		t.Fatalf("busy score = %d", got[0].Usage.PopularityScore)
	}
	if limited := idx.TrendingQuotes(1); len(limited) != 1 || limited[0].Quote.ID != busy.ID {
		t.Fatalf("TrendingQuotes(1) = %+v", limited)
	}
}

func TestRepositoryFailureLeavesIndexUntouched(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	idx := newTestIndex(WithRepository(repo))
	q := mustQuote(t, idx, "doc1", "Plan")

	repo.insertReference = func(context.Context, store.QuoteReference) error { return errors.New("db down") }
	if _, err := idx.CreateQuoteReference(ctx, q.ID, "doc2", store.ReferenceMention, "bob", ReferenceOptions{}); !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("error = %v", err)
	}
	if len(idx.QuoteReferences(q.ID)) != 0 || len(idx.QuotesInDocument("doc2")) != 0 {
		t.Fatalf("failed write leaked into the index")
	}
}

func TestLoadFromRepository(t *testing.T) {
	at := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		quotes: []store.Quote{{ID: "q1", EntityID: "quote:q1", SourceDocument: "doc1", SourceRange: pointer.Range{From: 0, To: 4}, Text: "Plan", CreatedAt: at}},
		refs: []store.QuoteReference{
			{ID: "r1", QuoteID: "q1", TargetDocument: "doc2", ReferenceType: store.ReferenceMention, CreatedAt: at},
			{ID: "r2", QuoteID: "orphan", TargetDocument: "doc2", ReferenceType: store.ReferenceMention, CreatedAt: at},
		},
	}
	idx := newTestIndex(WithRepository(repo))
	if err := idx.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := idx.QuoteReferences("q1"); len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("QuoteReferences = %+v", got)
	}
	snap, ok := idx.LookupQuote("q1")
	if !ok || snap.Text != "Plan" || snap.SourceDocument != "doc1" {
		t.Fatalf("LookupQuote = %+v, %v", snap, ok)
	}
	if len(idx.QuoteReferences("orphan")) != 0 {
		t.Fatalf("orphan reference loaded")
	}
}

func TestCreateQuoteValidation(t *testing.T) {
	idx := newTestIndex()
	bad := []NewQuote{
		{SourceRange: pointer.Range{From: 0, To: 4}, Text: "Plan"},
		{SourceDocument: "doc1", SourceRange: pointer.Range{From: 4, To: 4}, Text: "Plan"},
		{SourceDocument: "doc1", SourceRange: pointer.Range{From: 0, To: 4}, Text: " "},
	}
	for _, in := range bad {
		if _, err := idx.CreateQuote(context.Background(), in); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("CreateQuote(%+v) error = %v", in, err)
		}
	}
	if len(idx.Quotes()) != 0 {
		t.Fatalf("invalid quotes were stored")
	}
}

var _ pointer.QuoteLookup = (*Index)(nil)
