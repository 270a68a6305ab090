package textindex

import (
	"sort"
	"strings"
	"sync"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/search"
)

const quoteParentPrefix = "quote:"

// Local implements Searcher on the in-process hierarchical engine. Threads
// are parents with their comments as children; quotes are childless parents.
type Local struct {
	index *search.Index

	mu       sync.Mutex
	threads  map[string]ThreadRecord
	comments map[string]CommentRecord
	quotes   map[string]QuoteRecord
	dirty    bool
}

func NewLocal(index *search.Index) *Local {
	return &Local{
		index:    index,
		threads:  map[string]ThreadRecord{},
		comments: map[string]CommentRecord{},
		quotes:   map[string]QuoteRecord{},
	}
}

// Healthy always returns true; the engine runs in process.
func (l *Local) Healthy() bool {
	return true
}

func (l *Local) PutThread(t ThreadRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.threads[t.ID] = t
	l.dirty = true
}

func (l *Local) PutComment(c CommentRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.comments[c.ID] = c
	l.dirty = true
}

func (l *Local) PutQuote(q QuoteRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quotes[q.ID] = q
	l.dirty = true
}

// rebuild pushes the records into the engine index when they changed since
// the last search.
func (l *Local) rebuild() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return
	}
	byThread := map[string][]search.Item{}
	commentIDs := make([]string, 0, len(l.comments))
	for id := range l.comments {
		commentIDs = append(commentIDs, id)
	}
	sort.Strings(commentIDs)
	for _, id := range commentIDs {
		c := l.comments[id]
		byThread[c.ThreadID] = append(byThread[c.ThreadID], search.Item{
			ID:             c.ID,
			Name:           c.Body,
			SearchableText: c.AuthorID,
		})
	}

	parents := make([]search.Parent, 0, len(l.threads)+len(l.quotes))
	threadIDs := make([]string, 0, len(l.threads))
	for id := range l.threads {
		threadIDs = append(threadIDs, id)
	}
	sort.Strings(threadIDs)
	for _, id := range threadIDs {
		t := l.threads[id]
		parents = append(parents, search.Parent{
			ID:             t.ID,
			Name:           t.Label,
			SearchableText: strings.Join(append(append([]string{}, t.Participants...), t.DocumentIDs...), " "),
			Children:       byThread[t.ID],
		})
	}
	quoteIDs := make([]string, 0, len(l.quotes))
	for id := range l.quotes {
		quoteIDs = append(quoteIDs, id)
	}
	sort.Strings(quoteIDs)
	for _, id := range quoteIDs {
		q := l.quotes[id]
		parents = append(parents, search.Parent{
			ID:             quoteParentPrefix + q.ID,
			Name:           q.Text,
			SearchableText: q.SourceDocument,
		})
	}
	l.index.Replace(parents)
	l.dirty = false
}

func (l *Local) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	l.rebuild()
	res := l.index.Search(q.Text)

	l.mu.Lock()
	results := make([]Result, 0, len(res.Parents)+len(res.Children))
	for _, p := range res.Parents {
		if id, ok := strings.CutPrefix(p.ID, quoteParentPrefix); ok {
			if quote, found := l.quotes[id]; found {
				results = append(results, Result{Type: ResultQuote, ID: quote.ID, Title: quote.Text, Snippet: quote.Text, DocumentID: quote.SourceDocument})
			}
			continue
		}
		if t, found := l.threads[p.ID]; found {
			results = append(results, Result{Type: ResultThread, ID: t.ID, ThreadID: t.ID, Title: t.Label, Snippet: t.Body, Status: t.Status, DocumentID: firstOf(t.DocumentIDs)})
		}
	}
	for _, m := range res.Children {
		c, found := l.comments[m.Child.ID]
		if !found {
			continue
		}
		r := Result{Type: ResultComment, ID: c.ID, ThreadID: c.ThreadID, Title: c.AuthorID, Snippet: c.Body, Status: c.Status}
		if t, ok := l.threads[c.ThreadID]; ok {
			r.DocumentID = firstOf(t.DocumentIDs)
		}
		results = append(results, r)
	}
	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if l.matchesFilters(r, q) {
			filtered = append(filtered, r)
		}
	}
	l.mu.Unlock()

	return page(filtered, q), len(filtered), nil
}

func (l *Local) matchesFilters(r Result, q Query) bool {
	if q.FilterType != "" && r.Type != q.FilterType {
		return false
	}
	if q.Status != "" && r.Type != ResultQuote && r.Status != q.Status {
		return false
	}
	if q.DocumentID == "" {
		return true
	}
	switch r.Type {
	case ResultQuote:
		return r.DocumentID == q.DocumentID
	default:
		t, ok := l.threads[r.ThreadID]
		if !ok {
			return false
		}
		for _, doc := range t.DocumentIDs {
			if doc == q.DocumentID {
				return true
			}
		}
		return false
	}
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
