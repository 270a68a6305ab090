package textindex

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

const labelLength = 80

// Service is the facade that tries Meilisearch first and falls back to the
// in-process engine.
type Service struct {
	meili *Meili
	local *Local
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, local *Local) *Service {
	return &Service{meili: meili, local: local}
}

// Search tries Meilisearch if healthy, otherwise falls back to the local engine.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		log.Printf("search: meilisearch error, falling back to local engine: %v", err)
	}

	results, total, err := s.local.Search(q)
	if err != nil {
		log.Printf("search: local engine error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "local"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "local"}
}

// ThreadChanged indexes the thread with the comments it holds so far.
func (s *Service) ThreadChanged(_ context.Context, thread store.Thread) {
	s.IndexThread(threadRecord(thread, s.threadBody(thread.ID)))
}

// CommentAdded indexes a new comment.
func (s *Service) CommentAdded(_ context.Context, comment store.Comment) {
	s.IndexComment(commentRecord(comment))
}

func (s *Service) threadBody(threadID string) string {
	s.local.mu.Lock()
	defer s.local.mu.Unlock()
	var comments []CommentRecord
	for _, c := range s.local.comments {
		if c.ThreadID == threadID {
			comments = append(comments, c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	parts := make([]string, 0, len(comments))
	for _, c := range comments {
		parts = append(parts, c.Body)
	}
	return strings.Join(parts, "\n")
}

// IndexThread indexes a thread locally and, fire-and-forget, in Meilisearch.
func (s *Service) IndexThread(t ThreadRecord) {
	s.local.PutThread(t)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexThread(t); err != nil {
			log.Printf("search: index thread %s: %v", t.ID, err)
		}
	}()
}

// IndexComment indexes a comment locally and, fire-and-forget, in Meilisearch.
func (s *Service) IndexComment(c CommentRecord) {
	s.local.PutComment(c)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexComment(c); err != nil {
			log.Printf("search: index comment %s: %v", c.ID, err)
		}
	}()
}

// IndexQuote indexes a quote locally and, fire-and-forget, in Meilisearch.
func (s *Service) IndexQuote(q store.Quote) {
	rec := QuoteRecord{ID: q.ID, Text: q.Text, SourceDocument: q.SourceDocument, CreatedBy: q.CreatedBy}
	s.local.PutQuote(rec)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexQuote(rec); err != nil {
			log.Printf("search: index quote %s: %v", rec.ID, err)
		}
	}()
}

// ReindexAll loads every entity into the local engine and pushes them to
// Meilisearch. Called during bootstrap.
func (s *Service) ReindexAll(threads []store.Thread, comments []store.Comment, quotes []store.Quote) {
	commentRecords := make([]CommentRecord, 0, len(comments))
	bodies := map[string][]string{}
	for _, c := range comments {
		rec := commentRecord(c)
		commentRecords = append(commentRecords, rec)
		s.local.PutComment(rec)
		if rec.ThreadID != "" {
			bodies[rec.ThreadID] = append(bodies[rec.ThreadID], rec.Body)
		}
	}
	threadRecords := make([]ThreadRecord, 0, len(threads))
	for _, t := range threads {
		rec := threadRecord(t, strings.Join(bodies[t.ID], "\n"))
		threadRecords = append(threadRecords, rec)
		s.local.PutThread(rec)
	}
	quoteRecords := make([]QuoteRecord, 0, len(quotes))
	for _, q := range quotes {
		rec := QuoteRecord{ID: q.ID, Text: q.Text, SourceDocument: q.SourceDocument, CreatedBy: q.CreatedBy}
		quoteRecords = append(quoteRecords, rec)
		s.local.PutQuote(rec)
	}

	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexThreads(threadRecords); err != nil {
		log.Printf("search: reindex threads: %v", err)
	}
	if err := s.meili.IndexComments(commentRecords); err != nil {
		log.Printf("search: reindex comments: %v", err)
	}
	if err := s.meili.IndexQuotes(quoteRecords); err != nil {
		log.Printf("search: reindex quotes: %v", err)
	}
}

// Close stops the Meilisearch health monitor.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func threadRecord(t store.Thread, body string) ThreadRecord {
	rec := ThreadRecord{
		ID:           t.ID,
		Label:        label(body),
		Body:         body,
		DocumentIDs:  []string{},
		PointerTypes: []string{},
		Participants: append([]string{}, t.Participants...),
		Status:       string(t.Status),
	}
	seenDocs := map[string]bool{}
	seenTypes := map[string]bool{}
	for _, p := range t.Pointers {
		if doc := p.DocumentID(); doc != "" && !seenDocs[doc] {
			seenDocs[doc] = true
			rec.DocumentIDs = append(rec.DocumentIDs, doc)
		}
		if typ := string(p.Type()); !seenTypes[typ] {
			seenTypes[typ] = true
			rec.PointerTypes = append(rec.PointerTypes, typ)
		}
	}
	return rec
}

func commentRecord(c store.Comment) CommentRecord {
	return CommentRecord{
		ID:        c.ID,
		ThreadID:  c.ThreadID,
		EntityKey: c.EntityKey(),
		AuthorID:  c.AuthorID,
		Body:      c.Content.PlainText(),
		Status:    string(c.Status),
	}
}

func label(body string) string {
	first, _, _ := strings.Cut(body, "\n")
	runes := []rune(strings.TrimSpace(first))
	if len(runes) > labelLength {
		return string(runes[:labelLength]) + "…"
	}
	return string(runes)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
