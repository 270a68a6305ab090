package app

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/quotes"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/search"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

const (
	pickerTextLimit = 1000
	sectionPrefix   = "section:"
)

// PickerResponse answers a reference-picker query. Children is set for
// drill-down queries; Parents and Matches for global ones.
type PickerResponse struct {
	Query    string              `json:"query"`
	ParentID string              `json:"parentId,omitempty"`
	Parents  []search.Parent     `json:"parents"`
	Matches  []search.ChildMatch `json:"matches"`
	Version  uint64              `json:"version"`
}

// CreateQuote captures a quote. Missing text is read from the open source
// document.
func (s *Service) CreateQuote(ctx context.Context, actor Actor, in quotes.NewQuote) (store.Quote, error) {
	in.CreatedBy = actor.UserID
	if strings.TrimSpace(in.Text) == "" {
		if buffer, ok := s.workspace.Buffer(in.SourceDocument, ""); ok {
			if text, err := buffer.TextBetween(in.SourceRange.From, in.SourceRange.To); err == nil {
				in.Text = text
			}
		}
	}
	quote, err := s.quotes.CreateQuote(ctx, in)
	if err != nil {
		return store.Quote{}, err
	}
	if s.search != nil {
		s.search.IndexQuote(quote)
	}
	s.rebuildPicker()
	return quote, nil
}

func (s *Service) Quote(quoteID string) (store.Quote, error) {
	quote, ok := s.quotes.Quote(quoteID)
	if !ok {
		return store.Quote{}, apperr.NotFound("app.Quote", "quote not found", map[string]any{"quoteId": quoteID})
	}
	return quote, nil
}

func (s *Service) Quotes() []store.Quote {
	return s.quotes.Quotes()
}

func (s *Service) CreateQuoteReference(ctx context.Context, actor Actor, quoteID, targetDocument string, refType store.ReferenceType, opts quotes.ReferenceOptions) (store.QuoteReference, error) {
	return s.quotes.CreateQuoteReference(ctx, quoteID, targetDocument, refType, actor.UserID, opts)
}

func (s *Service) RemoveQuoteReference(ctx context.Context, referenceID string) error {
	removed, err := s.quotes.RemoveQuoteReference(ctx, referenceID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("app.RemoveQuoteReference", "reference not found", map[string]any{"referenceId": referenceID})
	}
	return nil
}

func (s *Service) QuoteReferences(quoteID string) []store.QuoteReference {
	return s.quotes.QuoteReferences(quoteID)
}

func (s *Service) QuotesInDocument(documentID string) []store.Quote {
	return s.quotes.QuotesInDocument(documentID)
}

func (s *Service) QuoteUsage(quoteID string) (quotes.Usage, error) {
	if _, err := s.Quote(quoteID); err != nil {
		return quotes.Usage{}, err
	}
	return s.quotes.AnalyzeQuoteUsage(quoteID), nil
}

func (s *Service) TrendingQuotes(limit int) []quotes.Trending {
	return s.quotes.TrendingQuotes(limit)
}

// Documents.

func (s *Service) OpenDocument(documentID, editorID, text string) error {
	if strings.TrimSpace(documentID) == "" {
		return apperr.Validation("app.OpenDocument", "document id is required", nil)
	}
	s.workspace.Open(documentID, editorID, text)
	s.rebuildPicker()
	return nil
}

// DocumentEdit is a single insertion (Text set) or deletion (Delete set).
type DocumentEdit struct {
	Pos    int    `json:"pos"`
	Text   string `json:"text,omitempty"`
	Delete int    `json:"delete,omitempty"`
}

// EditDocument applies one edit. Thread pointers are not remapped; ones that
// fall outside the document stop validating.
func (s *Service) EditDocument(documentID, editorID string, edit DocumentEdit) error {
	const op = "app.EditDocument"
	buffer, ok := s.workspace.Buffer(documentID, editorID)
	if !ok {
		return apperr.NotFound(op, "document is not open", map[string]any{"documentId": documentID})
	}
	var err error
	switch {
	case edit.Delete > 0:
		err = buffer.Delete(edit.Pos, edit.Pos+edit.Delete)
	case edit.Text != "":
		err = buffer.Insert(edit.Pos, edit.Text)
	default:
		return apperr.Validation(op, "edit must insert text or delete a range", nil)
	}
	if err != nil {
		return apperr.Validation(op, err.Error(), map[string]any{"documentId": documentID})
	}
	s.rebuildPicker()
	return nil
}

func (s *Service) CloseDocument(documentID, editorID string) {
	s.workspace.Close(documentID, editorID)
	s.rebuildPicker()
}

func (s *Service) PutItem(documentID string, sections map[string]string) error {
	if strings.TrimSpace(documentID) == "" {
		return apperr.Validation("app.PutItem", "item id is required", nil)
	}
	if len(sections) == 0 {
		return apperr.Validation("app.PutItem", "at least one section is required", map[string]any{"itemId": documentID})
	}
	s.workspace.PutItem(documentID, sections)
	s.rebuildPicker()
	return nil
}

// Reference picker.

// PickReferences searches documents, their sections and their quotes. With
// parentID it drills into one document.
func (s *Service) PickReferences(query, parentID string) (PickerResponse, error) {
	response := PickerResponse{Query: query, ParentID: parentID, Parents: []search.Parent{}, Matches: []search.ChildMatch{}}
	if parentID != "" {
		matches, ok := s.picker.SearchWithinParent(query, parentID)
		if !ok {
			return PickerResponse{}, apperr.NotFound("app.PickReferences", "document not found", map[string]any{"parentId": parentID})
		}
		response.Matches = append(response.Matches, matches...)
		response.Version = s.picker.Version()
		return response, nil
	}
	results := s.picker.Search(query)
	response.Parents = append(response.Parents, results.Parents...)
	response.Matches = append(response.Matches, results.Children...)
	response.Version = s.picker.Version()
	return response, nil
}

// Commands lists editor commands ordered for a command-picker query.
func (s *Service) Commands(query string) []search.Item {
	names := s.host.Commands()
	items := make([]search.Item, 0, len(names))
	for _, name := range names {
		items = append(items, search.Item{ID: name, Name: name})
	}
	return s.picker.Engine().SortByRelevance(items, query, search.ModeCascade)
}

func (s *Service) rebuildPicker() {
	s.pickerMu.Lock()
	defer s.pickerMu.Unlock()

	byDoc := map[string]*search.Parent{}
	parent := func(documentID string) *search.Parent {
		if p, ok := byDoc[documentID]; ok {
			return p
		}
		p := &search.Parent{ID: documentID, Name: documentID}
		byDoc[documentID] = p
		return p
	}

	for _, documentID := range s.workspace.DocumentIDs() {
		p := parent(documentID)
		if buffer, ok := s.workspace.Buffer(documentID, ""); ok {
			p.SearchableText = truncate(buffer.Text(), pickerTextLimit)
		}
	}
	for _, itemID := range s.workspace.ItemIDs() {
		p := parent(itemID)
		for _, sectionID := range s.workspace.Sections(itemID) {
			content, _ := s.workspace.SectionContent(itemID, sectionID)
			p.Children = append(p.Children, search.Item{
				ID:             sectionPrefix + sectionID,
				Name:           sectionID,
				SearchableText: truncate(content, pickerTextLimit),
			})
		}
	}
	for _, quote := range s.quotes.Quotes() {
		p := parent(quote.SourceDocument)
		p.Children = append(p.Children, search.Item{
			ID:             quote.EntityID,
			Name:           truncate(quote.Text, 80),
			SearchableText: quote.Text,
		})
	}

	parents := make([]search.Parent, 0, len(byDoc))
	for _, p := range byDoc {
		parents = append(parents, *p)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i].ID < parents[j].ID })
	s.picker.Replace(parents)
}

func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
