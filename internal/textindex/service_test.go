package textindex

import (
	"context"
	"testing"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/search"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

func newLocalService(t *testing.T) *Service {
	t.Helper()
	idx, err := search.NewIndex(search.NewEngine(search.DefaultConfig()), 16)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return NewService(nil, NewLocal(idx))
}

func seed(t *testing.T, svc *Service) {
	t.Helper()
	at := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	threads := []store.Thread{
		{
			ID:           "thr_1",
			Pointers:     pointer.List{pointer.TextRange{Document: "doc1", From: 0, To: 5}},
			Participants: []string{"alice"},
			Status:       store.StatusActive,
		},
		{
			ID:           "thr_2",
			Pointers:     pointer.List{pointer.ItemSection{Document: "doc2", SectionID: "risks"}},
			Participants: []string{"bob"},
			Status:       store.StatusResolved,
		},
	}
	comments := []store.Comment{
		{ID: "c1", ThreadID: "thr_1", EntityType: store.EntityThread, EntityID: "thr_1", AuthorID: "alice", Content: store.TextContent("Budget numbers look off"), Status: store.StatusActive, Timestamp: at},
		{ID: "c2", ThreadID: "thr_2", EntityType: store.EntityThread, EntityID: "thr_2", AuthorID: "bob", Content: store.TextContent("Timeline risk accepted"), Status: store.StatusActive, Timestamp: at},
	}
	quotes := []store.Quote{{ID: "q1", SourceDocument: "doc1", Text: "Quarterly budget plan", CreatedBy: "alice"}}
	svc.ReindexAll(threads, comments, quotes)
}

func TestLocalSearchFindsThreadsCommentsAndQuotes(t *testing.T) {
	svc := newLocalService(t)
	seed(t, svc)

	resp := svc.Search(Query{Text: "budget"})
	if resp.Backend != "local" {
		t.Fatalf("backend = %s", resp.Backend)
	}
	found := map[ResultType][]string{}
	for _, r := range resp.Results {
		found[r.Type] = append(found[r.Type], r.ID)
	}
	if len(found[ResultThread]) != 1 || found[ResultThread][0] != "thr_1" {
		t.Fatalf("threads = %v", found[ResultThread])
	}
	if len(found[ResultComment]) != 1 || found[ResultComment][0] != "c1" {
		t.Fatalf("comments = %v", found[ResultComment])
	}
	if len(found[ResultQuote]) != 1 || found[ResultQuote][0] != "q1" {
		t.Fatalf("quotes = %v", found[ResultQuote])
	}
}

func TestLocalSearchFilters(t *testing.T) {
	svc := newLocalService(t)
	seed(t, svc)

	cases := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "type", query: Query{Text: "budget", FilterType: ResultQuote}, want: []string{"q1"}},
		{name: "status", query: Query{Text: "timeline", Status: "resolved", FilterType: ResultThread}, want: []string{"thr_2"}},
		{name: "document", query: Query{Text: "timeline", DocumentID: "doc1"}, want: []string{}},
		{name: "empty query", query: Query{Text: " "}, want: []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := svc.Search(tc.query)
			got := []string{}
			for _, r := range resp.Results {
				got = append(got, r.ID)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("results = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("results = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestObserverKeepsIndexCurrent(t *testing.T) {
	svc := newLocalService(t)
	ctx := context.Background()
	thread := store.Thread{ID: "thr_9", Pointers: pointer.List{pointer.TextRange{Document: "doc9", From: 1, To: 2}}, Status: store.StatusActive}
	svc.ThreadChanged(ctx, thread)
	if resp := svc.Search(Query{Text: "migration"}); resp.Total != 0 {
		t.Fatalf("unexpected hits before comment: %+v", resp.Results)
	}

	svc.CommentAdded(ctx, store.Comment{ID: "c9", ThreadID: "thr_9", EntityType: store.EntityThread, EntityID: "thr_9", AuthorID: "carol", Content: store.TextContent("Migration plan needs owner"), Status: store.StatusActive})
	svc.ThreadChanged(ctx, thread)

	resp := svc.Search(Query{Text: "migration", FilterType: ResultComment})
	if resp.Total != 1 || resp.Results[0].ThreadID != "thr_9" || resp.Results[0].DocumentID != "doc9" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestPagination(t *testing.T) {
	results := []Result{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	if got := page(results, Query{Limit: 2, Offset: 1}); len(got) != 2 || got[0].ID != "b" {
		t.Fatalf("page = %+v", got)
	}
	if got := page(results, Query{Offset: 5}); len(got) != 0 {
		t.Fatalf("page past end = %+v", got)
	}
}

func TestLabelTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	if got := []rune(label(long + "\nsecond line")); len(got) != labelLength+1 {
		t.Fatalf("label length = %d", len(got))
	}
	if got := label("first\nsecond"); got != "first" {
		t.Fatalf("label = %q", got)
	}
}
