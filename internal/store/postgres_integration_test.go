package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("PP_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("PP_TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := applyDownMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply down migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply up migrations (pass 2): %v", err)
	}
}

func TestPostgresThreadLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewPostgresStore(db)

	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	thread := Thread{
		ID:           "thr_1",
		Pointers:     pointer.List{pointer.TextRange{Document: "doc1", From: 5, To: 12}},
		Participants: []string{},
		Status:       StatusActive,
		CreatedBy:    "alice",
		CreatedAt:    createdAt,
	}
	if err := s.UpsertThread(ctx, thread); err != nil {
		t.Fatalf("UpsertThread: %v", err)
	}
	rich, err := RichContent(json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"nice catch"}]}]}`))
	if err != nil {
		t.Fatalf("RichContent: %v", err)
	}
	comment := Comment{
		ID:         "cmt_1",
		ThreadID:   "thr_1",
		EntityType: EntityThread,
		EntityID:   "thr_1",
		AuthorID:   "alice",
		Content:    rich,
		Status:     StatusActive,
		Timestamp:  createdAt.Add(time.Minute),
	}
	if err := s.InsertComment(ctx, comment); err != nil {
		t.Fatalf("InsertComment: %v", err)
	}

	changed, err := s.ResolveThread(ctx, "thr_1", "bob", createdAt.Add(time.Hour))
	if err != nil || !changed {
		t.Fatalf("ResolveThread = %v, %v", changed, err)
	}
	changed, err = s.ResolveThread(ctx, "thr_1", "bob", createdAt.Add(2*time.Hour))
	if err != nil || changed {
		t.Fatalf("second ResolveThread = %v, %v; want false, nil", changed, err)
	}

	got, err := s.GetThread(ctx, "thr_1")
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if got.Status != StatusResolved || got.ResolvedBy != "bob" {
		t.Fatalf("thread = %+v", got)
	}
	if len(got.Pointers) != 1 || got.Pointers[0] != thread.Pointers[0] {
		t.Fatalf("pointers = %#v", got.Pointers)
	}

	comments, err := s.ListBaselineComments(ctx)
	if err != nil {
		t.Fatalf("ListBaselineComments: %v", err)
	}
	if len(comments) != 1 || comments[0].Content.PlainText() != "nice catch" || !comments[0].Content.IsRich() {
		t.Fatalf("comments = %+v", comments)
	}
}

func TestPostgresQuoteReferences(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewPostgresStore(db)

	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	quote := Quote{ID: "q1", EntityID: "quote:q1", SourceDocument: "doc1", SourceRange: pointer.Range{From: 0, To: 4}, Text: "Plan", CreatedBy: "alice", CreatedAt: createdAt}
	if err := s.InsertQuote(ctx, quote); err != nil {
		t.Fatalf("InsertQuote: %v", err)
	}
	position := 3
	ref := QuoteReference{ID: "ref_1", QuoteID: "q1", SourceDocument: "doc1", TargetDocument: "doc2", ReferenceType: ReferenceCitation, Position: &position, CreatedBy: "bob", CreatedAt: createdAt}
	if err := s.InsertQuoteReference(ctx, ref); err != nil {
		t.Fatalf("InsertQuoteReference: %v", err)
	}

	quotes, err := s.ListQuotes(ctx)
	if err != nil {
		t.Fatalf("ListQuotes: %v", err)
	}
	if diff := cmp.Diff([]Quote{quote}, quotes, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("quotes mismatch (-want +got):\n%s", diff)
	}
	refs, err := s.ListQuoteReferences(ctx)
	if err != nil {
		t.Fatalf("ListQuoteReferences: %v", err)
	}
	if len(refs) != 1 || refs[0].Position == nil || *refs[0].Position != 3 {
		t.Fatalf("refs = %+v", refs)
	}
	if err := s.DeleteQuoteReference(ctx, "ref_1"); err != nil {
		t.Fatalf("DeleteQuoteReference: %v", err)
	}
	refs, err = s.ListQuoteReferences(ctx)
	if err != nil || len(refs) != 0 {
		t.Fatalf("refs after delete = %+v, %v", refs, err)
	}
}

func applyDownMigrations(ctx context.Context, db *sql.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	pattern := regexp.MustCompile(`^(\d+)_.*\.down\.sql$`)
	var downs []string
	for _, entry := range entries {
		if !entry.IsDir() && pattern.MatchString(entry.Name()) {
			downs = append(downs, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	for _, name := range downs {
		sqlBytes, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(sqlBytes))
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			return err
		}
	}
	return nil
}
