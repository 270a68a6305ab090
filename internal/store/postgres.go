package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
)

// PostgresStore keeps the shared ("server") copy of threads, comments and
// quotes. The in-memory comment store layers local changes on top of it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListBaselineComments returns every stored comment, oldest first.
func (s *PostgresStore) ListBaselineComments(ctx context.Context) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(thread_id, ''), entity_type, entity_id, author_id, content_text, COALESCE(content_rich::text, ''), status, created_at
		FROM comments
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var (
			item Comment
			text string
			rich string
		)
		if err := rows.Scan(&item.ID, &item.ThreadID, &item.EntityType, &item.EntityID, &item.AuthorID, &text, &rich, &item.Status, &item.Timestamp); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		item.Content = Content{Text: text}
		if rich != "" {
			item.Content.Rich = json.RawMessage(rich)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	var rich any
	if comment.Content.IsRich() {
		rich = string(comment.Content.Rich)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, thread_id, entity_type, entity_id, author_id, content_text, content_rich, status, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7::jsonb, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, comment.ID, comment.ThreadID, comment.EntityType, comment.EntityID, comment.AuthorID, comment.Content.PlainText(), rich, string(comment.Status), comment.Timestamp)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertThread(ctx context.Context, thread Thread) error {
	pointersJSON, err := json.Marshal(thread.Pointers)
	if err != nil {
		return fmt.Errorf("encode thread pointers: %w", err)
	}
	participants := thread.Participants
	if participants == nil {
		participants = []string{}
	}
	participantsJSON, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("encode thread participants: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO comment_threads (id, pointers_json, participants_json, status, created_by, created_at, resolved_by, resolved_at)
		VALUES ($1, $2::jsonb, $3::jsonb, $4, $5, $6, NULLIF($7, ''), $8)
		ON CONFLICT (id) DO UPDATE SET
			pointers_json=EXCLUDED.pointers_json,
			participants_json=EXCLUDED.participants_json,
			status=EXCLUDED.status,
			resolved_by=COALESCE(comment_threads.resolved_by, EXCLUDED.resolved_by),
			resolved_at=COALESCE(comment_threads.resolved_at, EXCLUDED.resolved_at)
	`, thread.ID, string(pointersJSON), string(participantsJSON), string(thread.Status), thread.CreatedBy, thread.CreatedAt, thread.ResolvedBy, thread.ResolvedAt)
	if err != nil {
		return fmt.Errorf("upsert thread: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (Thread, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pointers_json::text, participants_json::text, status, created_by, created_at, COALESCE(resolved_by, ''), resolved_at
		FROM comment_threads
		WHERE id=$1
	`, threadID)
	return scanThread(row)
}

func (s *PostgresStore) ListThreads(ctx context.Context) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pointers_json::text, participants_json::text, status, created_by, created_at, COALESCE(resolved_by, ''), resolved_at
		FROM comment_threads
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	items := make([]Thread, 0)
	for rows.Next() {
		item, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return items, nil
}

// ResolveThread reports false when the thread was already resolved or missing.
func (s *PostgresStore) ResolveThread(ctx context.Context, threadID, resolvedBy string, resolvedAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comment_threads
		SET status='resolved', resolved_by=$2, resolved_at=$3
		WHERE id=$1 AND status <> 'resolved'
	`, threadID, resolvedBy, resolvedAt)
	if err != nil {
		return false, fmt.Errorf("resolve thread: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve thread rows: %w", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (Thread, error) {
	var (
		item         Thread
		pointersRaw  string
		participants string
		resolvedAt   sql.NullTime
	)
	if err := row.Scan(&item.ID, &pointersRaw, &participants, &item.Status, &item.CreatedBy, &item.CreatedAt, &item.ResolvedBy, &resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Thread{}, err
		}
		return Thread{}, fmt.Errorf("scan thread: %w", err)
	}
	var pointers pointer.List
	if err := json.Unmarshal([]byte(pointersRaw), &pointers); err != nil {
		return Thread{}, fmt.Errorf("decode thread %s pointers: %w", item.ID, err)
	}
	item.Pointers = pointers
	if err := json.Unmarshal([]byte(participants), &item.Participants); err != nil {
		return Thread{}, fmt.Errorf("decode thread %s participants: %w", item.ID, err)
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		item.ResolvedAt = &t
	}
	return item, nil
}

func (s *PostgresStore) InsertQuote(ctx context.Context, quote Quote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, entity_id, source_document, range_from, range_to, body, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, quote.ID, quote.EntityID, quote.SourceDocument, quote.SourceRange.From, quote.SourceRange.To, quote.Text, quote.CreatedBy, quote.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListQuotes(ctx context.Context) ([]Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, source_document, range_from, range_to, body, created_by, created_at
		FROM quotes
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	items := make([]Quote, 0)
	for rows.Next() {
		var item Quote
		if err := rows.Scan(&item.ID, &item.EntityID, &item.SourceDocument, &item.SourceRange.From, &item.SourceRange.To, &item.Text, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertQuoteReference(ctx context.Context, ref QuoteReference) error {
	var position sql.NullInt64
	if ref.Position != nil {
		position = sql.NullInt64{Int64: int64(*ref.Position), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quote_references (id, quote_id, source_document, target_document, reference_type, context_text, position, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, ref.ID, ref.QuoteID, ref.SourceDocument, ref.TargetDocument, string(ref.ReferenceType), ref.ContextText, position, ref.CreatedBy, ref.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quote reference: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteQuoteReference(ctx context.Context, referenceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM quote_references WHERE id=$1`, referenceID); err != nil {
		return fmt.Errorf("delete quote reference: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListQuoteReferences(ctx context.Context) ([]QuoteReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quote_id, source_document, target_document, reference_type, COALESCE(context_text, ''), position, created_by, created_at
		FROM quote_references
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list quote references: %w", err)
	}
	defer rows.Close()

	items := make([]QuoteReference, 0)
	for rows.Next() {
		var (
			item     QuoteReference
			position sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &item.QuoteID, &item.SourceDocument, &item.TargetDocument, &item.ReferenceType, &item.ContextText, &position, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quote reference: %w", err)
		}
		if position.Valid {
			p := int(position.Int64)
			item.Position = &p
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote references: %w", err)
	}
	return items, nil
}

// LoadComments makes the store usable as a baseline comment source.
func (s *PostgresStore) LoadComments(ctx context.Context) ([]Comment, error) {
	return s.ListBaselineComments(ctx)
}
