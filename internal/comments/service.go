// Package comments owns comment threads and the comments filed on them,
// independent of what a thread's pointers address.
package comments

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/commentstore"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/util"
)

// Observer is notified after a mutation is committed.
type Observer interface {
	ThreadChanged(ctx context.Context, thread store.Thread)
	CommentAdded(ctx context.Context, comment store.Comment)
}

// PointerValidator checks a pointer against live documents.
type PointerValidator interface {
	Validate(ctx context.Context, p pointer.Pointer) error
}

type Stats struct {
	TotalThreads     int `json:"totalThreads"`
	ActiveThreads    int `json:"activeThreads"`
	ResolvedThreads  int `json:"resolvedThreads"`
	TotalComments    int `json:"totalComments"`
	ResolutionEvents int `json:"resolutionEvents"`
}

type Service struct {
	store     *commentstore.Store
	now       func() time.Time
	newID     func(prefix string) string
	validator PointerValidator
	observers []Observer

	resolutions atomic.Int64
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func(prefix string) string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithValidator makes CreateThread, AttachPointer and ReplacePointer check
// pointers against live documents as well as structurally.
func WithValidator(v PointerValidator) Option {
	return func(s *Service) { s.validator = v }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, o) }
}

func New(st *commentstore.Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
		newID: util.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Store() *commentstore.Store {
	return s.store
}

// Observe registers o after construction.
func (s *Service) Observe(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Service) checkPointer(ctx context.Context, op string, p pointer.Pointer) error {
	if p == nil {
		return apperr.Validation(op, "pointer is required", nil)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if s.validator != nil {
		return s.validator.Validate(ctx, p)
	}
	return nil
}

// CreateThread opens an active thread anchored at p. It does not highlight
// anything; callers do that through the pointer adapter afterwards.
func (s *Service) CreateThread(ctx context.Context, p pointer.Pointer, createdBy string) (store.Thread, error) {
	const op = "comments.CreateThread"
	if err := s.checkPointer(ctx, op, p); err != nil {
		return store.Thread{}, err
	}
	thread := store.Thread{
		ID:           s.newID("thr"),
		Pointers:     pointer.List{p},
		Participants: []string{},
		Status:       store.StatusActive,
		CreatedBy:    strings.TrimSpace(createdBy),
		CreatedAt:    s.now(),
	}
	s.store.UpsertThread(thread)
	s.notifyThread(ctx, thread)
	return thread.Clone(), nil
}

// AddComment appends a comment to an existing thread and records the author
// as a participant.
func (s *Service) AddComment(ctx context.Context, threadID string, content store.Content, authorID string) (store.Comment, error) {
	const op = "comments.AddComment"
	details := map[string]any{"threadId": threadID}
	authorID = strings.TrimSpace(authorID)
	if content.IsEmpty() {
		return store.Comment{}, apperr.Validation(op, "content is required", details)
	}
	if authorID == "" {
		return store.Comment{}, apperr.Validation(op, "author is required", details)
	}

	var (
		comment store.Comment
		thread  store.Thread
	)
	err := s.store.Update(func(tx *commentstore.Tx) error {
		var ok bool
		thread, ok = tx.Thread(threadID)
		if !ok {
			return apperr.NotFound(op, "thread not found", details)
		}
		comment = store.Comment{
			ID:         s.newID("cmt"),
			ThreadID:   thread.ID,
			EntityType: store.EntityThread,
			EntityID:   thread.ID,
			AuthorID:   authorID,
			Content:    content,
			Status:     store.StatusActive,
			Timestamp:  s.now(),
		}
		tx.AppendComment(comment)
		if !thread.HasParticipant(authorID) {
			thread.Participants = append(thread.Participants, authorID)
			tx.PutThread(thread)
		}
		return nil
	})
	if err != nil {
		return store.Comment{}, err
	}
	s.notifyComment(ctx, comment)
	s.notifyThread(ctx, thread)
	return comment, nil
}

// ResolveThread marks the thread resolved. Resolving twice is a no-op and
// counts a single resolution event.
func (s *Service) ResolveThread(ctx context.Context, threadID, resolvedBy string) (store.Thread, error) {
	const op = "comments.ResolveThread"
	var (
		thread  store.Thread
		changed bool
	)
	err := s.store.Update(func(tx *commentstore.Tx) error {
		var ok bool
		thread, ok = tx.Thread(threadID)
		if !ok {
			return apperr.NotFound(op, "thread not found", map[string]any{"threadId": threadID})
		}
		if thread.Status == store.StatusResolved {
			return errNoChange
		}
		at := s.now()
		thread.Status = store.StatusResolved
		thread.ResolvedBy = strings.TrimSpace(resolvedBy)
		thread.ResolvedAt = &at
		tx.PutThread(thread)
		changed = true
		return nil
	})
	if err == errNoChange {
		return thread, nil
	}
	if err != nil {
		return store.Thread{}, err
	}
	if changed {
		s.resolutions.Add(1)
		s.notifyThread(ctx, thread)
	}
	return thread, nil
}

// AttachPointer anchors an existing thread at one more location.
func (s *Service) AttachPointer(ctx context.Context, threadID string, p pointer.Pointer) (store.Thread, error) {
	const op = "comments.AttachPointer"
	if err := s.checkPointer(ctx, op, p); err != nil {
		return store.Thread{}, err
	}
	return s.mutatePointers(ctx, op, threadID, func(pointers pointer.List) (pointer.List, bool) {
		if pointer.Contains(pointers, p) {
			return pointers, false
		}
		return append(pointers, p), true
	})
}

// ReplacePointer swaps old for next, e.g. after the anchored text moved.
func (s *Service) ReplacePointer(ctx context.Context, threadID string, old, next pointer.Pointer) (store.Thread, error) {
	const op = "comments.ReplacePointer"
	if old == nil {
		return store.Thread{}, apperr.Validation(op, "pointer to replace is required", nil)
	}
	if err := s.checkPointer(ctx, op, next); err != nil {
		return store.Thread{}, err
	}
	var missing bool
	thread, err := s.mutatePointers(ctx, op, threadID, func(pointers pointer.List) (pointer.List, bool) {
		out := make(pointer.List, 0, len(pointers))
		found := false
		for _, p := range pointers {
			switch {
			case p == old:
				found = true
				if !pointer.Contains(out, next) {
					out = append(out, next)
				}
			case p == next:
				if !pointer.Contains(out, next) {
					out = append(out, p)
				}
			default:
				out = append(out, p)
			}
		}
		if !found {
			missing = true
			return pointers, false
		}
		return out, true
	})
	if err != nil {
		return store.Thread{}, err
	}
	if missing {
		return store.Thread{}, apperr.NotFound(op, "pointer not attached to thread", map[string]any{"threadId": threadID})
	}
	return thread, nil
}

func (s *Service) mutatePointers(ctx context.Context, op, threadID string, fn func(pointer.List) (pointer.List, bool)) (store.Thread, error) {
	var thread store.Thread
	err := s.store.Update(func(tx *commentstore.Tx) error {
		var ok bool
		thread, ok = tx.Thread(threadID)
		if !ok {
			return apperr.NotFound(op, "thread not found", map[string]any{"threadId": threadID})
		}
		pointers, changed := fn(thread.Pointers)
		if !changed {
			return errNoChange
		}
		thread.Pointers = pointers
		tx.PutThread(thread)
		return nil
	})
	if err == errNoChange {
		return thread, nil
	}
	if err != nil {
		return store.Thread{}, err
	}
	s.notifyThread(ctx, thread)
	return thread, nil
}

func (s *Service) Thread(id string) (store.Thread, bool) {
	return s.store.Thread(id)
}

// Threads returns every thread, oldest first.
func (s *Service) Threads() []store.Thread {
	return s.store.Threads()
}

// ThreadsByPointerType returns threads with at least one pointer of type t.
func (s *Service) ThreadsByPointerType(t pointer.Type) []store.Thread {
	return s.filter(func(p pointer.Pointer) bool { return p.Type() == t })
}

// ThreadsForDocument returns threads anchored anywhere in documentID.
func (s *Service) ThreadsForDocument(documentID string) []store.Thread {
	return s.filter(func(p pointer.Pointer) bool { return p.DocumentID() == documentID })
}

func (s *Service) filter(match func(pointer.Pointer) bool) []store.Thread {
	out := make([]store.Thread, 0)
	for _, t := range s.store.Threads() {
		for _, p := range t.Pointers {
			if match(p) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// CommentsForThread returns comments sorted by timestamp, whatever order they
// were merged in.
func (s *Service) CommentsForThread(threadID string) []store.Comment {
	return s.store.CommentsFor(store.EntityThread, threadID)
}

func (s *Service) Stats() Stats {
	stats := Stats{ResolutionEvents: int(s.resolutions.Load())}
	s.store.View(func(state *commentstore.State) {
		stats.TotalThreads = len(state.Threads)
		for _, t := range state.Threads {
			if t.Status == store.StatusResolved {
				stats.ResolvedThreads++
			} else {
				stats.ActiveThreads++
			}
		}
		for key, comments := range state.CommentsByEntity {
			if strings.HasPrefix(key, store.EntityThread+":") {
				stats.TotalComments += len(comments)
			}
		}
	})
	return stats
}

// Participants returns every distinct participant across threads, sorted.
func (s *Service) Participants() []string {
	seen := map[string]struct{}{}
	for _, t := range s.store.Threads() {
		for _, p := range t.Participants {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *Service) notifyThread(ctx context.Context, thread store.Thread) {
	for _, o := range s.observers {
		o.ThreadChanged(ctx, thread.Clone())
	}
}

func (s *Service) notifyComment(ctx context.Context, comment store.Comment) {
	for _, o := range s.observers {
		o.CommentAdded(ctx, comment)
	}
}
