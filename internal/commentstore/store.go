// Package commentstore is the single mutable container for comments, threads
// and panel state. Every mutation runs under one lock so readers never see a
// thread without the comment that was added with it.
package commentstore

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

// State is a point-in-time copy of the store.
type State struct {
	CommentsByEntity  Snapshot
	Threads           map[string]store.Thread
	ActiveThreadID    string
	PanelVisible      bool
	HasUnsavedChanges bool
	LastSavedAt       *time.Time
	Version           uint64
}

type Store struct {
	mu    sync.RWMutex
	state State
}

func New() *Store {
	return &Store{state: State{
		CommentsByEntity: Snapshot{},
		Threads:          map[string]store.Thread{},
	}}
}

// Initialize replaces the store contents with the baseline overlaid by the
// locally persisted payload. Local threads replace baseline threads with the
// same id.
func (s *Store) Initialize(baseline Snapshot, baselineThreads []store.Thread, local *Payload) {
	threads := make(map[string]store.Thread, len(baselineThreads))
	for _, t := range baselineThreads {
		threads[t.ID] = t.Clone()
	}
	var localComments Snapshot
	if local != nil {
		localComments = local.Comments
		for _, t := range local.Threads {
			threads[t.ID] = t.Clone()
		}
	}
	comments := Merge(baseline, localComments)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CommentsByEntity = comments
	s.state.Threads = threads
	s.state.HasUnsavedChanges = false
	s.state.Version++
}

// Tx is the mutable view handed to Update.
type Tx struct {
	state *State
}

func (tx *Tx) Thread(id string) (store.Thread, bool) {
	t, ok := tx.state.Threads[id]
	if !ok {
		return store.Thread{}, false
	}
	return t.Clone(), true
}

func (tx *Tx) PutThread(t store.Thread) {
	tx.state.Threads[t.ID] = t.Clone()
}

// AppendComment files c under its entity key.
func (tx *Tx) AppendComment(c store.Comment) {
	key := c.EntityKey()
	tx.state.CommentsByEntity[key] = append(tx.state.CommentsByEntity[key], c)
}

func (tx *Tx) Comments(entityType, entityID string) []store.Comment {
	return sortedCopy(tx.state.CommentsByEntity[store.EntityKey(entityType, entityID)])
}

// Update runs fn against a working copy of the state and commits it only when
// fn returns nil. Commits mark the store as having unsaved changes.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state
	working.CommentsByEntity = make(Snapshot, len(s.state.CommentsByEntity))
	// Clipped so appends in fn never write into the committed arrays.
	for key, comments := range s.state.CommentsByEntity {
		working.CommentsByEntity[key] = comments[:len(comments):len(comments)]
	}
	working.Threads = make(map[string]store.Thread, len(s.state.Threads))
	for id, t := range s.state.Threads {
		working.Threads[id] = t
	}

	if err := fn(&Tx{state: &working}); err != nil {
		return err
	}
	working.HasUnsavedChanges = true
	working.Version++
	s.state = working
	return nil
}

// View runs fn with read access to the live state.
func (s *Store) View(fn func(state *State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

// State returns a deep copy.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.CommentsByEntity = s.state.CommentsByEntity.clone()
	out.Threads = make(map[string]store.Thread, len(s.state.Threads))
	for id, t := range s.state.Threads {
		out.Threads[id] = t.Clone()
	}
	if s.state.LastSavedAt != nil {
		at := *s.state.LastSavedAt
		out.LastSavedAt = &at
	}
	return out
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Version
}

// Payload returns what the persister writes.
func (s *Store) Payload() Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	threads := make([]store.Thread, 0, len(s.state.Threads))
	for _, t := range s.state.Threads {
		threads = append(threads, t.Clone())
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].ID < threads[j].ID })
	return Payload{
		Version:  SchemaVersion,
		Comments: s.state.CommentsByEntity.clone(),
		Threads:  threads,
	}
}

// Actions.

// updateUI changes view state only. The payload carries none of it, so the
// unsaved flag and Version stay as they are.
func (s *Store) updateUI(fn func(state *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

func (s *Store) SetActiveThread(threadID string) {
	s.updateUI(func(state *State) { state.ActiveThreadID = threadID })
}

// TogglePanel flips panel visibility and returns the new value.
func (s *Store) TogglePanel() bool {
	var visible bool
	s.updateUI(func(state *State) {
		state.PanelVisible = !state.PanelVisible
		visible = state.PanelVisible
	})
	return visible
}

func (s *Store) SetPanelVisible(visible bool) {
	s.updateUI(func(state *State) { state.PanelVisible = visible })
}

// AddComment files a comment under an arbitrary entity.
func (s *Store) AddComment(c store.Comment) error {
	const op = "commentstore.AddComment"
	details := map[string]any{"entityType": c.EntityType, "entityId": c.EntityID}
	switch {
	case strings.TrimSpace(c.ID) == "":
		return apperr.Validation(op, "comment id is required", details)
	case strings.TrimSpace(c.EntityType) == "" || strings.TrimSpace(c.EntityID) == "":
		return apperr.Validation(op, "entity type and id are required", details)
	case strings.TrimSpace(c.AuthorID) == "":
		return apperr.Validation(op, "author is required", details)
	case c.Content.IsEmpty():
		return apperr.Validation(op, "content is required", details)
	}
	if c.Status == "" {
		c.Status = store.StatusActive
	}
	return s.Update(func(tx *Tx) error {
		tx.AppendComment(c)
		return nil
	})
}

func (s *Store) UpsertThread(t store.Thread) {
	_ = s.Update(func(tx *Tx) error {
		tx.PutThread(t)
		return nil
	})
}

// CommentsFor returns the entity's comments sorted by timestamp.
func (s *Store) CommentsFor(entityType, entityID string) []store.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedCopy(s.state.CommentsByEntity[store.EntityKey(entityType, entityID)])
}

func (s *Store) Thread(id string) (store.Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.Threads[id]
	if !ok {
		return store.Thread{}, false
	}
	return t.Clone(), true
}

// Threads returns all threads ordered by creation time, then id.
func (s *Store) Threads() []store.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Thread, 0, len(s.state.Threads))
	for _, t := range s.state.Threads {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkSaved clears the unsaved flag unless the store changed after version.
func (s *Store) MarkSaved(version uint64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := at
	s.state.LastSavedAt = &saved
	if s.state.Version == version {
		s.state.HasUnsavedChanges = false
	}
}

func sortedCopy(comments []store.Comment) []store.Comment {
	out := append([]store.Comment{}, comments...)
	SortComments(out)
	return out
}
