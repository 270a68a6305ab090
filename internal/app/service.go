package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/auth"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/authpw"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/comments"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/commentstore"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/editor"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/email"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/export"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/quotes"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/rbac"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/search"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/textindex"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/util"
)

// Actor is the caller of an operation.
type Actor struct {
	UserID string    `json:"userId"`
	Name   string    `json:"name"`
	Role   rbac.Role `json:"role"`
}

// Baseline is the shared copy of threads and comments, usually Postgres.
type Baseline interface {
	Ping(ctx context.Context) error
	ListThreads(ctx context.Context) ([]store.Thread, error)
	UpsertThread(ctx context.Context, thread store.Thread) error
	InsertComment(ctx context.Context, comment store.Comment) error
}

// Deps wires the service. Baseline, Persister, Issuer, Directory, Mail and
// Meilisearch (inside Search) are optional. Mail needs Directory for
// addresses.
type Deps struct {
	Baseline    Baseline
	Sources     []commentstore.Source
	Persister   *commentstore.Persister
	Quotes      *quotes.Index
	Search      *textindex.Service
	Picker      *search.Index
	Workspace   *editor.Workspace
	Registry    *pointer.Registry
	Issuer      *auth.Issuer
	Directory   *authpw.Directory
	Mail        *email.Service
	DefaultRole string
	Now         func() time.Time
	// NewID mints thread, comment and quote ids. Defaults to util.NewID.
	NewID func(prefix string) string
}

type Service struct {
	baseline  Baseline
	sources   []commentstore.Source
	persister *commentstore.Persister
	store     *commentstore.Store
	comments  *comments.Service
	quotes    *quotes.Index
	search    *textindex.Service
	picker    *search.Index
	workspace *editor.Workspace
	registry  *pointer.Registry
	host      *editor.Host
	issuer    *auth.Issuer
	directory *authpw.Directory

	defaultRole rbac.Role
	now         func() time.Time
	newID       func(prefix string) string

	// serializes persistence so snapshots land in version order
	saveMu   sync.Mutex
	pickerMu sync.Mutex
}

type ThreadView struct {
	store.Thread
	Comments []store.Comment `json:"comments"`
}

type ThreadFilter struct {
	DocumentID  string
	PointerType pointer.Type
	Status      store.Status
}

// UIState is the panel state shared by every open view.
type UIState struct {
	ActiveThreadID    string     `json:"activeThreadId,omitempty"`
	PanelVisible      bool       `json:"panelVisible"`
	HasUnsavedChanges bool       `json:"hasUnsavedChanges"`
	LastSavedAt       *time.Time `json:"lastSavedAt,omitempty"`
	Version           uint64     `json:"version"`
}

type PublishResult struct {
	Threads  int `json:"threads"`
	Comments int `json:"comments"`
}

func New(d Deps) (*Service, error) {
	if d.NewID == nil {
		d.NewID = util.NewID
	}
	if d.Workspace == nil {
		d.Workspace = editor.NewWorkspace()
	}
	if d.Quotes == nil {
		d.Quotes = quotes.New(quotes.WithIDGenerator(d.NewID))
	}
	if d.Registry == nil {
		d.Registry = NewRegistry(d.Workspace, d.Quotes)
	}
	if d.Picker == nil {
		picker, err := search.NewIndex(search.NewEngine(search.DefaultConfig()), 0)
		if err != nil {
			return nil, fmt.Errorf("create picker index: %w", err)
		}
		d.Picker = picker
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}

	st := commentstore.New()
	opts := []comments.Option{
		comments.WithValidator(d.Registry),
		comments.WithClock(d.Now),
		comments.WithIDGenerator(d.NewID),
	}
	if d.Search != nil {
		opts = append(opts, comments.WithObserver(d.Search))
	}

	s := &Service{
		baseline:    d.Baseline,
		sources:     d.Sources,
		persister:   d.Persister,
		store:       st,
		comments:    comments.New(st, opts...),
		quotes:      d.Quotes,
		search:      d.Search,
		picker:      d.Picker,
		workspace:   d.Workspace,
		registry:    d.Registry,
		host:        editor.NewHost(),
		issuer:      d.Issuer,
		directory:   d.Directory,
		defaultRole: rbac.Normalize(d.DefaultRole),
		now:         d.Now,
		newID:       d.NewID,
	}
	if d.Mail != nil && d.Directory != nil && d.Mail.IsConfigured() {
		s.comments.Observe(email.NewReplyNotifier(d.Mail, s.comments, d.Directory))
	}
	for _, plugin := range []editor.Plugin{&CommentsPlugin{svc: s}, &ReferencesPlugin{svc: s}} {
		if err := s.host.RegisterPlugin(plugin); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewRegistry registers the three pointer adapters over a workspace.
func NewRegistry(ws *editor.Workspace, quoteIndex *quotes.Index) *pointer.Registry {
	registry := pointer.NewRegistry()
	registry.Register(pointer.NewTextRangeAdapter(ws))
	registry.Register(pointer.NewItemSectionAdapter(ws))
	registry.Register(pointer.NewQuoteAdapter(quoteIndex, ws))
	return registry
}

// Bootstrap loads the baseline, overlays the locally persisted payload and
// builds the search indexes.
func (s *Service) Bootstrap(ctx context.Context) error {
	var baseline []store.Comment
	for _, source := range s.sources {
		items, err := source.LoadComments(ctx)
		if err != nil {
			return fmt.Errorf("load baseline comments: %w", err)
		}
		baseline = append(baseline, items...)
	}

	var threads []store.Thread
	if s.baseline != nil {
		var err error
		threads, err = s.baseline.ListThreads(ctx)
		if err != nil {
			return fmt.Errorf("load baseline threads: %w", err)
		}
	}

	var local *commentstore.Payload
	if s.persister != nil {
		local = s.persister.Load(ctx)
	}
	s.store.Initialize(commentstore.Group(baseline), threads, local)

	if err := s.quotes.Load(ctx); err != nil {
		return fmt.Errorf("load quotes: %w", err)
	}

	state := s.store.State()
	if s.search != nil {
		s.search.ReindexAll(s.store.Threads(), flatten(state.CommentsByEntity), s.quotes.Quotes())
	}
	s.rebuildPicker()
	log.Printf("app: bootstrapped %d threads, %d comments, %d quotes", len(state.Threads), state.CommentsByEntity.Count(), len(s.quotes.Quotes()))
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	if s.baseline == nil {
		return nil
	}
	return s.baseline.Ping(ctx)
}

func (s *Service) Host() *editor.Host {
	return s.host
}

func (s *Service) Workspace() *editor.Workspace {
	return s.workspace
}

// Threads and comments.

func (s *Service) CreateThread(ctx context.Context, actor Actor, p pointer.Pointer, initial *store.Content) (ThreadView, error) {
	thread, err := s.comments.CreateThread(ctx, p, actor.UserID)
	if err != nil {
		return ThreadView{}, err
	}
	if err := s.registry.Highlight(ctx, p, thread.ID); err != nil {
		log.Printf("app: highlight thread %s: %v", thread.ID, err)
	}
	if initial != nil && !initial.IsEmpty() {
		if _, err := s.comments.AddComment(ctx, thread.ID, *initial, actor.UserID); err != nil {
			return ThreadView{}, err
		}
	}
	s.store.SetActiveThread(thread.ID)
	s.save(ctx)
	return s.threadView(thread.ID)
}

func (s *Service) AddComment(ctx context.Context, actor Actor, threadID string, content store.Content) (store.Comment, error) {
	comment, err := s.comments.AddComment(ctx, threadID, content, actor.UserID)
	if err != nil {
		return store.Comment{}, err
	}
	s.save(ctx)
	return comment, nil
}

// ResolveThread resolves the thread and removes its highlights.
func (s *Service) ResolveThread(ctx context.Context, actor Actor, threadID string) (ThreadView, error) {
	thread, err := s.comments.ResolveThread(ctx, threadID, actor.UserID)
	if err != nil {
		return ThreadView{}, err
	}
	for _, p := range thread.Pointers {
		if err := s.registry.Unhighlight(ctx, p); err != nil {
			log.Printf("app: unhighlight thread %s: %v", thread.ID, err)
		}
	}
	if state := s.store.State(); state.ActiveThreadID == thread.ID {
		s.store.SetActiveThread("")
	}
	s.save(ctx)
	return s.threadView(thread.ID)
}

func (s *Service) AttachPointer(ctx context.Context, threadID string, p pointer.Pointer) (ThreadView, error) {
	thread, err := s.comments.AttachPointer(ctx, threadID, p)
	if err != nil {
		return ThreadView{}, err
	}
	if thread.Status == store.StatusActive {
		if err := s.registry.Highlight(ctx, p, thread.ID); err != nil {
			log.Printf("app: highlight thread %s: %v", thread.ID, err)
		}
	}
	s.save(ctx)
	return s.threadView(thread.ID)
}

func (s *Service) ReplacePointer(ctx context.Context, threadID string, old, next pointer.Pointer) (ThreadView, error) {
	thread, err := s.comments.ReplacePointer(ctx, threadID, old, next)
	if err != nil {
		return ThreadView{}, err
	}
	if err := s.registry.Unhighlight(ctx, old); err != nil {
		log.Printf("app: unhighlight thread %s: %v", thread.ID, err)
	}
	if thread.Status == store.StatusActive {
		if err := s.registry.Highlight(ctx, next, thread.ID); err != nil {
			log.Printf("app: highlight thread %s: %v", thread.ID, err)
		}
	}
	s.save(ctx)
	return s.threadView(thread.ID)
}

func (s *Service) Thread(threadID string) (ThreadView, error) {
	return s.threadView(threadID)
}

func (s *Service) threadView(threadID string) (ThreadView, error) {
	thread, ok := s.comments.Thread(threadID)
	if !ok {
		return ThreadView{}, apperr.NotFound("app.Thread", "thread not found", map[string]any{"threadId": threadID})
	}
	return ThreadView{Thread: thread, Comments: s.comments.CommentsForThread(threadID)}, nil
}

func (s *Service) Threads(filter ThreadFilter) []store.Thread {
	var threads []store.Thread
	switch {
	case filter.DocumentID != "":
		threads = s.comments.ThreadsForDocument(filter.DocumentID)
	case filter.PointerType != "":
		threads = s.comments.ThreadsByPointerType(filter.PointerType)
	default:
		threads = s.comments.Threads()
	}
	out := make([]store.Thread, 0, len(threads))
	for _, t := range threads {
		if filter.PointerType != "" && !hasPointerType(t, filter.PointerType) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out
}

func hasPointerType(t store.Thread, typ pointer.Type) bool {
	for _, p := range t.Pointers {
		if p.Type() == typ {
			return true
		}
	}
	return false
}

// FocusThread moves the editor to the thread's first pointer and makes it active.
func (s *Service) FocusThread(ctx context.Context, threadID string) (ThreadView, error) {
	view, err := s.threadView(threadID)
	if err != nil {
		return ThreadView{}, err
	}
	if len(view.Pointers) > 0 {
		adapter, err := s.registry.RequiredAdapter(view.Pointers[0].Type())
		if err != nil {
			return ThreadView{}, err
		}
		if err := adapter.FocusAtPointer(ctx, view.Pointers[0]); err != nil {
			return ThreadView{}, apperr.Validation("app.FocusThread", err.Error(), map[string]any{"threadId": threadID})
		}
	}
	s.store.SetActiveThread(threadID)
	return view, nil
}

// CommentsOn returns comments filed directly under an arbitrary entity.
func (s *Service) CommentsOn(entityType, entityID string) []store.Comment {
	return s.store.CommentsFor(entityType, entityID)
}

// CommentOn files a comment under an arbitrary entity rather than a thread.
func (s *Service) CommentOn(ctx context.Context, actor Actor, entityType, entityID string, content store.Content) (store.Comment, error) {
	comment := store.Comment{
		ID:         s.newID("cmt"),
		EntityType: strings.TrimSpace(entityType),
		EntityID:   strings.TrimSpace(entityID),
		AuthorID:   actor.UserID,
		Content:    content,
		Status:     store.StatusActive,
		Timestamp:  s.now(),
	}
	if err := s.store.AddComment(comment); err != nil {
		return store.Comment{}, err
	}
	if s.search != nil {
		s.search.CommentAdded(ctx, comment)
	}
	s.save(ctx)
	return comment, nil
}

func (s *Service) Stats() comments.Stats {
	return s.comments.Stats()
}

func (s *Service) Participants() []string {
	return s.comments.Participants()
}

// Panel state.

func (s *Service) UIState() UIState {
	state := s.store.State()
	return UIState{
		ActiveThreadID:    state.ActiveThreadID,
		PanelVisible:      state.PanelVisible,
		HasUnsavedChanges: state.HasUnsavedChanges,
		LastSavedAt:       state.LastSavedAt,
		Version:           state.Version,
	}
}

// SetActiveThread clears the active thread when threadID is empty.
func (s *Service) SetActiveThread(threadID string) (UIState, error) {
	if threadID != "" {
		if _, ok := s.comments.Thread(threadID); !ok {
			return UIState{}, apperr.NotFound("app.SetActiveThread", "thread not found", map[string]any{"threadId": threadID})
		}
	}
	s.store.SetActiveThread(threadID)
	return s.UIState(), nil
}

func (s *Service) SetPanelVisible(visible *bool) UIState {
	if visible == nil {
		s.store.TogglePanel()
	} else {
		s.store.SetPanelVisible(*visible)
	}
	return s.UIState()
}

// Persistence.

// save flushes the store to the persister. Failures are logged; the
// in-memory state stays authoritative and keeps its unsaved flag.
func (s *Service) save(ctx context.Context) {
	if err := s.Save(ctx); err != nil {
		log.Printf("app: persist comments: %v", err)
	}
}

func (s *Service) Save(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.persister.Flush(ctx, s.store, s.now)
}

// Publish copies every thread and comment into the baseline.
func (s *Service) Publish(ctx context.Context) (PublishResult, error) {
	const op = "app.Publish"
	if s.baseline == nil {
		return PublishResult{}, apperr.ServiceUnavailable(op, "no baseline store configured", nil)
	}
	var result PublishResult
	for _, thread := range s.store.Threads() {
		if err := s.baseline.UpsertThread(ctx, thread); err != nil {
			return result, apperr.Storage(op, "publish thread", err)
		}
		result.Threads++
	}
	for _, comment := range flatten(s.store.State().CommentsByEntity) {
		if err := s.baseline.InsertComment(ctx, comment); err != nil {
			return result, apperr.Storage(op, "publish comment", err)
		}
		result.Comments++
	}
	log.Printf("app: published %d threads and %d comments", result.Threads, result.Comments)
	return result, nil
}

// Reindex rebuilds the full-text indexes from current state.
func (s *Service) Reindex() {
	if s.search != nil {
		s.search.ReindexAll(s.store.Threads(), flatten(s.store.State().CommentsByEntity), s.quotes.Quotes())
	}
	s.rebuildPicker()
}

// Export renders a thread transcript with excerpts of its anchors.
func (s *Service) Export(ctx context.Context, threadID string, format export.Format) (export.Result, error) {
	view, err := s.threadView(threadID)
	if err != nil {
		return export.Result{}, err
	}
	transcript := export.Transcript{Thread: view.Thread, Comments: view.Comments}
	for _, p := range view.Pointers {
		anchor := export.Anchor{Type: string(p.Type()), Document: p.DocumentID()}
		if adapter, ok := s.registry.Adapter(p.Type()); ok {
			if excerpt, ok := adapter.GetContentAtPointer(ctx, p); ok {
				anchor.Excerpt = excerpt
			}
		}
		transcript.Anchors = append(transcript.Anchors, anchor)
	}
	return export.Render(transcript, format)
}

// Search.

func (s *Service) Search(q textindex.Query) textindex.Response {
	if s.search == nil {
		return textindex.Response{Results: []textindex.Result{}, Query: q.Text, Backend: "none"}
	}
	return s.search.Search(q)
}

// Exec runs an editor command on behalf of actor.
func (s *Service) Exec(ctx context.Context, actor Actor, command string, args map[string]any) (any, error) {
	return s.host.Exec(withActor(ctx, actor), command, args)
}

// Actors.

// ActorFromToken verifies a bearer token. Without an issuer every token is
// rejected.
func (s *Service) ActorFromToken(token string) (Actor, error) {
	if s.issuer == nil {
		return Actor{}, auth.ErrInvalidToken
	}
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return Actor{}, err
	}
	return Actor{UserID: claims.Sub, Name: claims.Name, Role: rbac.Normalize(claims.Role)}, nil
}

// AnonymousActor is used when tokens are not required.
func (s *Service) AnonymousActor(userID string) Actor {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "anonymous"
	}
	return Actor{UserID: userID, Name: userID, Role: s.defaultRole}
}

func (s *Service) RequiresToken() bool {
	return s.issuer != nil
}

// Login issues a token. With a users directory the password must match and
// the directory's role and name are used; otherwise the default role applies.
func (s *Service) Login(userID, name, password string) (string, Actor, error) {
	const op = "app.Login"
	if s.issuer == nil {
		return "", Actor{}, apperr.ServiceUnavailable(op, "token issuing is not configured", nil)
	}
	if strings.TrimSpace(userID) == "" {
		return "", Actor{}, apperr.Validation(op, "user id is required", nil)
	}
	role := string(s.defaultRole)
	if s.directory != nil {
		user, err := s.directory.SignIn(userID, password)
		if err != nil {
			return "", Actor{}, err
		}
		userID, name, role = user.ID, user.Name, string(rbac.Normalize(user.Role))
	}
	token, claims, err := s.issuer.Issue(userID, name, role)
	if err != nil {
		return "", Actor{}, err
	}
	return token, Actor{UserID: claims.Sub, Name: claims.Name, Role: rbac.Role(claims.Role)}, nil
}

type actorKey struct{}

func withActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

func flatten(snapshot commentstore.Snapshot) []store.Comment {
	out := make([]store.Comment, 0, snapshot.Count())
	for _, items := range snapshot {
		out = append(out, items...)
	}
	commentstore.SortComments(out)
	return out
}
