package pointer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
)

// Adapter resolves one pointer type against the surface that renders it.
type Adapter interface {
	Type() Type
	ValidatePointer(ctx context.Context, p Pointer) bool
	SerializePointer(p Pointer) (Record, error)
	DeserializePointer(record Record) (Pointer, error)
	HighlightPointer(ctx context.Context, p Pointer, threadID string) error
	UnhighlightPointer(ctx context.Context, p Pointer) error
	FocusAtPointer(ctx context.Context, p Pointer) error
	GetContentAtPointer(ctx context.Context, p Pointer) (string, bool)
}

// Factory builds an adapter on first use.
type Factory func() (Adapter, error)

// Registry maps pointer types to adapters. Create one per process (or per test)
// and pass it to the components that need it.
type Registry struct {
	mu        sync.Mutex
	adapters  map[Type]Adapter
	factories map[Type]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		adapters:  make(map[Type]Adapter),
		factories: make(map[Type]Factory),
	}
}

// Register installs an adapter, replacing any adapter or factory for its type.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, adapter.Type())
	r.adapters[adapter.Type()] = adapter
}

// RegisterFactory defers construction until the type is first requested.
func (r *Registry) RegisterFactory(t Type, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, t)
	r.factories[t] = factory
}

// Adapter returns the adapter for t, constructing it from a factory if needed.
func (r *Registry) Adapter(t Type) (Adapter, bool) {
	adapter, err := r.resolve(t)
	if err != nil || adapter == nil {
		return nil, false
	}
	return adapter, true
}

// RequiredAdapter is Adapter for callers that must not silently no-op.
func (r *Registry) RequiredAdapter(t Type) (Adapter, error) {
	adapter, err := r.resolve(t)
	if err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, apperr.ServiceUnavailable("pointer.RequiredAdapter", fmt.Sprintf("no adapter registered for pointer type %q", t), map[string]any{
			"requestedType":   string(t),
			"registeredTypes": r.Types(),
		})
	}
	return adapter, nil
}

// Types lists registered types, eager and lazy, sorted.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.adapters)+len(r.factories))
	for t := range r.adapters {
		types = append(types, string(t))
	}
	for t := range r.factories {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}

// resolve builds lazy adapters outside the lock so a factory may consult the
// registry. If two callers race on the same type the first cached adapter wins.
func (r *Registry) resolve(t Type) (Adapter, error) {
	r.mu.Lock()
	if adapter, ok := r.adapters[t]; ok {
		r.mu.Unlock()
		return adapter, nil
	}
	factory, ok := r.factories[t]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}

	adapter, err := factory()
	if err != nil {
		return nil, apperr.ServiceUnavailable("pointer.RequiredAdapter", fmt.Sprintf("adapter factory for %q failed", t), map[string]any{
			"requestedType": string(t),
			"cause":         err.Error(),
		})
	}
	if adapter == nil || adapter.Type() != t {
		return nil, apperr.ServiceUnavailable("pointer.RequiredAdapter", fmt.Sprintf("factory for %q built no adapter of that type", t), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.adapters[t]; ok {
		return cached, nil
	}
	if _, pending := r.factories[t]; !pending {
		// replaced or re-registered while building
		return nil, nil
	}
	delete(r.factories, t)
	r.adapters[t] = adapter
	return adapter, nil
}

// Highlight dispatches to the adapter of p's type.
func (r *Registry) Highlight(ctx context.Context, p Pointer, threadID string) error {
	adapter, err := r.RequiredAdapter(p.Type())
	if err != nil {
		return err
	}
	return adapter.HighlightPointer(ctx, p, threadID)
}

// Unhighlight dispatches to the adapter of p's type.
func (r *Registry) Unhighlight(ctx context.Context, p Pointer) error {
	adapter, err := r.RequiredAdapter(p.Type())
	if err != nil {
		return err
	}
	return adapter.UnhighlightPointer(ctx, p)
}

// Validate runs structural validation and then the adapter's live check.
func (r *Registry) Validate(ctx context.Context, p Pointer) error {
	if p == nil {
		return apperr.Validation("pointer.Validate", "pointer is required", nil)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	adapter, err := r.RequiredAdapter(p.Type())
	if err != nil {
		return err
	}
	if !adapter.ValidatePointer(ctx, p) {
		return apperr.Validation("pointer.Validate", "pointer does not resolve in the live document", map[string]any{
			"type":       string(p.Type()),
			"documentId": p.DocumentID(),
		})
	}
	return nil
}
