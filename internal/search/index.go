package search

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	version  uint64
	within   bool
	parentID string
	query    string
}

type cached struct {
	results  Results
	children []ChildMatch
}

// Index holds one dataset and memoizes results per dataset version. Replace
// bumps the version, so stale entries are never served.
type Index struct {
	engine *Engine
	cache  *lru.Cache[cacheKey, cached]

	mu      sync.RWMutex
	parents []Parent
	byID    map[string]int
	version uint64
}

func NewIndex(engine *Engine, cacheSize int) (*Index, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[cacheKey, cached](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create search cache: %w", err)
	}
	return &Index{engine: engine, cache: cache, byID: map[string]int{}}, nil
}

func (i *Index) Engine() *Engine {
	return i.engine
}

// Replace swaps the dataset and returns the new version.
func (i *Index) Replace(parents []Parent) uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.parents = append([]Parent(nil), parents...)
	i.byID = make(map[string]int, len(parents))
	for n, p := range i.parents {
		i.byID[p.ID] = n
	}
	i.version++
	return i.version
}

func (i *Index) Version() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.version
}

func (i *Index) Parents() []Parent {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]Parent(nil), i.parents...)
}

func (i *Index) Search(query string) Results {
	i.mu.RLock()
	key := cacheKey{version: i.version, query: query}
	parents := i.parents
	i.mu.RUnlock()

	if hit, ok := i.cache.Get(key); ok {
		return copyResults(hit.results)
	}
	results := i.engine.Search(query, parents)
	i.cache.Add(key, cached{results: results})
	return copyResults(results)
}

// SearchWithinParent reports false when parentID is not in the dataset.
func (i *Index) SearchWithinParent(query, parentID string) ([]ChildMatch, bool) {
	i.mu.RLock()
	n, ok := i.byID[parentID]
	var parent Parent
	if ok {
		parent = i.parents[n]
	}
	key := cacheKey{version: i.version, within: true, parentID: parentID, query: query}
	i.mu.RUnlock()
	if !ok {
		return []ChildMatch{}, false
	}

	if hit, ok := i.cache.Get(key); ok {
		return append([]ChildMatch{}, hit.children...), true
	}
	children := i.engine.SearchWithinParent(query, parent)
	i.cache.Add(key, cached{children: children})
	return append([]ChildMatch{}, children...), true
}

func copyResults(r Results) Results {
	return Results{
		Parents:  append([]Parent{}, r.Parents...),
		Children: append([]ChildMatch{}, r.Children...),
	}
}
