package search

import (
	"sort"
	"strings"
)

type SortMode string

const (
	// ModeScore orders by the engine's match score.
	ModeScore SortMode = "score"
	// ModeCascade orders exact, then prefix, then substring matches, then
	// everything else, alphabetically within each tier.
	ModeCascade SortMode = "cascade"
)

// SortByRelevance reorders items for query without dropping any.
func (e *Engine) SortByRelevance(items []Item, query string, mode SortMode) []Item {
	out := append([]Item{}, items...)
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return out
	}

	if mode == ModeCascade {
		sort.SliceStable(out, func(i, j int) bool {
			ti, tj := cascadeTier(q, out[i].Name), cascadeTier(q, out[j].Name)
			if ti != tj {
				return ti < tj
			}
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
		return out
	}

	scores := make(map[int]float64, len(out))
	for i, item := range out {
		if s, _, ok := e.score(q, item.Name, item.SearchableText); ok {
			scores[i] = s
		} else {
			scores[i] = 1
		}
	}
	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	sorted := make([]Item, len(out))
	for i, idx := range order {
		sorted[i] = out[idx]
	}
	return sorted
}

func cascadeTier(q, name string) int {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == q:
		return 0
	case strings.HasPrefix(n, q):
		return 1
	case strings.Contains(n, q):
		return 2
	default:
		return 3
	}
}
