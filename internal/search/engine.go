// Package search ranks a two-level parent/child dataset against a query.
// The same engine backs command, filter and reference pickers.
package search

import (
	"math"
	"sort"
	"strings"
)

const (
	FieldName           = "name"
	FieldSearchableText = "searchableText"
)

type Item struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SearchableText string `json:"searchableText,omitempty"`
}

type Parent struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SearchableText string `json:"searchableText,omitempty"`
	Children       []Item `json:"children,omitempty"`
}

type Key struct {
	Name   string
	Weight float64
}

type Config struct {
	Keys                         []Key
	Threshold                    float64
	MinMatchCharLength           int
	IncludeChildrenOnParentMatch bool
	Strategy                     Strategy
}

func DefaultConfig() Config {
	return Config{
		Keys: []Key{
			{Name: FieldName, Weight: 0.7},
			{Name: FieldSearchableText, Weight: 0.3},
		},
		Threshold:                    0.2,
		MinMatchCharLength:           2,
		IncludeChildrenOnParentMatch: true,
		Strategy:                     Fuzzy{},
	}
}

type ChildMatch struct {
	Parent Parent  `json:"parent"`
	Child  Item    `json:"child"`
	Score  float64 `json:"score"`
}

type Results struct {
	Parents  []Parent     `json:"parents"`
	Children []ChildMatch `json:"children"`
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.Strategy == nil {
		cfg.Strategy = Fuzzy{}
	}
	if len(cfg.Keys) == 0 {
		cfg.Keys = DefaultConfig().Keys
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config {
	return e.cfg
}

type queryMode int

const (
	modeBrowse queryMode = iota
	modeTooShort
	modeMatch
)

func (e *Engine) classify(query string) (string, queryMode) {
	q := strings.ToLower(strings.TrimSpace(query))
	switch {
	case q == "":
		return q, modeBrowse
	case len([]rune(q)) < e.cfg.MinMatchCharLength:
		return q, modeTooShort
	default:
		return q, modeMatch
	}
}

// fieldScore is the strategy score of one field, or false when the field is
// empty or does not pass the threshold.
func (e *Engine) fieldScore(q, value string) (float64, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return 1, false
	}
	score := e.cfg.Strategy.Score(q, value)
	return score, score <= e.cfg.Threshold
}

// score combines matched fields as the product of score^weight. A perfect
// field match uses the smallest positive float so weights still order it.
func (e *Engine) score(q, name, text string) (total float64, nameMatched, ok bool) {
	total = 1
	for _, key := range e.cfg.Keys {
		var value string
		switch key.Name {
		case FieldName:
			value = name
		case FieldSearchableText:
			value = text
		default:
			continue
		}
		s, matched := e.fieldScore(q, value)
		if !matched {
			continue
		}
		ok = true
		if key.Name == FieldName {
			nameMatched = true
		}
		if s == 0 {
			s = math.SmallestNonzeroFloat64
		}
		w := key.Weight
		if w <= 0 {
			w = 1
		}
		total *= math.Pow(s, w)
	}
	if !ok {
		return 1, false, false
	}
	return total, nameMatched, true
}

// Search scores parents and children independently. An empty query returns
// every parent and no children; a query under the minimum length returns
// nothing.
func (e *Engine) Search(query string, parents []Parent) Results {
	q, mode := e.classify(query)
	switch mode {
	case modeBrowse:
		return Results{Parents: append([]Parent{}, parents...), Children: []ChildMatch{}}
	case modeTooShort:
		return Results{Parents: []Parent{}, Children: []ChildMatch{}}
	}

	type scoredParent struct {
		parent Parent
		score  float64
	}
	type pairKey struct{ parent, child string }

	matchedParents := make([]scoredParent, 0)
	children := make([]ChildMatch, 0)
	seen := map[pairKey]int{}

	addChild := func(m ChildMatch) {
		key := pairKey{m.Parent.ID, m.Child.ID}
		if i, ok := seen[key]; ok {
			if m.Score < children[i].Score {
				children[i].Score = m.Score
			}
			return
		}
		seen[key] = len(children)
		children = append(children, m)
	}

	for _, p := range parents {
		parentScore, nameMatched, ok := e.score(q, p.Name, p.SearchableText)
		if ok {
			matchedParents = append(matchedParents, scoredParent{parent: p, score: parentScore})
		}
		for _, c := range p.Children {
			if s, _, childOK := e.score(q, c.Name, c.SearchableText); childOK {
				addChild(ChildMatch{Parent: p, Child: c, Score: s})
			}
		}
		if ok && nameMatched && e.cfg.IncludeChildrenOnParentMatch {
			for _, c := range p.Children {
				addChild(ChildMatch{Parent: p, Child: c, Score: parentScore})
			}
		}
	}

	sort.SliceStable(matchedParents, func(i, j int) bool { return matchedParents[i].score < matchedParents[j].score })
	sort.SliceStable(children, func(i, j int) bool { return children[i].Score < children[j].Score })

	out := Results{Parents: make([]Parent, 0, len(matchedParents)), Children: children}
	for _, sp := range matchedParents {
		out.Parents = append(out.Parents, sp.parent)
	}
	return out
}

// SearchWithinParent is the drill-down variant: only parent's children are
// considered. An empty query returns all of them.
func (e *Engine) SearchWithinParent(query string, parent Parent) []ChildMatch {
	q, mode := e.classify(query)
	out := make([]ChildMatch, 0)
	switch mode {
	case modeBrowse:
		for _, c := range parent.Children {
			out = append(out, ChildMatch{Parent: parent, Child: c})
		}
		return out
	case modeTooShort:
		return out
	}
	for _, c := range parent.Children {
		if s, _, ok := e.score(q, c.Name, c.SearchableText); ok {
			out = append(out, ChildMatch{Parent: parent, Child: c, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}
