package search

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func fixtureParents() []Parent {
	return []Parent{
		{
			ID:   "colors",
			Name: "Colors",
			Children: []Item{
				{ID: "red", Name: "Red"},
				{ID: "colorful", Name: "Colorful palette"},
			},
		},
		{
			ID:             "status",
			Name:           "Status",
			SearchableText: "workflow state",
			Children: []Item{
				{ID: "open", Name: "Open"},
				{ID: "closed", Name: "Closed", SearchableText: "done finished"},
			},
		},
		{
			ID:   "owner",
			Name: "Owner",
			Children: []Item{
				{ID: "alice", Name: "Alice"},
				{ID: "bob", Name: "Bob", SearchableText: "colour expert"},
			},
		},
	}
}

func childIDs(matches []ChildMatch) []string {
	out := []string{}
	for _, m := range matches {
		out = append(out, m.Parent.ID+"/"+m.Child.ID)
	}
	return out
}

func parentIDs(parents []Parent) []string {
	out := []string{}
	for _, p := range parents {
		out = append(out, p.ID)
	}
	return out
}

func TestSearchEmptyQueryReturnsAllParents(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	parents := fixtureParents()
	for _, q := range []string{"", "   "} {
		got := engine.Search(q, parents)
		if diff := cmp.Diff(parents, got.Parents); diff != "" {
			t.Fatalf("Search(%q) parents mismatch (-want +got):\n%s", q, diff)
		}
		if len(got.Children) != 0 {
			t.Fatalf("Search(%q) children = %v", q, childIDs(got.Children))
		}
	}
}

func TestSearchBelowMinLengthReturnsNothing(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	got := engine.Search("a", fixtureParents())
	if len(got.Parents) != 0 || len(got.Children) != 0 {
		t.Fatalf("Search(a) = %+v", got)
	}
}

func TestSearchIncludesChildrenOfMatchingParentOnce(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	got := engine.Search("color", fixtureParents())

	if !cmp.Equal(parentIDs(got.Parents), []string{"colors"}) {
		t.Fatalf("parents = %v", parentIDs(got.Parents))
	}
	counts := map[string]int{}
	for _, id := range childIDs(got.Children) {
		counts[id]++
	}
	if counts["colors/colorful"] != 1 {
		t.Fatalf("colors/colorful appears %d times in %v", counts["colors/colorful"], childIDs(got.Children))
	}
	if counts["colors/red"] != 1 {
		t.Fatalf("colors/red should be included via its parent: %v", childIDs(got.Children))
	}
	if counts["owner/bob"] != 1 {
		t.Fatalf("owner/bob should match on searchable text: %v", childIDs(got.Children))
	}
}

func TestSearchWithoutParentInclusion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeChildrenOnParentMatch = false
	got := NewEngine(cfg).Search("color", fixtureParents())
	for _, id := range childIDs(got.Children) {
		if id == "colors/red" {
			t.Fatalf("red must not be included when inclusion is off: %v", childIDs(got.Children))
		}
	}
}

func TestSearchParentsAndChildrenIndependent(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	got := engine.Search("closed", fixtureParents())
	if len(got.Parents) != 0 {
		t.Fatalf("no parent should match, got %v", parentIDs(got.Parents))
	}
	if !cmp.Equal(childIDs(got.Children), []string{"status/closed"}) {
		t.Fatalf("children = %v", childIDs(got.Children))
	}
}

func TestSearchToleratesTypos(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	got := engine.Search("statsu", fixtureParents())
	if len(got.Parents) != 0 {
		// a transposition is two edits in six characters, above the threshold
		t.Fatalf("parents = %v", parentIDs(got.Parents))
	}
	got = engine.Search("worklfow", fixtureParents())
	if len(got.Parents) != 0 {
		t.Fatalf("parents = %v", parentIDs(got.Parents))
	}
	got = engine.Search("workflw", fixtureParents())
	if !cmp.Equal(parentIDs(got.Parents), []string{"status"}) {
		t.Fatalf("one deletion should still match: %v", parentIDs(got.Parents))
	}
}

func TestSearchRanksBestFirstAndStable(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	parents := []Parent{
		{ID: "a", Name: "Alpha release notes"},
		{ID: "b", Name: "Release"},
		{ID: "c", Name: "Pre-release"},
	}
	got := engine.Search("release", parents)
	// All three contain "release" exactly and tie at a perfect score.
	if !cmp.Equal(parentIDs(got.Parents), []string{"a", "b", "c"}) {
		t.Fatalf("order = %v", parentIDs(got.Parents))
	}

	got = engine.Search("releas", []Parent{
		{ID: "typo", Name: "Relaese"},
		{ID: "exact", Name: "Release"},
	})
	if len(got.Parents) == 0 || got.Parents[0].ID != "exact" {
		t.Fatalf("exact match should rank first: %v", parentIDs(got.Parents))
	}
}

func TestSearchWithinParent(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	status := fixtureParents()[1]

	all := engine.SearchWithinParent("", status)
	if !cmp.Equal(childIDs(all), []string{"status/open", "status/closed"}) {
		t.Fatalf("browse = %v", childIDs(all))
	}
	if got := engine.SearchWithinParent("o", status); len(got) != 0 {
		t.Fatalf("short query = %v", childIDs(got))
	}
	if got := engine.SearchWithinParent("done", status); !cmp.Equal(childIDs(got), []string{"status/closed"}) {
		t.Fatalf("done = %v", childIDs(got))
	}
}

func TestStrategies(t *testing.T) {
	cases := []struct {
		name     string
		strategy Strategy
		query    string
		text     string
		match    bool
	}{
		{name: "fuzzy exact", strategy: Fuzzy{}, query: "plan", text: "launch plan", match: true},
		{name: "fuzzy one typo", strategy: Fuzzy{}, query: "launch", text: "the lanch plan", match: true},
		{name: "fuzzy unrelated", strategy: Fuzzy{}, query: "budget", text: "launch plan", match: false},
		{name: "substring prefix", strategy: Substring{}, query: "lau", text: "launch plan", match: true},
		{name: "substring middle", strategy: Substring{}, query: "plan", text: "launch plan", match: true},
		{name: "substring typo", strategy: Substring{}, query: "lanch", text: "launch plan", match: false},
		{name: "subsequence prefix", strategy: Subsequence{}, query: "lp", text: "launch plan", match: true},
		{name: "subsequence out of order", strategy: Subsequence{}, query: "pl", text: "lap", match: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := tc.strategy.Score(tc.query, tc.text)
			if got := score <= DefaultConfig().Threshold; got != tc.match {
				t.Fatalf("Score(%q, %q) = %v, match=%v want %v", tc.query, tc.text, score, got, tc.match)
			}
		})
	}
}

// constantScore scores every field the same and records what it was asked.
type constantScore struct {
	score   float64
	queries *[]string
}

func (c constantScore) Score(query, _ string) float64 {
	*c.queries = append(*c.queries, query)
	return c.score
}

func TestEngineAppliesThresholdToStrategyScore(t *testing.T) {
	var queries []string
	cfg := DefaultConfig()
	cfg.Strategy = constantScore{score: 0.3, queries: &queries}

	got := NewEngine(cfg).Search("  Plan ", fixtureParents())
	if len(got.Parents) != 0 || len(got.Children) != 0 {
		t.Fatalf("score above threshold matched: %v %v", parentIDs(got.Parents), childIDs(got.Children))
	}
	if len(queries) == 0 || queries[0] != "plan" {
		t.Fatalf("strategy saw queries %q, want lower-cased trimmed input", queries)
	}

	cfg.Threshold = 0.3
	got = NewEngine(cfg).Search("plan", fixtureParents())
	if diff := cmp.Diff([]string{"colors", "status", "owner"}, parentIDs(got.Parents), cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("score at threshold parents mismatch (-want +got):\n%s", diff)
	}
}

func TestSubstringStrategyConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = Substring{}
	got := NewEngine(cfg).Search("workflw", fixtureParents())
	if len(got.Parents) != 0 {
		t.Fatalf("substring strategy must not tolerate typos: %v", parentIDs(got.Parents))
	}
	if _, ok := StrategyByName("SUBSTRING").(Substring); !ok {
		t.Fatalf("StrategyByName(SUBSTRING) wrong type")
	}
	if _, ok := StrategyByName("unknown").(Fuzzy); !ok {
		t.Fatalf("unknown strategy should fall back to fuzzy")
	}
}

func TestSortByRelevance(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	items := []Item{
		{ID: "1", Name: "Unrelated"},
		{ID: "2", Name: "Team roadmap"},
		{ID: "3", Name: "Roadmap"},
		{ID: "4", Name: "Roadmap review"},
	}
	ids := func(items []Item) []string {
		out := []string{}
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}

	cascade := engine.SortByRelevance(items, "roadmap", ModeCascade)
	if !cmp.Equal(ids(cascade), []string{"3", "4", "2", "1"}) {
		t.Fatalf("cascade = %v", ids(cascade))
	}
	scored := engine.SortByRelevance(items, "roadmap", ModeScore)
	if len(scored) != len(items) || scored[len(scored)-1].ID != "1" {
		t.Fatalf("score mode = %v", ids(scored))
	}
	if !cmp.Equal(ids(items), []string{"1", "2", "3", "4"}) {
		t.Fatalf("input reordered: %v", ids(items))
	}
}

func TestIndexMemoizesPerVersion(t *testing.T) {
	idx, err := NewIndex(NewEngine(DefaultConfig()), 8)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	v1 := idx.Replace(fixtureParents())
	first := idx.Search("color")
	if idx.cache.Len() != 1 {
		t.Fatalf("cache len = %d", idx.cache.Len())
	}
	second := idx.Search("color")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("cached result differs:\n%s", diff)
	}

	v2 := idx.Replace([]Parent{{ID: "other", Name: "Other"}})
	if v2 != v1+1 {
		t.Fatalf("version = %d, want %d", v2, v1+1)
	}
	if got := idx.Search("color"); len(got.Parents) != 0 || len(got.Children) != 0 {
		t.Fatalf("stale result served after Replace: %+v", got)
	}

	if _, ok := idx.SearchWithinParent("x", "missing"); ok {
		t.Fatalf("unknown parent reported found")
	}
	children, ok := idx.SearchWithinParent("", "other")
	if !ok || len(children) != 0 {
		t.Fatalf("SearchWithinParent = %v, %v", children, ok)
	}
}
