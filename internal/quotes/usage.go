package quotes

import (
	"sort"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

const (
	referenceWeight = 10
	documentWeight  = 5
)

type Usage struct {
	QuoteID         string                      `json:"quoteId"`
	TotalReferences int                         `json:"totalReferences"`
	DocumentSpread  int                         `json:"documentSpread"`
	ReferenceTypes  map[store.ReferenceType]int `json:"referenceTypes"`
	PopularityScore int                         `json:"popularityScore"`
}

type Trending struct {
	Quote store.Quote `json:"quote"`
	Usage Usage       `json:"usage"`
}

// AnalyzeQuoteUsage scores a quote as references*10 + distinct target
// documents*5. Unknown quotes score zero.
func (i *Index) AnalyzeQuoteUsage(quoteID string) Usage {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.usageLocked(quoteID)
}

func (i *Index) usageLocked(quoteID string) Usage {
	usage := Usage{QuoteID: quoteID, ReferenceTypes: map[store.ReferenceType]int{}}
	docs := map[string]struct{}{}
	for _, id := range i.byQuote[quoteID] {
		ref := i.refs[id]
		usage.TotalReferences++
		usage.ReferenceTypes[ref.ReferenceType]++
		docs[ref.TargetDocument] = struct{}{}
	}
	usage.DocumentSpread = len(docs)
	usage.PopularityScore = usage.TotalReferences*referenceWeight + usage.DocumentSpread*documentWeight
	return usage
}

// TrendingQuotes ranks every known quote by popularity, highest first, ties
// by quote id. A non-positive limit returns all quotes.
func (i *Index) TrendingQuotes(limit int) []Trending {
	i.mu.RLock()
	out := make([]Trending, 0, len(i.quotes))
	for id, q := range i.quotes {
		out = append(out, Trending{Quote: q, Usage: i.usageLocked(id)})
	}
	i.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].Usage.PopularityScore != out[b].Usage.PopularityScore {
			return out[a].Usage.PopularityScore > out[b].Usage.PopularityScore
		}
		return out[a].Quote.ID < out[b].Quote.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
