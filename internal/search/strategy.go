package search

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sahilm/fuzzy"
)

// Strategy scores how well query matches text: 0 is a perfect match, 1 is no
// match at all. Inputs are already lower-cased and trimmed.
type Strategy interface {
	Score(query, text string) float64
}

// Fuzzy is approximate substring matching: the best edit distance between the
// query and any window of the text, divided by the query length.
type Fuzzy struct{}

func (Fuzzy) Score(query, text string) float64 {
	if query == "" || text == "" {
		return 1
	}
	if strings.Contains(text, query) {
		return 0
	}
	q := []rune(query)
	t := []rune(text)
	if len(t) <= len(q) {
		return clamp(float64(levenshtein.ComputeDistance(query, text)) / float64(len(q)))
	}

	best := len(q)
	for start := 0; start < len(t) && best > 0; start++ {
		for width := len(q) - 1; width <= len(q)+1; width++ {
			if width <= 0 || start+width > len(t) {
				continue
			}
			d := levenshtein.ComputeDistance(query, string(t[start:start+width]))
			if d < best {
				best = d
			}
		}
	}
	return clamp(float64(best) / float64(len(q)))
}

// Substring is case-insensitive containment. Prefix matches score 0; later
// positions get a small penalty so earlier hits rank first.
type Substring struct{}

const substringPenalty = 0.1

func (Substring) Score(query, text string) float64 {
	if query == "" {
		return 1
	}
	pos := strings.Index(text, query)
	switch {
	case pos < 0:
		return 1
	case pos == 0:
		return 0
	default:
		return substringPenalty * float64(pos) / float64(len(text))
	}
}

// Subsequence matches query characters in order, command-palette style.
// Tighter matches score lower.
type Subsequence struct{}

const subsequencePenalty = 0.2

func (Subsequence) Score(query, text string) float64 {
	if query == "" {
		return 1
	}
	matches := fuzzy.Find(query, []string{text})
	if len(matches) == 0 {
		return 1
	}
	idx := matches[0].MatchedIndexes
	if len(idx) == 0 {
		return 1
	}
	span := idx[len(idx)-1] - idx[0] + 1
	gaps := span - len(idx)
	if gaps <= 0 && idx[0] == 0 {
		return 0
	}
	return clamp(subsequencePenalty * float64(gaps+idx[0]) / float64(len(text)))
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// StrategyByName resolves a configured strategy name; unknown names fall
// back to Fuzzy.
func StrategyByName(name string) Strategy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "substring":
		return Substring{}
	case "subsequence":
		return Subsequence{}
	default:
		return Fuzzy{}
	}
}
