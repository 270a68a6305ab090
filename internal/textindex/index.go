// Package textindex provides full-text search over threads, comments and
// quotes. Meilisearch is used when reachable; otherwise queries run against
// the in-process hierarchical engine.
package textindex

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultThread  ResultType = "thread"
	ResultComment ResultType = "comment"
	ResultQuote   ResultType = "quote"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	ThreadID   string     `json:"threadId,omitempty"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	DocumentID string     `json:"documentId,omitempty"`
	Status     string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	DocumentID string
	Status     string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ThreadRecord is the data we index for a thread.
type ThreadRecord struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	Body         string   `json:"body"`
	DocumentIDs  []string `json:"documentIds"`
	PointerTypes []string `json:"pointerTypes"`
	Participants []string `json:"participants"`
	Status       string   `json:"status"`
}

// CommentRecord is the data we index for a comment.
type CommentRecord struct {
	ID        string `json:"id"`
	ThreadID  string `json:"threadId"`
	EntityKey string `json:"entityKey"`
	AuthorID  string `json:"authorId"`
	Body      string `json:"body"`
	Status    string `json:"status"`
}

// QuoteRecord is the data we index for a quote.
type QuoteRecord struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	SourceDocument string `json:"sourceDocument"`
	CreatedBy      string `json:"createdBy"`
}

const defaultLimit = 20

func page(results []Result, q Query) []Result {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []Result{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
