package store

import (
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// EntityThread is the entity type under which thread comments are grouped.
const EntityThread = "thread"

// EntityKey is the only key builder for comment grouping.
func EntityKey(entityType, entityID string) string {
	return entityType + ":" + entityID
}

type Thread struct {
	ID           string       `json:"id"`
	Pointers     pointer.List `json:"pointers"`
	Participants []string     `json:"participants"`
	Status       Status       `json:"status"`
	CreatedBy    string       `json:"createdBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	ResolvedBy   string       `json:"resolvedBy,omitempty"`
	ResolvedAt   *time.Time   `json:"resolvedAt,omitempty"`
}

// Clone copies the slices so callers cannot alias store state.
func (t Thread) Clone() Thread {
	out := t
	out.Pointers = append(pointer.List(nil), t.Pointers...)
	out.Participants = append([]string{}, t.Participants...)
	if t.ResolvedAt != nil {
		resolvedAt := *t.ResolvedAt
		out.ResolvedAt = &resolvedAt
	}
	return out
}

// HasParticipant reports whether id already takes part in the thread.
func (t Thread) HasParticipant(id string) bool {
	for _, p := range t.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Comment belongs to the entity it is filed under. Thread comments use
// EntityThread with the thread id; ThreadID is a back-reference only.
type Comment struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId,omitempty"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	AuthorID   string    `json:"authorId"`
	Content    Content   `json:"content"`
	Status     Status    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

func (c Comment) EntityKey() string {
	return EntityKey(c.EntityType, c.EntityID)
}

type Quote struct {
	ID             string        `json:"id"`
	EntityID       string        `json:"entityId"`
	SourceDocument string        `json:"sourceDocument"`
	SourceRange    pointer.Range `json:"sourceRange"`
	Text           string        `json:"text"`
	CreatedBy      string        `json:"createdBy"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Pointer returns the quote-object pointer addressing this quote.
func (q Quote) Pointer() pointer.QuoteObject {
	return pointer.QuoteObject{
		QuoteID:        q.ID,
		EntityID:       q.EntityID,
		SourceDocument: q.SourceDocument,
		SourceRange:    q.SourceRange,
	}
}

type ReferenceType string

const (
	ReferenceMention    ReferenceType = "mention"
	ReferenceCitation   ReferenceType = "citation"
	ReferenceDiscussion ReferenceType = "discussion"
	ReferenceAnalysis   ReferenceType = "analysis"
)

func (t ReferenceType) Valid() bool {
	switch t {
	case ReferenceMention, ReferenceCitation, ReferenceDiscussion, ReferenceAnalysis:
		return true
	default:
		return false
	}
}

type QuoteReference struct {
	ID             string        `json:"id"`
	QuoteID        string        `json:"quoteId"`
	SourceDocument string        `json:"sourceDocument"`
	TargetDocument string        `json:"targetDocument"`
	ReferenceType  ReferenceType `json:"referenceType"`
	ContextText    string        `json:"contextText,omitempty"`
	Position       *int          `json:"position,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	CreatedBy      string        `json:"createdBy"`
}
