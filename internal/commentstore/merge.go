package commentstore

import (
	"sort"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

// Snapshot maps an entity key ("type:id") to the comments filed under it.
type Snapshot map[string][]store.Comment

// Group files comments under their entity keys, sorted.
func Group(comments []store.Comment) Snapshot {
	out := Snapshot{}
	for _, c := range comments {
		key := c.EntityKey()
		out[key] = append(out[key], c)
	}
	for key := range out {
		out[key] = dedupe(out[key], nil)
	}
	return out
}

// Merge layers local over base. Lists are unioned by comment id with the
// local copy winning, then sorted by timestamp (ties by id). Merging the same
// local set again yields an identical result.
func Merge(base, local Snapshot) Snapshot {
	out := make(Snapshot, len(base)+len(local))
	for key, comments := range base {
		out[key] = dedupe(comments, nil)
	}
	for key, comments := range local {
		out[key] = dedupe(out[key], comments)
	}
	return out
}

func dedupe(base, local []store.Comment) []store.Comment {
	byID := make(map[string]store.Comment, len(base)+len(local))
	for _, c := range base {
		byID[c.ID] = c
	}
	for _, c := range local {
		byID[c.ID] = c
	}
	out := make([]store.Comment, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	SortComments(out)
	return out
}

// SortComments orders comments by timestamp ascending, then by id.
func SortComments(comments []store.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		a, b := comments[i], comments[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
}

// Trim keeps the newest keep comments of every entity.
func Trim(snapshot Snapshot, keep int) Snapshot {
	out := make(Snapshot, len(snapshot))
	for key, comments := range snapshot {
		sorted := append([]store.Comment(nil), comments...)
		SortComments(sorted)
		if keep >= 0 && len(sorted) > keep {
			sorted = sorted[len(sorted)-keep:]
		}
		out[key] = sorted
	}
	return out
}

func (s Snapshot) clone() Snapshot {
	out := make(Snapshot, len(s))
	for key, comments := range s {
		out[key] = append([]store.Comment(nil), comments...)
	}
	return out
}

// Count returns the total number of comments.
func (s Snapshot) Count() int {
	total := 0
	for _, comments := range s {
		total += len(comments)
	}
	return total
}
