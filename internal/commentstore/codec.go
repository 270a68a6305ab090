package commentstore

import (
	"encoding/json"
	"fmt"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

// SchemaVersion tags every persisted payload. Payloads with another version
// are treated as absent.
const SchemaVersion = 1

type Payload struct {
	Version  int            `json:"version"`
	Comments Snapshot       `json:"comments"`
	Threads  []store.Thread `json:"threads,omitempty"`
}

func Serialize(p Payload) ([]byte, error) {
	p.Version = SchemaVersion
	if p.Comments == nil {
		p.Comments = Snapshot{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("serialize comments: %w", err)
	}
	return data, nil
}

// Deserialize returns nil on any parse, version or shape failure.
func Deserialize(data []byte) *Payload {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	if p.Version != SchemaVersion || p.Comments == nil {
		return nil
	}
	for key, comments := range p.Comments {
		for _, c := range comments {
			if c.ID == "" || c.EntityKey() != key {
				return nil
			}
		}
	}
	for _, t := range p.Threads {
		if t.ID == "" {
			return nil
		}
	}
	return &p
}
