package commentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

// fixtureRecord is the flat bundled-comment format. JSON files decode too,
// since JSON is a subset of YAML.
type fixtureRecord struct {
	ID         string `yaml:"id"`
	ThreadID   string `yaml:"threadId"`
	EntityType string `yaml:"entityType"`
	EntityID   string `yaml:"entityId"`
	AuthorID   string `yaml:"authorId"`
	Content    any    `yaml:"content"`
	Status     string `yaml:"status"`
	Timestamp  string `yaml:"timestamp"`
}

// Source supplies baseline comments.
type Source interface {
	LoadComments(ctx context.Context) ([]store.Comment, error)
}

// FixtureSource reads bundled comments from a file.
type FixtureSource struct {
	Path string
}

func (f FixtureSource) LoadComments(context.Context) ([]store.Comment, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer file.Close()
	return DecodeFixtures(file)
}

func DecodeFixtures(r io.Reader) ([]store.Comment, error) {
	var records []fixtureRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		if err == io.EOF {
			return []store.Comment{}, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	out := make([]store.Comment, 0, len(records))
	for i, rec := range records {
		c, err := rec.comment()
		if err != nil {
			return nil, fmt.Errorf("fixture %d (%s): %w", i, rec.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (r fixtureRecord) comment() (store.Comment, error) {
	if r.ID == "" || r.EntityType == "" || r.EntityID == "" {
		return store.Comment{}, fmt.Errorf("id, entityType and entityId are required")
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(r.Timestamp))
	if err != nil {
		return store.Comment{}, fmt.Errorf("parse timestamp: %w", err)
	}
	content, err := fixtureContent(r.Content)
	if err != nil {
		return store.Comment{}, err
	}
	status := store.Status(r.Status)
	if status == "" {
		status = store.StatusActive
	}
	threadID := r.ThreadID
	if threadID == "" && r.EntityType == store.EntityThread {
		threadID = r.EntityID
	}
	return store.Comment{
		ID:         r.ID,
		ThreadID:   threadID,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		AuthorID:   r.AuthorID,
		Content:    content,
		Status:     status,
		Timestamp:  ts,
	}, nil
}

func fixtureContent(raw any) (store.Content, error) {
	switch v := raw.(type) {
	case nil:
		return store.Content{}, nil
	case string:
		return store.TextContent(v), nil
	case map[string]any:
		doc, err := json.Marshal(v)
		if err != nil {
			return store.Content{}, fmt.Errorf("encode rich content: %w", err)
		}
		return store.RichContent(doc)
	default:
		return store.Content{}, fmt.Errorf("unsupported content type %T", raw)
	}
}

// StaticSource returns a fixed list; it is mostly used by tests.
type StaticSource []store.Comment

func (s StaticSource) LoadComments(context.Context) ([]store.Comment, error) {
	return append([]store.Comment(nil), s...), nil
}
