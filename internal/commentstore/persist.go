package commentstore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/blob"
)

const (
	DefaultKey           = "pp-comments"
	DefaultKeepPerEntity = 100
)

// Persister writes the store payload to a single fixed blob key.
type Persister struct {
	blobs         blob.Store
	key           string
	keepPerEntity int
}

func NewPersister(blobs blob.Store, key string, keepPerEntity int) *Persister {
	if key == "" {
		key = DefaultKey
	}
	if keepPerEntity <= 0 {
		keepPerEntity = DefaultKeepPerEntity
	}
	return &Persister{blobs: blobs, key: key, keepPerEntity: keepPerEntity}
}

// Load returns nil when nothing usable is stored.
func (p *Persister) Load(ctx context.Context) *Payload {
	data, err := p.blobs.Get(ctx, p.key)
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			log.Printf("commentstore: load %s failed: %v", p.key, err)
		}
		return nil
	}
	payload := Deserialize(data)
	if payload == nil {
		log.Printf("commentstore: discarding unreadable payload at %s", p.key)
	}
	return payload
}

// Save writes payload. When the backend reports a quota failure the payload
// is trimmed to the newest comments per entity and written once more.
func (p *Persister) Save(ctx context.Context, payload Payload) error {
	const op = "commentstore.Save"
	data, err := Serialize(payload)
	if err != nil {
		return apperr.Storage(op, "serialize payload", err)
	}
	err = p.blobs.Set(ctx, p.key, data)
	if err == nil {
		return nil
	}
	if !errors.Is(err, blob.ErrQuotaExceeded) {
		return apperr.Storage(op, "write payload", err)
	}

	log.Printf("commentstore: quota exceeded for %s, keeping newest %d comments per entity", p.key, p.keepPerEntity)
	payload.Comments = Trim(payload.Comments, p.keepPerEntity)
	data, err = Serialize(payload)
	if err != nil {
		return apperr.Storage(op, "serialize trimmed payload", err)
	}
	if err := p.blobs.Set(ctx, p.key, data); err != nil {
		return apperr.Storage(op, "write trimmed payload", err)
	}
	return nil
}

// Flush saves the store and marks it saved on success.
func (p *Persister) Flush(ctx context.Context, s *Store, now func() time.Time) error {
	version := s.Version()
	if err := p.Save(ctx, s.Payload()); err != nil {
		return err
	}
	s.MarkSaved(version, now())
	return nil
}
