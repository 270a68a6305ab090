package editor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
)

// Workspace holds the open text documents and item views of a session.
// It satisfies pointer.DocumentProvider and pointer.SectionView.
type Workspace struct {
	mu    sync.RWMutex
	docs  map[documentKey]*Buffer
	items map[string]*Item
}

// Item is an item view made of named sections.
type Item struct {
	ID       string
	Sections map[string]string
	marks    map[string]string
	focused  string
}

func NewWorkspace() *Workspace {
	return &Workspace{
		docs:  make(map[documentKey]*Buffer),
		items: make(map[string]*Item),
	}
}

// Open registers a document; editorID scopes it when several editors show
// the same document.
func (w *Workspace) Open(documentID, editorID, text string) *Buffer {
	buffer := NewBuffer(text)
	w.mu.Lock()
	w.docs[docKey(documentID, editorID)] = buffer
	w.mu.Unlock()
	return buffer
}

func (w *Workspace) Close(documentID, editorID string) {
	w.mu.Lock()
	delete(w.docs, docKey(documentID, editorID))
	w.mu.Unlock()
}

func (w *Workspace) Document(documentID, editorID string) (pointer.TextDocument, bool) {
	buffer, ok := w.Buffer(documentID, editorID)
	if !ok {
		return nil, false
	}
	return buffer, true
}

// Buffer falls back to the editor-less registration of the document.
func (w *Workspace) Buffer(documentID, editorID string) (*Buffer, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if editorID != "" {
		if buffer, ok := w.docs[docKey(documentID, editorID)]; ok {
			return buffer, true
		}
	}
	buffer, ok := w.docs[docKey(documentID, "")]
	return buffer, ok
}

// AnyDocument returns the editor-less buffer of the document, or else the
// buffer of the lowest editor id that has it open.
func (w *Workspace) AnyDocument(documentID string) (pointer.TextDocument, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if buffer, ok := w.docs[docKey(documentID, "")]; ok {
		return buffer, true
	}
	var (
		found    *Buffer
		editorID string
	)
	for key, buffer := range w.docs {
		if key.documentID != documentID {
			continue
		}
		if found == nil || key.editorID < editorID {
			found, editorID = buffer, key.editorID
		}
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

// DocumentIDs lists open documents, sorted.
func (w *Workspace) DocumentIDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	seen := make(map[string]struct{}, len(w.docs))
	for key := range w.docs {
		seen[key.documentID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ItemIDs lists open item views, sorted.
func (w *Workspace) ItemIDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]string, 0, len(w.items))
	for id := range w.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sections returns an item's section ids, sorted.
func (w *Workspace) Sections(documentID string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	item, ok := w.items[documentID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(item.Sections))
	for id := range item.Sections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *Workspace) PutItem(documentID string, sections map[string]string) {
	copied := make(map[string]string, len(sections))
	for k, v := range sections {
		copied[k] = v
	}
	w.mu.Lock()
	w.items[documentID] = &Item{ID: documentID, Sections: copied, marks: make(map[string]string)}
	w.mu.Unlock()
}

func (w *Workspace) SectionContent(documentID, sectionID string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	item, ok := w.items[documentID]
	if !ok {
		return "", false
	}
	content, ok := item.Sections[sectionID]
	return content, ok
}

func (w *Workspace) MarkSection(documentID, sectionID, threadID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	item, err := w.section(documentID, sectionID)
	if err != nil {
		return err
	}
	item.marks[sectionID] = threadID
	return nil
}

func (w *Workspace) UnmarkSection(documentID, sectionID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	item, err := w.section(documentID, sectionID)
	if err != nil {
		return err
	}
	delete(item.marks, sectionID)
	return nil
}

func (w *Workspace) FocusSection(documentID, sectionID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	item, err := w.section(documentID, sectionID)
	if err != nil {
		return err
	}
	item.focused = sectionID
	return nil
}

// SectionMark returns the thread marking a section, if any.
func (w *Workspace) SectionMark(documentID, sectionID string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	item, ok := w.items[documentID]
	if !ok {
		return "", false
	}
	threadID, ok := item.marks[sectionID]
	return threadID, ok
}

// FocusedSection returns the last focused section of an item.
func (w *Workspace) FocusedSection(documentID string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if item, ok := w.items[documentID]; ok {
		return item.focused
	}
	return ""
}

func (w *Workspace) section(documentID, sectionID string) (*Item, error) {
	item, ok := w.items[documentID]
	if !ok {
		return nil, fmt.Errorf("item %s not open", documentID)
	}
	if _, ok := item.Sections[sectionID]; !ok {
		return nil, fmt.Errorf("item %s has no section %s", documentID, sectionID)
	}
	return item, nil
}

type documentKey struct {
	documentID string
	editorID   string
}

func docKey(documentID, editorID string) documentKey {
	return documentKey{documentID: documentID, editorID: editorID}
}
