// Package editor provides in-process stand-ins for the rich-text editor and
// item views the commenting core talks to, plus the command host editors use
// to declare which commands they support.
package editor

import (
	"fmt"
	"sort"
	"sync"
)

// Highlight is a thread mark over [From, To).
type Highlight struct {
	From     int
	To       int
	ThreadID string
}

// Buffer is a plain-text document addressed by rune positions.
type Buffer struct {
	mu         sync.RWMutex
	text       []rune
	highlights []Highlight
	selection  [2]int
	focused    bool
}

func NewBuffer(text string) *Buffer {
	return &Buffer{text: []rune(text)}
}

func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.text)
}

func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.text)
}

func (b *Buffer) TextBetween(from, to int) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkRange(from, to); err != nil {
		return "", err
	}
	return string(b.text[from:to]), nil
}

// Insert adds text at pos. Existing highlights are not remapped.
func (b *Buffer) Insert(pos int, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos < 0 || pos > len(b.text) {
		return fmt.Errorf("insert position %d outside document of size %d", pos, len(b.text))
	}
	inserted := []rune(text)
	out := make([]rune, 0, len(b.text)+len(inserted))
	out = append(out, b.text[:pos]...)
	out = append(out, inserted...)
	out = append(out, b.text[pos:]...)
	b.text = out
	return nil
}

// Delete removes [from, to) and drops highlights that no longer fit.
func (b *Buffer) Delete(from, to int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkRange(from, to); err != nil {
		return err
	}
	b.text = append(b.text[:from:from], b.text[to:]...)
	kept := b.highlights[:0]
	for _, h := range b.highlights {
		if h.To <= len(b.text) {
			kept = append(kept, h)
		}
	}
	b.highlights = kept
	return nil
}

func (b *Buffer) SetHighlight(from, to int, threadID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkRange(from, to); err != nil {
		return err
	}
	for _, h := range b.highlights {
		if h.From == from && h.To == to && h.ThreadID == threadID {
			return nil
		}
	}
	b.highlights = append(b.highlights, Highlight{From: from, To: to, ThreadID: threadID})
	return nil
}

func (b *Buffer) ClearHighlight(from, to int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.highlights[:0]
	for _, h := range b.highlights {
		if h.From == from && h.To == to {
			continue
		}
		kept = append(kept, h)
	}
	b.highlights = kept
	return nil
}

func (b *Buffer) Focus(from, to int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkRange(from, to); err != nil {
		return err
	}
	b.selection = [2]int{from, to}
	b.focused = true
	return nil
}

// Selection returns the focused range, if any.
func (b *Buffer) Selection() (from, to int, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selection[0], b.selection[1], b.focused
}

// Highlights returns a copy ordered by position.
func (b *Buffer) Highlights() []Highlight {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := append([]Highlight(nil), b.highlights...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func (b *Buffer) checkRange(from, to int) error {
	if from < 0 || from > to || to > len(b.text) {
		return fmt.Errorf("range [%d,%d) outside document of size %d", from, to, len(b.text))
	}
	return nil
}
