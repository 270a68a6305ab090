// Package export renders comment threads as standalone transcripts.
package export

import (
	"errors"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// Transcript is a thread together with everything needed to print it.
type Transcript struct {
	Thread   store.Thread
	Anchors  []Anchor
	Comments []store.Comment
}

// Anchor describes one of the thread's pointers for readers.
type Anchor struct {
	Type     string
	Document string
	Excerpt  string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var ErrUnsupportedFormat = errors.New("unsupported export format")

func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

func formatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}
