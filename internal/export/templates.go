package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

var transcriptTemplate = template.Must(template.New("thread").Funcs(template.FuncMap{
	"lower":      strings.ToLower,
	"formatDate": formatDate,
}).Parse(transcriptHTML))

type templateData struct {
	ID         string
	Status     string
	CreatedBy  string
	CreatedAt  time.Time
	ResolvedBy string
	Anchors    []Anchor
	Comments   []templateComment
}

type templateComment struct {
	Author    string
	Timestamp time.Time
	Body      template.HTML
}

// Render produces the transcript in the requested format.
func Render(t Transcript, format Format) (Result, error) {
	filename := "thread-" + sanitizeFilename(t.Thread.ID)
	switch format {
	case FormatHTML:
		body, err := renderHTML(t)
		if err != nil {
			return Result{}, fmt.Errorf("render template: %w", err)
		}
		return Result{Data: []byte(body), Filename: filename + ".html", MimeType: "text/html; charset=utf-8"}, nil
	case FormatText:
		return Result{Data: []byte(renderText(t)), Filename: filename + ".txt", MimeType: "text/plain; charset=utf-8"}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func renderHTML(t Transcript) (string, error) {
	data := templateData{
		ID:         t.Thread.ID,
		Status:     string(t.Thread.Status),
		CreatedBy:  t.Thread.CreatedBy,
		CreatedAt:  t.Thread.CreatedAt,
		ResolvedBy: t.Thread.ResolvedBy,
		Anchors:    t.Anchors,
	}
	for _, c := range t.Comments {
		data.Comments = append(data.Comments, templateComment{
			Author:    c.AuthorID,
			Timestamp: c.Timestamp,
			// ContentHTML escapes every text node
			Body: template.HTML(ContentHTML(c.Content)),
		})
	}
	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderText(t Transcript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thread %s (%s)\n", t.Thread.ID, t.Thread.Status)
	fmt.Fprintf(&b, "Opened by %s on %s\n", t.Thread.CreatedBy, formatDate(t.Thread.CreatedAt, time.RFC3339))
	if t.Thread.ResolvedBy != "" {
		fmt.Fprintf(&b, "Resolved by %s\n", t.Thread.ResolvedBy)
	}
	for _, a := range t.Anchors {
		fmt.Fprintf(&b, "> [%s] %s", a.Type, a.Document)
		if a.Excerpt != "" {
			fmt.Fprintf(&b, ": %q", a.Excerpt)
		}
		b.WriteString("\n")
	}
	for _, c := range t.Comments {
		fmt.Fprintf(&b, "\n%s, %s\n%s\n", c.AuthorID, formatDate(c.Timestamp, time.RFC3339), c.Content.PlainText())
	}
	return b.String()
}

func sanitizeFilename(title string) string {
	var result strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result.WriteRune(r)
		case r == ' ':
			result.WriteByte('-')
		case r == '-', r == '_':
			result.WriteRune(r)
		}
	}
	out := result.String()
	if len(out) > 50 {
		out = out[:50]
	}
	if out == "" {
		out = "thread"
	}
	return out
}

const transcriptHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Thread {{.ID}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .anchor { background: #f5f5f5; padding: 0.5rem 1rem; border-left: 3px solid #333; }
    .comment { margin: 1rem 0; }
    .status-resolved { color: #2a7a2a; }
  </style>
</head>
<body>
  <h1>Thread {{.ID}}</h1>
  <div class="meta"><span class="status-{{lower .Status}}">{{.Status}}</span> | {{.CreatedBy}} | {{formatDate .CreatedAt "Jan 2, 2006"}}{{if .ResolvedBy}} | resolved by {{.ResolvedBy}}{{end}}</div>
  {{range .Anchors}}<blockquote class="anchor"><strong>{{.Type}}</strong> {{.Document}}{{if .Excerpt}}: {{.Excerpt}}{{end}}</blockquote>
  {{end}}
  {{range .Comments}}<div class="comment">
    <div class="meta">{{.Author}} | {{formatDate .Timestamp "Jan 2, 2006 15:04"}}</div>
    {{.Body}}
  </div>
  {{end}}
</body>
</html>`
