package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

func rich(t *testing.T, doc string) store.Content {
	t.Helper()
	c, err := store.RichContent(json.RawMessage(doc))
	if err != nil {
		t.Fatalf("RichContent: %v", err)
	}
	return c
}

func TestContentHTML(t *testing.T) {
	tests := []struct {
		name     string
		content  store.Content
		expected string
	}{
		{
			name:     "empty plain text",
			content:  store.TextContent("  "),
			expected: "",
		},
		{
			name:     "plain text is escaped",
			content:  store.TextContent("a < b"),
			expected: "<p>a &lt; b</p>",
		},
		{
			name:     "simple paragraph",
			content:  rich(t, `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hello world"}]}]}`),
			expected: "<p>Hello world</p>",
		},
		{
			name:     "heading with levels",
			content:  rich(t, `{"type":"doc","content":[{"type":"heading","attrs":{"level":2},"content":[{"type":"text","text":"Section Title"}]}]}`),
			expected: "<h2>Section Title</h2>",
		},
		{
			name:     "bold and italic text",
			content:  rich(t, `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Bold and italic","marks":[{"type":"bold"},{"type":"italic"}]}]}]}`),
			expected: "<strong><em>Bold and italic</em></strong>",
		},
		{
			name:     "bullet list",
			content:  rich(t, `{"type":"doc","content":[{"type":"bulletList","content":[{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"Item 1"}]}]}]}]}`),
			expected: "<ul>",
		},
		{
			name:     "code block escapes once",
			content:  rich(t, `{"type":"doc","content":[{"type":"codeBlock","content":[{"type":"text","text":"a && b"}]}]}`),
			expected: "<pre><code>a &amp;&amp; b</code></pre>",
		},
		{
			name:     "mention",
			content:  rich(t, `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"mention","attrs":{"label":"@alice"}}]}]}`),
			expected: `<span class="mention">@alice</span>`,
		},
		{
			name:     "quote reference",
			content:  rich(t, `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"quoteReference","attrs":{"label":"Plan","quoteId":"quo_1"}}]}]}`),
			expected: `<q data-quote-id="quo_1">Plan</q>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strings.TrimSpace(ContentHTML(tt.content))
			if tt.expected == "" {
				if result != "" {
					t.Errorf("ContentHTML() = %q, want empty", result)
				}
				return
			}
			if !strings.Contains(result, tt.expected) {
				t.Errorf("ContentHTML() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestContentHTMLLinkSchemes(t *testing.T) {
	tests := []struct {
		href     string
		expected string
	}{
		{href: "https://example.com/a?b=1&c=2", expected: `<p><a href="https://example.com/a?b=1&amp;c=2">click</a></p>`},
		{href: "http://example.com", expected: `<p><a href="http://example.com">click</a></p>`},
		{href: "mailto:alice@example.com", expected: `<p><a href="mailto:alice@example.com">click</a></p>`},
		{href: "javascript:alert(1)", expected: "<p>click</p>"},
		{href: " JavaScript:alert(1)", expected: "<p>click</p>"},
		{href: "data:text/html,<script>alert(1)</script>", expected: "<p>click</p>"},
		{href: "/relative/path", expected: "<p>click</p>"},
		{href: "", expected: "<p>click</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			attrs, _ := json.Marshal(map[string]string{"href": tt.href})
			doc := `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"click","marks":[{"type":"link","attrs":` + string(attrs) + `}]}]}]}`
			result := strings.TrimSpace(ContentHTML(rich(t, doc)))
			if result != tt.expected {
				t.Errorf("ContentHTML() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"thr_01HX", "thr_01HX"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "thread"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := sanitizeFilename(tt.input); result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func transcript(t *testing.T) Transcript {
	created := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	return Transcript{
		Thread: store.Thread{ID: "thr_1", Status: store.StatusResolved, CreatedBy: "alice", CreatedAt: created, ResolvedBy: "bob"},
		Anchors: []Anchor{
			{Type: "tiptap-text-range", Document: "doc1", Excerpt: "<script>"},
		},
		Comments: []store.Comment{
			{ID: "c1", AuthorID: "alice", Content: store.TextContent("Looks off"), Timestamp: created},
			{ID: "c2", AuthorID: "bob", Content: rich(t, `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Fixed","marks":[{"type":"bold"}]}]}]}`), Timestamp: created.Add(time.Minute)},
		},
	}
}

func TestRenderHTML(t *testing.T) {
	result, err := Render(transcript(t), FormatHTML)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := string(result.Data)
	if result.Filename != "thread-thr_1.html" || !strings.HasPrefix(result.MimeType, "text/html") {
		t.Fatalf("unexpected result metadata: %+v", result)
	}
	for _, want := range []string{"<p>Looks off</p>", "<strong>Fixed</strong>", "&lt;script&gt;", "resolved by bob", `class="status-resolved"`} {
		if !strings.Contains(body, want) {
			t.Errorf("html missing %q:\n%s", want, body)
		}
	}
	if strings.Index(body, "Looks off") > strings.Index(body, "Fixed") {
		t.Errorf("comments out of order")
	}
}

func TestRenderText(t *testing.T) {
	result, err := Render(transcript(t), FormatText)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := string(result.Data)
	for _, want := range []string{"Thread thr_1 (resolved)", "Resolved by bob", `> [tiptap-text-range] doc1: "<script>"`, "bob, 2026-05-02T10:01:00Z\nFixed"} {
		if !strings.Contains(body, want) {
			t.Errorf("text missing %q:\n%s", want, body)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatHTML {
		t.Fatalf("default format = %q, %v", f, err)
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Render(Transcript{}, Format("docx")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat from Render, got %v", err)
	}
}
