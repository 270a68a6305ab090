package export

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

// markedNode extends the stored node shape with text marks.
type markedNode struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs"`
	Content []markedNode   `json:"content"`
	Text    string         `json:"text"`
	Marks   []mark         `json:"marks"`
}

type mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs"`
}

// ContentHTML renders comment content. Plain text becomes a single
// escaped paragraph.
func ContentHTML(c store.Content) string {
	if !c.IsRich() {
		text := strings.TrimSpace(c.PlainText())
		if text == "" {
			return ""
		}
		return fmt.Sprintf("<p>%s</p>\n", html.EscapeString(text))
	}
	var root markedNode
	if err := json.Unmarshal(c.Rich, &root); err != nil {
		return fmt.Sprintf("<p>%s</p>\n", html.EscapeString(c.PlainText()))
	}
	return renderNode(root)
}

func renderNode(node markedNode) string {
	switch node.Type {
	case "":
		return ""
	case "doc":
		return renderContent(node.Content)
	case "paragraph":
		return fmt.Sprintf("<p>%s</p>\n", renderContent(node.Content))
	case "heading":
		level := 1
		if lvl, ok := node.Attrs["level"].(float64); ok && lvl >= 1 && lvl <= 6 {
			level = int(lvl)
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, renderContent(node.Content), level)
	case "bulletList":
		return fmt.Sprintf("<ul>\n%s</ul>\n", renderContent(node.Content))
	case "orderedList":
		return fmt.Sprintf("<ol>\n%s</ol>\n", renderContent(node.Content))
	case "listItem":
		return fmt.Sprintf("<li>%s</li>\n", renderContent(node.Content))
	case "blockquote":
		return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", renderContent(node.Content))
	case "codeBlock":
		// children are escaped text nodes already
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", renderContent(node.Content))
	case "text":
		return renderTextWithMarks(node.Text, node.Marks)
	case "mention":
		label, _ := node.Attrs["label"].(string)
		return fmt.Sprintf(`<span class="mention">%s</span>`, html.EscapeString(label))
	case "quoteReference":
		label, _ := node.Attrs["label"].(string)
		quoteID, _ := node.Attrs["quoteId"].(string)
		return fmt.Sprintf(`<q data-quote-id="%s">%s</q>`, html.EscapeString(quoteID), html.EscapeString(label))
	case "hardBreak":
		return "<br>"
	case "horizontalRule":
		return "<hr>\n"
	default:
		return renderContent(node.Content)
	}
}

func renderContent(content []markedNode) string {
	var result strings.Builder
	for _, child := range content {
		result.WriteString(renderNode(child))
	}
	return result.String()
}

func renderTextWithMarks(text string, marks []mark) string {
	if text == "" {
		return ""
	}
	htmlText := html.EscapeString(text)

	// innermost mark last
	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i].Type {
		case "bold":
			htmlText = fmt.Sprintf("<strong>%s</strong>", htmlText)
		case "italic":
			htmlText = fmt.Sprintf("<em>%s</em>", htmlText)
		case "code":
			htmlText = fmt.Sprintf("<code>%s</code>", htmlText)
		case "link":
			href, _ := marks[i].Attrs["href"].(string)
			if safeHref(href) {
				htmlText = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), htmlText)
			}
		case "strike":
			htmlText = fmt.Sprintf("<s>%s</s>", htmlText)
		case "underline":
			htmlText = fmt.Sprintf("<u>%s</u>", htmlText)
		}
	}
	return htmlText
}

// safeHref reports whether href may be emitted as a link target. Anything
// other than http, https and mailto renders as plain text.
func safeHref(href string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return true
	}
	return false
}
