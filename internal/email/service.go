// Package email notifies thread participants of new replies over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// BaseURL prefixes thread links in messages.
	BaseURL string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service sends mail through one SMTP relay.
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain-text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	if len(to) == 0 {
		return nil
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	boundary := "boundary-comments"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// ThreadLookup finds the thread a comment belongs to.
type ThreadLookup interface {
	Thread(id string) (store.Thread, bool)
}

// AddressBook maps user ids to mail addresses.
type AddressBook interface {
	Email(userID string) (string, bool)
}

// ReplyNotifier mails every other participant of a thread when a comment is
// added to it. Delivery runs in the background; failures are logged.
type ReplyNotifier struct {
	mail    *Service
	threads ThreadLookup
	book    AddressBook
	// deliver is replaced in tests to run synchronously.
	deliver func(func())
}

func NewReplyNotifier(mail *Service, threads ThreadLookup, book AddressBook) *ReplyNotifier {
	return &ReplyNotifier{
		mail:    mail,
		threads: threads,
		book:    book,
		deliver: func(fn func()) { go fn() },
	}
}

func (n *ReplyNotifier) ThreadChanged(context.Context, store.Thread) {}

func (n *ReplyNotifier) CommentAdded(_ context.Context, comment store.Comment) {
	if comment.ThreadID == "" || !n.mail.IsConfigured() {
		return
	}
	thread, ok := n.threads.Thread(comment.ThreadID)
	if !ok {
		return
	}
	to := n.recipients(thread, comment.AuthorID)
	if len(to) == 0 {
		return
	}
	data := replyData{
		Author:   comment.AuthorID,
		ThreadID: thread.ID,
		Body:     comment.Content.PlainText(),
		URL:      n.threadURL(thread.ID),
	}
	n.deliver(func() {
		subject := fmt.Sprintf("New reply from %s", comment.AuthorID)
		html, err := renderTemplate(replyEmailTemplate, data)
		if err != nil {
			log.Printf("email: render reply for %s: %v", thread.ID, err)
			return
		}
		if err := n.mail.SendHTMLEmail(to, subject, data.Text(), html); err != nil {
			log.Printf("email: notify %d participants of %s: %v", len(to), thread.ID, err)
		}
	})
}

func (n *ReplyNotifier) recipients(thread store.Thread, authorID string) []string {
	var to []string
	seen := map[string]bool{}
	for _, participant := range thread.Participants {
		if participant == authorID {
			continue
		}
		addr, ok := n.book.Email(participant)
		if !ok || seen[addr] {
			continue
		}
		seen[addr] = true
		to = append(to, addr)
	}
	return to
}

func (n *ReplyNotifier) threadURL(threadID string) string {
	base := strings.TrimRight(n.mail.config.BaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/threads/" + threadID
}

type replyData struct {
	Author   string
	ThreadID string
	Body     string
	URL      string
}

func (d replyData) Text() string {
	text := fmt.Sprintf("%s replied in thread %s:\r\n\r\n%s", d.Author, d.ThreadID, d.Body)
	if d.URL != "" {
		text += "\r\n\r\n" + d.URL
	}
	return text
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const replyEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New reply</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        blockquote { border-left: 3px solid #0066cc; margin: 16px 0; padding-left: 12px; color: #444; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; }
    </style>
</head>
<body>
    <p><strong>{{.Author}}</strong> replied in a thread you take part in.</p>
    <blockquote>{{.Body}}</blockquote>
    {{if .URL}}<p><a href="{{.URL}}" class="button">Open thread</a></p>{{end}}
</body>
</html>`
