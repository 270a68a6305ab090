package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

type fakeThreads map[string]store.Thread

func (f fakeThreads) Thread(id string) (store.Thread, bool) {
	t, ok := f[id]
	return t, ok
}

type fakeBook map[string]string

func (f fakeBook) Email(userID string) (string, bool) {
	addr, ok := f[userID]
	return addr, ok
}

type sentMail struct {
	addr string
	to   []string
	msg  string
}

func newTestService(sent *[]sentMail, sendErr error) *Service {
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "noreply@example.com", FromName: "Comments", BaseURL: "https://app.example.com/"})
	svc.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		*sent = append(*sent, sentMail{addr: addr, to: to, msg: string(msg)})
		return sendErr
	}
	return svc
}

func TestIsConfigured(t *testing.T) {
	if NewService(Config{Host: "smtp.example.com", Port: "25"}).IsConfigured() {
		t.Fatalf("missing From should not be configured")
	}
	if err := NewService(Config{}).SendHTMLEmail([]string{"a@example.com"}, "s", "t", "h"); err == nil {
		t.Fatalf("expected error when not configured")
	}
}

func TestReplyNotifierMailsOtherParticipants(t *testing.T) {
	var sent []sentMail
	notifier := NewReplyNotifier(newTestService(&sent, nil), fakeThreads{
		"thr_1": {ID: "thr_1", Participants: []string{"alice", "bob", "carol", "dave"}},
	}, fakeBook{
		"alice": "alice@example.com",
		"bob":   "bob@example.com",
		"dave":  "bob@example.com",
	})
	notifier.deliver = func(fn func()) { fn() }

	notifier.CommentAdded(context.Background(), store.Comment{
		ID: "c1", ThreadID: "thr_1", AuthorID: "alice", Content: store.TextContent("<b>ship it</b>"),
	})

	if len(sent) != 1 {
		t.Fatalf("sent = %d messages", len(sent))
	}
	if diff := cmp.Diff([]string{"bob@example.com"}, sent[0].to); diff != "" {
		t.Fatalf("recipients mismatch (-want +got):\n%s", diff)
	}
	if sent[0].addr != "smtp.example.com:587" {
		t.Fatalf("addr = %s", sent[0].addr)
	}
	for _, want := range []string{
		"Subject: New reply from alice",
		"From: Comments <noreply@example.com>",
		"alice replied in thread thr_1",
		"https://app.example.com/threads/thr_1",
		"&lt;b&gt;ship it&lt;/b&gt;",
	} {
		if !strings.Contains(sent[0].msg, want) {
			t.Fatalf("message missing %q:\n%s", want, sent[0].msg)
		}
	}
}

func TestReplyNotifierSkips(t *testing.T) {
	var sent []sentMail
	threads := fakeThreads{"thr_1": {ID: "thr_1", Participants: []string{"alice"}}}
	notifier := NewReplyNotifier(newTestService(&sent, errors.New("relay down")), threads, fakeBook{"alice": "alice@example.com"})
	notifier.deliver = func(fn func()) { fn() }

	ctx := context.Background()
	notifier.CommentAdded(ctx, store.Comment{ID: "c1", ThreadID: "thr_1", AuthorID: "alice", Content: store.TextContent("self")})
	notifier.CommentAdded(ctx, store.Comment{ID: "c2", EntityType: "task", EntityID: "T-1", AuthorID: "bob", Content: store.TextContent("entity")})
	notifier.CommentAdded(ctx, store.Comment{ID: "c3", ThreadID: "thr_missing", AuthorID: "bob", Content: store.TextContent("lost")})
	if len(sent) != 0 {
		t.Fatalf("unexpected mail: %+v", sent)
	}

	notifier.CommentAdded(ctx, store.Comment{ID: "c4", ThreadID: "thr_1", AuthorID: "bob", Content: store.TextContent("reply")})
	if len(sent) != 1 {
		t.Fatalf("send failure should still attempt delivery once, got %d", len(sent))
	}
}
