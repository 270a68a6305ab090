package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/editor"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/quotes"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/rbac"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
)

// CommentsPlugin contributes the commenting commands of a text editor.
type CommentsPlugin struct {
	svc *Service
}

func (p *CommentsPlugin) Name() string { return "comments" }

func (p *CommentsPlugin) Commands() map[string]editor.Command {
	return map[string]editor.Command{
		"addComment":          p.addComment,
		"replyToThread":       p.reply,
		"resolveThread":       p.resolve,
		"focusThread":         p.focus,
		"toggleCommentsPanel": p.togglePanel,
	}
}

// addComment opens a thread on a text selection with an optional first comment.
func (p *CommentsPlugin) addComment(ctx context.Context, args map[string]any) (any, error) {
	const op = "editor.addComment"
	actor, err := commandActor(ctx, rbac.ActionComment)
	if err != nil {
		return nil, err
	}
	from, err := intArg(op, args, "from")
	if err != nil {
		return nil, err
	}
	to, err := intArg(op, args, "to")
	if err != nil {
		return nil, err
	}
	target := pointer.TextRange{
		Document: stringArg(args, "document"),
		EditorID: stringArg(args, "editorId"),
		From:     from,
		To:       to,
	}
	content, err := contentArg(op, args)
	if err != nil {
		return nil, err
	}
	var initial *store.Content
	if !content.IsEmpty() {
		initial = &content
	}
	return p.svc.CreateThread(ctx, actor, target, initial)
}

func (p *CommentsPlugin) reply(ctx context.Context, args map[string]any) (any, error) {
	const op = "editor.replyToThread"
	actor, err := commandActor(ctx, rbac.ActionComment)
	if err != nil {
		return nil, err
	}
	content, err := contentArg(op, args)
	if err != nil {
		return nil, err
	}
	return p.svc.AddComment(ctx, actor, stringArg(args, "threadId"), content)
}

func (p *CommentsPlugin) resolve(ctx context.Context, args map[string]any) (any, error) {
	actor, err := commandActor(ctx, rbac.ActionResolve)
	if err != nil {
		return nil, err
	}
	return p.svc.ResolveThread(ctx, actor, stringArg(args, "threadId"))
}

func (p *CommentsPlugin) focus(ctx context.Context, args map[string]any) (any, error) {
	if _, err := commandActor(ctx, rbac.ActionRead); err != nil {
		return nil, err
	}
	return p.svc.FocusThread(ctx, stringArg(args, "threadId"))
}

func (p *CommentsPlugin) togglePanel(ctx context.Context, _ map[string]any) (any, error) {
	if _, err := commandActor(ctx, rbac.ActionRead); err != nil {
		return nil, err
	}
	return p.svc.SetPanelVisible(nil), nil
}

// ReferencesPlugin contributes quote capture and quote references.
type ReferencesPlugin struct {
	svc *Service
}

func (p *ReferencesPlugin) Name() string { return "references" }

func (p *ReferencesPlugin) Commands() map[string]editor.Command {
	return map[string]editor.Command{
		"createQuote":          p.createQuote,
		"insertQuoteReference": p.insertReference,
		"removeQuoteReference": p.removeReference,
		"searchReferences":     p.searchReferences,
	}
}

func (p *ReferencesPlugin) createQuote(ctx context.Context, args map[string]any) (any, error) {
	const op = "editor.createQuote"
	actor, err := commandActor(ctx, rbac.ActionQuote)
	if err != nil {
		return nil, err
	}
	from, err := intArg(op, args, "from")
	if err != nil {
		return nil, err
	}
	to, err := intArg(op, args, "to")
	if err != nil {
		return nil, err
	}
	return p.svc.CreateQuote(ctx, actor, quotes.NewQuote{
		SourceDocument: stringArg(args, "document"),
		SourceRange:    pointer.Range{From: from, To: to},
		Text:           stringArg(args, "text"),
	})
}

func (p *ReferencesPlugin) insertReference(ctx context.Context, args map[string]any) (any, error) {
	const op = "editor.insertQuoteReference"
	actor, err := commandActor(ctx, rbac.ActionQuote)
	if err != nil {
		return nil, err
	}
	opts := quotes.ReferenceOptions{
		SourceDocument: stringArg(args, "sourceDocument"),
		ContextText:    stringArg(args, "contextText"),
	}
	if _, ok := args["position"]; ok {
		position, err := intArg(op, args, "position")
		if err != nil {
			return nil, err
		}
		opts.Position = &position
	}
	refType := store.ReferenceType(stringArg(args, "referenceType"))
	if refType == "" {
		refType = store.ReferenceCitation
	}
	return p.svc.CreateQuoteReference(ctx, actor, stringArg(args, "quoteId"), stringArg(args, "targetDocument"), refType, opts)
}

func (p *ReferencesPlugin) removeReference(ctx context.Context, args map[string]any) (any, error) {
	if _, err := commandActor(ctx, rbac.ActionQuote); err != nil {
		return nil, err
	}
	id := stringArg(args, "referenceId")
	if err := p.svc.RemoveQuoteReference(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"removed": id}, nil
}

func (p *ReferencesPlugin) searchReferences(ctx context.Context, args map[string]any) (any, error) {
	if _, err := commandActor(ctx, rbac.ActionRead); err != nil {
		return nil, err
	}
	return p.svc.PickReferences(stringArg(args, "query"), stringArg(args, "parentId"))
}

func commandActor(ctx context.Context, action rbac.Action) (Actor, error) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return Actor{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	if err := authorize(actor, action); err != nil {
		return Actor{}, err
	}
	return actor, nil
}

func stringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

// intArg accepts JSON numbers that hold whole values.
func intArg(op string, args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case int:
		return v, nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v), nil
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), nil
		}
	}
	return 0, apperr.Validation(op, fmt.Sprintf("%s must be an integer", key), map[string]any{"argument": key})
}

// contentArg reads "content" as plain text or a rich document.
func contentArg(op string, args map[string]any) (store.Content, error) {
	raw, ok := args["content"]
	if !ok || raw == nil {
		return store.Content{}, nil
	}
	if text, ok := raw.(string); ok {
		return store.TextContent(text), nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return store.Content{}, apperr.Validation(op, "content is not valid JSON", nil)
	}
	content, err := store.RichContent(encoded)
	if err != nil {
		return store.Content{}, apperr.Validation(op, err.Error(), nil)
	}
	return content, nil
}
