package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/auth"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/export"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/pointer"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/quotes"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/rbac"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/textindex"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"baseline": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["baseline"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		actor, err := s.resolveActor(r)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "tokenRequired": s.service.RequiresToken()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"tokenRequired": s.service.RequiresToken(),
			"actor":         actor,
			"actions":       rbac.Actions(actor.Role),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			UserID   string `json:"userId"`
			Name     string `json:"name"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		token, actor, err := s.service.Login(body.UserID, body.Name, body.Password)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": token, "actor": actor})
		return
	}

	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "threads":
		s.handleThreads(w, r, actor, parts[2:])
	case "entities":
		s.handleEntities(w, r, actor, parts[2:])
	case "quotes":
		s.handleQuotes(w, r, actor, parts[2:])
	case "references":
		s.handleReferences(w, r, actor, parts[2:])
	case "documents", "items":
		s.handleDocuments(w, r, actor, parts[1], parts[2:])
	case "editor":
		s.handleEditor(w, r, actor, parts[2:])
	case "ui":
		s.handleUI(w, r, actor, parts[2:])
	default:
		s.handleOperations(w, r, actor, parts[1:])
	}
}

func (s *HTTPServer) handleThreads(w http.ResponseWriter, r *http.Request, actor Actor, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, actor, rbac.ActionRead) {
				return
			}
			query := r.URL.Query()
			items := s.service.Threads(ThreadFilter{
				DocumentID:  strings.TrimSpace(query.Get("documentId")),
				PointerType: pointer.Type(strings.TrimSpace(query.Get("pointerType"))),
				Status:      store.Status(strings.TrimSpace(query.Get("status"))),
			})
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
		case http.MethodPost:
			if !s.allow(w, actor, rbac.ActionComment) {
				return
			}
			var body struct {
				Pointer json.RawMessage `json:"pointer"`
				Content *store.Content  `json:"content"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			p, err := pointer.DecodeJSON(body.Pointer)
			if err != nil {
				s.fail(w, err)
				return
			}
			view, err := s.service.CreateThread(r.Context(), actor, p, body.Content)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, view)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	threadID := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		view, err := s.service.Thread(threadID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case parts[1] == "comments" && r.Method == http.MethodPost:
		if !s.allow(w, actor, rbac.ActionComment) {
			return
		}
		var body struct {
			Content store.Content `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		comment, err := s.service.AddComment(r.Context(), actor, threadID, body.Content)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)

	case parts[1] == "resolve" && r.Method == http.MethodPost:
		if !s.allow(w, actor, rbac.ActionResolve) {
			return
		}
		view, err := s.service.ResolveThread(r.Context(), actor, threadID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case parts[1] == "pointers" && r.Method == http.MethodPost:
		if !s.allow(w, actor, rbac.ActionResolve) {
			return
		}
		var body struct {
			Pointer json.RawMessage `json:"pointer"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		p, err := pointer.DecodeJSON(body.Pointer)
		if err != nil {
			s.fail(w, err)
			return
		}
		view, err := s.service.AttachPointer(r.Context(), threadID, p)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case parts[1] == "pointers" && r.Method == http.MethodPut:
		if !s.allow(w, actor, rbac.ActionResolve) {
			return
		}
		var body struct {
			Old  json.RawMessage `json:"old"`
			Next json.RawMessage `json:"next"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		old, err := pointer.DecodeJSON(body.Old)
		if err != nil {
			s.fail(w, err)
			return
		}
		next, err := pointer.DecodeJSON(body.Next)
		if err != nil {
			s.fail(w, err)
			return
		}
		view, err := s.service.ReplacePointer(r.Context(), threadID, old, next)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case parts[1] == "focus" && r.Method == http.MethodPost:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		view, err := s.service.FocusThread(r.Context(), threadID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case parts[1] == "export" && r.Method == http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		format, err := export.ParseFormat(strings.TrimSpace(r.URL.Query().Get("format")))
		if err != nil {
			s.fail(w, err)
			return
		}
		result, err := s.service.Export(r.Context(), threadID, format)
		if err != nil {
			s.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleEntities(w http.ResponseWriter, r *http.Request, actor Actor, parts []string) {
	if len(parts) != 3 || parts[2] != "comments" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	entityType, entityID := parts[0], parts[1]
	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": s.service.CommentsOn(entityType, entityID)})
	case http.MethodPost:
		if !s.allow(w, actor, rbac.ActionComment) {
			return
		}
		var body struct {
			Content store.Content `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		comment, err := s.service.CommentOn(r.Context(), actor, entityType, entityID, body.Content)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleQuotes(w http.ResponseWriter, r *http.Request, actor Actor, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		if documentID := strings.TrimSpace(r.URL.Query().Get("documentId")); documentID != "" {
			writeJSON(w, http.StatusOK, map[string]any{"items": s.service.QuotesInDocument(documentID)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": s.service.Quotes()})

	case len(parts) == 0 && r.Method == http.MethodPost:
		if !s.allow(w, actor, rbac.ActionQuote) {
			return
		}
		var body struct {
			SourceDocument string        `json:"sourceDocument"`
			SourceRange    pointer.Range `json:"sourceRange"`
			Text           string        `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		quote, err := s.service.CreateQuote(r.Context(), actor, quotes.NewQuote{
			SourceDocument: body.SourceDocument,
			SourceRange:    body.SourceRange,
			Text:           body.Text,
		})
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, quote)

	case len(parts) == 1 && parts[0] == "trending" && r.Method == http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		limit := queryInt(r, "limit", 10)
		writeJSON(w, http.StatusOK, map[string]any{"items": s.service.TrendingQuotes(limit)})

	case len(parts) == 1 && r.Method == http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		quote, err := s.service.Quote(parts[0])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quote": quote, "references": s.service.QuoteReferences(quote.ID)})

	case len(parts) == 2 && parts[1] == "usage" && r.Method == http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		usage, err := s.service.QuoteUsage(parts[0])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, usage)

	case len(parts) == 2 && parts[1] == "references" && r.Method == http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": s.service.QuoteReferences(parts[0])})

	case len(parts) == 2 && parts[1] == "references" && r.Method == http.MethodPost:
		if !s.allow(w, actor, rbac.ActionQuote) {
			return
		}
		var body struct {
			TargetDocument string              `json:"targetDocument"`
			ReferenceType  store.ReferenceType `json:"referenceType"`
			SourceDocument string              `json:"sourceDocument"`
			ContextText    string              `json:"contextText"`
			Position       *int                `json:"position"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ref, err := s.service.CreateQuoteReference(r.Context(), actor, parts[0], body.TargetDocument, body.ReferenceType, quotes.ReferenceOptions{
			SourceDocument: body.SourceDocument,
			ContextText:    body.ContextText,
			Position:       body.Position,
		})
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ref)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReferences(w http.ResponseWriter, r *http.Request, actor Actor, parts []string) {
	if len(parts) != 1 || r.Method != http.MethodDelete {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if !s.allow(w, actor, rbac.ActionQuote) {
		return
	}
	if err := s.service.RemoveQuoteReference(r.Context(), parts[0]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": parts[0]})
}

type documentResponse struct {
	DocumentID string          `json:"documentId"`
	EditorID   string          `json:"editorId,omitempty"`
	Text       string          `json:"text"`
	Highlights []highlightJSON `json:"highlights"`
	Threads    []store.Thread  `json:"threads"`
}

type highlightJSON struct {
	From     int    `json:"from"`
	To       int    `json:"to"`
	ThreadID string `json:"threadId"`
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, actor Actor, kind string, parts []string) {
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if !s.allow(w, actor, rbac.ActionRead) {
		return
	}
	documentID := parts[0]
	editorID := strings.TrimSpace(r.URL.Query().Get("editorId"))

	switch {
	case kind == "items" && r.Method == http.MethodPut:
		var body struct {
			Sections map[string]string `json:"sections"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.PutItem(documentID, body.Sections); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"itemId": documentID, "sections": len(body.Sections)})

	case kind == "documents" && r.Method == http.MethodPut:
		var body struct {
			EditorID string `json:"editorId"`
			Text     string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.OpenDocument(documentID, body.EditorID, body.Text); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.documentResponse(documentID, body.EditorID))

	case kind == "documents" && r.Method == http.MethodPatch:
		var body struct {
			EditorID string       `json:"editorId"`
			Edit     DocumentEdit `json:"edit"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.EditDocument(documentID, body.EditorID, body.Edit); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.documentResponse(documentID, body.EditorID))

	case kind == "documents" && r.Method == http.MethodGet:
		if _, ok := s.service.Workspace().Buffer(documentID, editorID); !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Document not open", map[string]any{"documentId": documentID})
			return
		}
		writeJSON(w, http.StatusOK, s.documentResponse(documentID, editorID))

	case kind == "documents" && r.Method == http.MethodDelete:
		s.service.CloseDocument(documentID, editorID)
		writeJSON(w, http.StatusOK, map[string]any{"closed": documentID})

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) documentResponse(documentID, editorID string) documentResponse {
	response := documentResponse{
		DocumentID: documentID,
		EditorID:   editorID,
		Highlights: []highlightJSON{},
		Threads:    s.service.Threads(ThreadFilter{DocumentID: documentID}),
	}
	if buffer, ok := s.service.Workspace().Buffer(documentID, editorID); ok {
		response.Text = buffer.Text()
		for _, h := range buffer.Highlights() {
			response.Highlights = append(response.Highlights, highlightJSON{From: h.From, To: h.To, ThreadID: h.ThreadID})
		}
	}
	return response
}

func (s *HTTPServer) handleEditor(w http.ResponseWriter, r *http.Request, actor Actor, parts []string) {
	switch {
	case len(parts) == 1 && parts[0] == "commands" && r.Method == http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": s.service.Commands(r.URL.Query().Get("q"))})

	case len(parts) == 2 && parts[0] == "commands" && r.Method == http.MethodPost:
		var body struct {
			Args map[string]any `json:"args"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.Exec(r.Context(), actor, parts[1], body.Args)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"command": parts[1], "result": result})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUI(w http.ResponseWriter, r *http.Request, actor Actor, parts []string) {
	if !s.allow(w, actor, rbac.ActionRead) {
		return
	}
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.service.UIState())

	case len(parts) == 0 && r.Method == http.MethodPut:
		var body struct {
			ActiveThreadID *string `json:"activeThreadId"`
			PanelVisible   *bool   `json:"panelVisible"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.ActiveThreadID != nil {
			if _, err := s.service.SetActiveThread(strings.TrimSpace(*body.ActiveThreadID)); err != nil {
				s.fail(w, err)
				return
			}
		}
		if body.PanelVisible != nil {
			s.service.SetPanelVisible(body.PanelVisible)
		}
		writeJSON(w, http.StatusOK, s.service.UIState())

	case len(parts) == 1 && parts[0] == "toggle-panel" && r.Method == http.MethodPost:
		writeJSON(w, http.StatusOK, s.service.SetPanelVisible(nil))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleOperations(w http.ResponseWriter, r *http.Request, actor Actor, parts []string) {
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	switch {
	case parts[0] == "search" && r.Method == http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		query := r.URL.Query()
		writeJSON(w, http.StatusOK, s.service.Search(textindex.Query{
			Text:       strings.TrimSpace(query.Get("q")),
			FilterType: textindex.ResultType(strings.TrimSpace(query.Get("type"))),
			DocumentID: strings.TrimSpace(query.Get("documentId")),
			Status:     strings.TrimSpace(query.Get("status")),
			Limit:      queryInt(r, "limit", 0),
			Offset:     queryInt(r, "offset", 0),
		}))

	case parts[0] == "picker" && r.Method == http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		query := r.URL.Query()
		response, err := s.service.PickReferences(query.Get("q"), strings.TrimSpace(query.Get("parentId")))
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response)

	case parts[0] == "stats" && r.Method == http.MethodGet:
		if !s.allow(w, actor, rbac.ActionRead) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stats":        s.service.Stats(),
			"participants": s.service.Participants(),
		})

	case parts[0] == "save" && r.Method == http.MethodPost:
		if !s.allow(w, actor, rbac.ActionComment) {
			return
		}
		if err := s.service.Save(r.Context()); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.service.UIState())

	case parts[0] == "publish" && r.Method == http.MethodPost:
		if !s.allow(w, actor, rbac.ActionAdmin) {
			return
		}
		result, err := s.service.Publish(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case parts[0] == "reindex" && r.Method == http.MethodPost:
		if !s.allow(w, actor, rbac.ActionAdmin) {
			return
		}
		s.service.Reindex()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// resolveActor reads the bearer token, or the X-User-ID header when tokens
// are not required.
func (s *HTTPServer) resolveActor(r *http.Request) (Actor, error) {
	if !s.service.RequiresToken() {
		return s.service.AnonymousActor(r.Header.Get("X-User-ID")), nil
	}
	token := bearerToken(r)
	if token == "" {
		return Actor{}, auth.ErrInvalidToken
	}
	return s.service.ActorFromToken(token)
}

func (s *HTTPServer) requireActor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	actor, err := s.resolveActor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Actor{}, false
	}
	return actor, true
}

func (s *HTTPServer) allow(w http.ResponseWriter, actor Actor, action rbac.Action) bool {
	if err := authorize(actor, action); err != nil {
		s.fail(w, err)
		return false
	}
	return true
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("app: %v", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-User-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
