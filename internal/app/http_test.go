package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/auth"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/authpw"
)

func serve(t *testing.T, server *HTTPServer, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func bearer(t *testing.T, issuer *auth.Issuer, userID, role string) map[string]string {
	t.Helper()
	token, _, err := issuer.Issue(userID, "", role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.svc, "*")

	rr := serve(t, server, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("health = %d headers=%v", rr.Code, rr.Header())
	}

	rr = serve(t, server, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("ready = %d body=%s", rr.Code, rr.Body.String())
	}

	env.baseline.pingFn = func(context.Context) error { return errors.New("connection refused") }
	rr = serve(t, server, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if payload := decode(t, rr); payload["status"] != "not_ready" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestThreadLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.svc, "*")
	user := map[string]string{"X-User-ID": "alice"}

	rr := serve(t, server, http.MethodPut, "/api/documents/doc1", `{"text":"The launch slipped a week"}`, user)
	if rr.Code != http.StatusOK {
		t.Fatalf("open document = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = serve(t, server, http.MethodPost, "/api/threads", `{"pointer":{"type":"tiptap-text-range","documentId":"doc1","from":4,"to":10},"content":"Why?"}`, user)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create thread = %d body=%s", rr.Code, rr.Body.String())
	}
	created := decode(t, rr)
	threadID, _ := created["id"].(string)
	if threadID == "" {
		t.Fatalf("missing thread id: %v", created)
	}

	rr = serve(t, server, http.MethodPost, "/api/threads/"+threadID+"/comments", `{"content":"Vendor delay"}`, map[string]string{"X-User-ID": "bob"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add comment = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = serve(t, server, http.MethodGet, "/api/documents/doc1", "", user)
	doc := decode(t, rr)
	if highlights, _ := doc["highlights"].([]any); len(highlights) != 1 {
		t.Fatalf("highlights = %v", doc["highlights"])
	}

	rr = serve(t, server, http.MethodPost, "/api/threads/"+threadID+"/resolve", "", user)
	if rr.Code != http.StatusOK {
		t.Fatalf("resolve = %d body=%s", rr.Code, rr.Body.String())
	}
	resolved := decode(t, rr)
	if resolved["status"] != "resolved" {
		t.Fatalf("status = %v", resolved["status"])
	}
	if comments, _ := resolved["comments"].([]any); len(comments) != 2 {
		t.Fatalf("comments = %v", resolved["comments"])
	}
	participants, _ := resolved["participants"].([]any)
	if len(participants) != 2 {
		t.Fatalf("participants = %v", participants)
	}

	rr = serve(t, server, http.MethodGet, "/api/threads?status=resolved&documentId=doc1", "", user)
	if items, _ := decode(t, rr)["items"].([]any); len(items) != 1 {
		t.Fatalf("filtered threads = %s", rr.Body.String())
	}

	rr = serve(t, server, http.MethodGet, "/api/threads/"+threadID+"/export?format=text", "", user)
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("export = %d type=%s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "thread-"+threadID+".txt") {
		t.Fatalf("disposition = %s", rr.Header().Get("Content-Disposition"))
	}

	rr = serve(t, server, http.MethodGet, "/api/threads/"+threadID+"/export?format=pdf", "", user)
	if rr.Code != http.StatusBadRequest || decode(t, rr)["code"] != "UNSUPPORTED_FORMAT" {
		t.Fatalf("pdf export = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateThreadValidationOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.svc, "*")
	_ = env.svc.OpenDocument("doc1", "", "tiny")

	rr := serve(t, server, http.MethodPost, "/api/threads", `{"pointer":{"type":"tiptap-text-range","documentId":"doc1","from":2,"to":40}}`, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code := decode(t, rr)["code"]; code != "VALIDATION_ERROR" {
		t.Fatalf("code = %v", code)
	}

	rr = serve(t, server, http.MethodPost, "/api/threads", `{"pointer":`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = serve(t, server, http.MethodGet, "/api/threads/thr_missing", "", nil)
	if rr.Code != http.StatusNotFound || decode(t, rr)["code"] != "NOT_FOUND" {
		t.Fatalf("missing thread = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestTokenRequiredWhenIssuerConfigured(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour)
	env := newTestEnv(t, func(d *Deps) { d.Issuer = issuer })
	server := NewHTTPServer(env.svc, "*")

	rr := serve(t, server, http.MethodGet, "/api/threads", "", map[string]string{"X-User-ID": "alice"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", rr.Code)
	}

	rr = serve(t, server, http.MethodGet, "/api/threads", "", map[string]string{"Authorization": "Bearer forged.token"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rr.Code)
	}

	rr = serve(t, server, http.MethodPost, "/api/session/login", `{"userId":"alice","name":"Alice"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login = %d body=%s", rr.Code, rr.Body.String())
	}
	token, _ := decode(t, rr)["token"].(string)
	if token == "" {
		t.Fatalf("missing token")
	}

	rr = serve(t, server, http.MethodGet, "/api/session", "", map[string]string{"Authorization": "Bearer " + token})
	session := decode(t, rr)
	if session["authenticated"] != true {
		t.Fatalf("session = %v", session)
	}
	actor, _ := session["actor"].(map[string]any)
	if actor["userId"] != "alice" || actor["role"] != "editor" {
		t.Fatalf("actor = %v", actor)
	}
}

func TestViewerCannotComment(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour)
	env := newTestEnv(t, func(d *Deps) { d.Issuer = issuer })
	server := NewHTTPServer(env.svc, "*")
	_ = env.svc.OpenDocument("doc1", "", "read only text")
	viewerHeaders := bearer(t, issuer, "val", "viewer")

	rr := serve(t, server, http.MethodGet, "/api/threads", "", viewerHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("viewer list = %d", rr.Code)
	}

	rr = serve(t, server, http.MethodPost, "/api/threads", `{"pointer":{"type":"tiptap-text-range","documentId":"doc1","from":0,"to":4}}`, viewerHeaders)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	details, _ := payload["details"].(map[string]any)
	if payload["code"] != "FORBIDDEN" || details["action"] != "comment" {
		t.Fatalf("payload = %v", payload)
	}

	rr = serve(t, server, http.MethodPost, "/api/publish", "", bearer(t, issuer, "ed", "editor"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("editor publish = %d", rr.Code)
	}
	rr = serve(t, server, http.MethodPost, "/api/publish", "", bearer(t, issuer, "root", "admin"))
	if rr.Code != http.StatusOK {
		t.Fatalf("admin publish = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestEditorCommandRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.svc, "*")
	_ = env.svc.OpenDocument("doc1", "", "Ship the beta on Friday")

	rr := serve(t, server, http.MethodPost, "/api/editor/commands/createQuote", `{"args":{"document":"doc1","from":9,"to":13}}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("createQuote = %d body=%s", rr.Code, rr.Body.String())
	}
	result, _ := decode(t, rr)["result"].(map[string]any)
	if result["text"] != "beta" || result["createdBy"] != "anonymous" {
		t.Fatalf("result = %v", result)
	}

	rr = serve(t, server, http.MethodPost, "/api/editor/commands/makeBold", `{"args":{}}`, nil)
	if rr.Code != http.StatusServiceUnavailable || decode(t, rr)["code"] != "SERVICE_UNAVAILABLE" {
		t.Fatalf("unsupported command = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = serve(t, server, http.MethodGet, "/api/editor/commands?q=quote", "", nil)
	items, _ := decode(t, rr)["items"].([]any)
	if len(items) != 9 {
		t.Fatalf("commands = %v", items)
	}

	rr = serve(t, server, http.MethodGet, "/api/search?q=beta&type=quote", "", nil)
	search := decode(t, rr)
	if search["backend"] != "local" || search["total"] != float64(1) {
		t.Fatalf("search = %v", search)
	}
}

func TestUIStateRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.svc, "*")

	rr := serve(t, server, http.MethodPost, "/api/ui/toggle-panel", "", nil)
	if payload := decode(t, rr); payload["panelVisible"] != true {
		t.Fatalf("toggle = %v", payload)
	}
	rr = serve(t, server, http.MethodPut, "/api/ui", `{"activeThreadId":"thr_missing"}`, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	rr = serve(t, server, http.MethodPut, "/api/ui", `{"panelVisible":false}`, nil)
	if payload := decode(t, rr); payload["panelVisible"] != false {
		t.Fatalf("put ui = %v", payload)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := serve(t, NewHTTPServer(env.svc, "*"), http.MethodGet, "/api/nothing/here", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestLoginChecksUsersDirectory(t *testing.T) {
	hash, err := authpw.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	directory, err := authpw.ParseDirectory(strings.NewReader("users:\n  - id: root\n    name: Root\n    role: admin\n    passwordHash: \"" + hash + "\"\n"))
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}
	env := newTestEnv(t, func(d *Deps) {
		d.Issuer = auth.NewIssuer("test-secret", time.Hour)
		d.Directory = directory
	})
	server := NewHTTPServer(env.svc, "*")

	rr := serve(t, server, http.MethodPost, "/api/session/login", `{"userId":"root","password":"wrong"}`, nil)
	if rr.Code != http.StatusUnauthorized || decode(t, rr)["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("wrong password = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = serve(t, server, http.MethodPost, "/api/session/login", `{"userId":"root","password":"correct horse"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login = %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	actor, _ := payload["actor"].(map[string]any)
	if actor["role"] != "admin" || actor["name"] != "Root" {
		t.Fatalf("actor = %v", actor)
	}
	token, _ := payload["token"].(string)
	rr = serve(t, server, http.MethodPost, "/api/reindex", "", map[string]string{"Authorization": "Bearer " + token})
	if rr.Code != http.StatusOK {
		t.Fatalf("admin reindex = %d", rr.Code)
	}
}
