package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inkwell/api/internal/store"
)

func authHeader(t *testing.T, svc *Service, identity Identity) string {
	t.Helper()
	resp, err := svc.issueToken(store.User{ID: identity.UserID, DisplayName: identity.DisplayName})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + resp.Token
}

func doRequest(handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointNeedsNoAuth(t *testing.T) {
	svc, _, _ := newTestService(&fakeStore{})
	handler := NewHTTPServer(svc, "*").Handler()

	rec := doRequest(handler, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	svc, _, _ := newTestService(&fakeStore{})
	handler := NewHTTPServer(svc, "*").Handler()

	for _, path := range []string{"/api/documents", "/api/search?q=x", "/api/documents/doc_1"} {
		rec := doRequest(handler, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}

	rec := doRequest(handler, http.MethodGet, "/api/documents", "Bearer bogus", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestGetDocumentRoute(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	svc, _, _ := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := authHeader(t, svc, owner)

	rec := doRequest(handler, http.MethodGet, "/api/documents/doc_1", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var doc store.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.ID != "doc_1" || doc.Title != "Notes" {
		t.Fatalf("unexpected document %+v", doc)
	}

	rec = doRequest(handler, http.MethodGet, "/api/documents/doc_missing", token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestForbiddenMapsTo403(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	svc, _, _ := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := authHeader(t, svc, Identity{UserID: "usr_stranger", DisplayName: "Stranger"})

	rec := doRequest(handler, http.MethodGet, "/api/documents/doc_1", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %q", body.Code)
	}
}

func TestExportRouteServesMarkdown(t *testing.T) {
	fs := &fakeStore{}
	docFixture(fs, baseDoc())
	svc, _, _ := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := authHeader(t, svc, owner)

	rec := doRequest(handler, http.MethodGet, "/api/documents/doc_1/export?format=markdown", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/markdown" {
		t.Fatalf("unexpected content type %q", got)
	}
	if rec.Body.String() != "hi" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	rec = doRequest(handler, http.MethodGet, "/api/documents/doc_1/export?format=docx", token, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown format should be 400, got %d", rec.Code)
	}
}

func TestCreateDocumentRoute(t *testing.T) {
	fs := &fakeStore{}
	var inserted store.Document
	fs.insertDocumentFn = func(_ context.Context, doc store.Document) error {
		inserted = doc
		return nil
	}
	fs.getDocumentFn = func(_ context.Context, id string) (store.Document, error) {
		if id == inserted.ID {
			return inserted, nil
		}
		return store.Document{}, sql.ErrNoRows
	}
	svc, _, fsearch := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := authHeader(t, svc, owner)

	rec := doRequest(handler, http.MethodPost, "/api/documents", token, `{"title":"Plan"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var doc store.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Title != "Plan" || doc.OwnerID != owner.UserID {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.Content == "" {
		t.Fatal("new documents should get default content")
	}
	if len(fsearch.indexed) != 1 || fsearch.indexed[0].Title != "Plan" {
		t.Fatalf("expected search indexing, got %v", fsearch.indexed)
	}
}
