// Package testutil holds helpers shared by tests outside the book package.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/book"
)

// SeedBooks inserts one book per title, in order, so the last title is the
// newest. The stored books are returned in insertion order.
func SeedBooks(t testing.TB, repo book.Repository, titles ...string) []book.Book {
	t.Helper()
	created := make([]book.Book, 0, len(titles))
	for _, title := range titles {
		b, err := repo.Insert(context.Background(), book.Draft{Title: title, Author: "Anon"})
		require.NoError(t, err)
		created = append(created, b)
	}
	return created
}

// NewServer serves the versioned book routes over a memory store seeded with
// titles. It returns the base URL.
func NewServer(t testing.TB, titles ...string) (string, *book.MemoryRepo, []book.Book) {
	t.Helper()
	repo := book.NewMemoryRepo()
	created := SeedBooks(t, repo, titles...)

	r := chi.NewRouter()
	r.Route("/api/v1", book.NewHTTPHandler(book.NewService(repo), nil).Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL, repo, created
}

// NewRequest creates a new HTTP request for testing
func NewRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	var r *http.Request
	if bodyBytes != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	return r
}

// Envelope is the decoded response body.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		ErrorID string `json:"error_id"`
	} `json:"error"`
}

// RecordResponse records the HTTP response for testing
type RecordResponse struct {
	Code   int
	Header http.Header
	Body   Envelope
}

// RecordHTTPResponse records the HTTP response
func RecordHTTPResponse(t testing.TB, w *httptest.ResponseRecorder) RecordResponse {
	t.Helper()
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, err := io.ReadAll(result.Body)
	require.NoError(t, err)

	var env Envelope
	if len(bodyBytes) > 0 {
		require.NoError(t, json.Unmarshal(bodyBytes, &env), string(bodyBytes))
	}

	return RecordResponse{
		Code:   result.StatusCode,
		Header: result.Header,
		Body:   env,
	}
}
