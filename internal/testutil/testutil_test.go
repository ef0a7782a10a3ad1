package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/book"
)

func TestSeedBooks_NewestLast(t *testing.T) {
	repo := book.NewMemoryRepo()
	created := SeedBooks(t, repo, "One", "Two")
	require.Len(t, created, 2)

	svc := book.NewService(repo)
	all, err := svc.All(t.Context())
	require.NoError(t, err)
	assert.Equal(t, created[1].ID, all[0].ID)
}

func TestRecordHTTPResponse(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]string{"id": "x"}})

	rec := RecordHTTPResponse(t, w)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, rec.Body.Success)
	assert.JSONEq(t, `{"id":"x"}`, string(rec.Body.Data))
}

func TestNewRequest(t *testing.T) {
	r := NewRequest(http.MethodPost, "/api/v1/books", book.Draft{Title: "Dune"})
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

	r = NewRequest(http.MethodGet, "/api/v1/books", nil)
	assert.Empty(t, r.Header.Get("Content-Type"))
}
