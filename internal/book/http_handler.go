package book

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bookcatalog/internal/httpx"
)

// TotalCountHeader carries the number of matching books for callers that do
// not parse the body.
const TotalCountHeader = "X-Total-Count"

type HTTPHandler struct {
	service   *Service
	responder *httpx.Responder
}

func NewHTTPHandler(service *Service, responder *httpx.Responder) *HTTPHandler {
	if responder == nil {
		responder = &httpx.Responder{}
	}
	return &HTTPHandler{service: service, responder: responder}
}

// Routes mounts the book endpoints on r.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.Get("/books", h.All)
	r.Post("/books", h.Create)
	r.Get("/books/page", h.List)
	r.Get("/books/sort", h.Sorted)
	r.Get("/book/{id}", h.Get)
	r.Put("/book/{id}", h.Update)
	r.Patch("/book/{id}", h.Update)
	r.Delete("/book/{id}", h.Delete)
}

// firstParam returns the first non-empty query value among names.
func firstParam(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, n := range names {
		if v := q.Get(n); v != "" {
			return v
		}
	}
	return ""
}

// List handles GET /books/page
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	q := BuildQuery(
		firstParam(r, "page", "_page"),
		firstParam(r, "limit", "_limit"),
		firstParam(r, "search", "q"),
	)

	page, err := h.service.List(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set(TotalCountHeader, strconv.Itoa(page.Total))
	httpx.JSONSuccessWithRequest(r, w, page.Items, map[string]any{
		"page":        page.Page,
		"limit":       page.Limit,
		"total":       page.Total,
		"total_pages": page.TotalPages,
		"count":       len(page.Items),
		"has_prev":    page.HasPrev,
		"has_next":    page.HasNext,
	})
}

// All handles GET /books
func (h *HTTPHandler) All(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.All(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCollection(w, r, books)
}

// Sorted handles GET /books/sort
func (h *HTTPHandler) Sorted(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.Sorted(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCollection(w, r, books)
}

func (h *HTTPHandler) writeCollection(w http.ResponseWriter, r *http.Request, books []Book) {
	w.Header().Set(TotalCountHeader, strconv.Itoa(len(books)))
	httpx.JSONSuccessWithRequest(r, w, books, map[string]any{"count": len(books)})
}

// Get handles GET /book/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, b, nil)
}

// Create handles POST /books
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var d Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, CodeValidation, "Invalid request body", nil)
		return
	}
	if details := httpx.ValidateStruct(d); len(details) > 0 {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, CodeValidation, "Validation failed", details)
		return
	}

	b, err := h.service.Create(r.Context(), d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccessCreatedWithRequest(r, w, b)
}

// Update handles PUT and PATCH /book/{id}. Both apply the fields present in the body.
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.service.repo.ValidID(id) {
		h.writeError(w, r, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id))
		return
	}

	var p Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, CodeValidation, "Invalid request body", nil)
		return
	}

	b, err := h.service.Update(r.Context(), id, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, b, nil)
}

// Delete handles DELETE /book/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, b, nil)
}

// Healthz handles GET /healthz
func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.JSONSuccessWithRequest(r, w, map[string]string{"status": "ok"}, nil)
}

// Readyz handles GET /readyz
func (h *HTTPHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ready(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, map[string]string{"status": "ready"}, nil)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	code := Code(err)

	var message string
	switch {
	case errors.Is(err, ErrValidation):
		message = err.Error()
	case errors.Is(err, ErrInvalidIdentifier):
		message = "Invalid Book ID"
	case errors.Is(err, ErrNotFound):
		message = "Book not found for id " + chi.URLParam(r, "id")
	case errors.Is(err, ErrStoreUnavailable):
		message = "Book store unavailable"
	default:
		message = "Internal server error"
	}
	h.responder.Error(r, w, status, code, message, err)
}
