package book

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps books in process memory. Identifiers are UUIDv7 strings,
// so lexical order is creation order.
type MemoryRepo struct {
	mu    sync.RWMutex
	books map[string]Book
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{books: make(map[string]Book), now: time.Now}
}

func (r *MemoryRepo) ValidID(id string) bool {
	return isCanonicalUUID(id)
}

func (r *MemoryRepo) Ping(context.Context) error { return nil }

func (r *MemoryRepo) Count(ctx context.Context, f Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, b := range r.books {
		if f.Match(b) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) Find(ctx context.Context, f Filter, skip, limit int, s SortSpec) ([]Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Book, 0, len(r.books))
	for _, b := range r.books {
		if f.Match(b) {
			out = append(out, cloneBook(b))
		}
	}
	r.mu.RUnlock()

	if s.Field == "id" || s.Field == "" {
		sort.Slice(out, func(i, j int) bool {
			if s.Desc {
				return out[i].ID > out[j].ID
			}
			return out[i].ID < out[j].ID
		})
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		SortBooks(out, s.Field, s.Desc)
	}

	if skip < 0 || skip >= len(out) {
		return []Book{}, nil
	}
	out = out[skip:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Insert(ctx context.Context, d Draft) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Book{}, err
	}
	now := r.now().UTC()
	b := Book{
		ID:        id.String(),
		Title:     d.Title,
		Author:    d.Author,
		Price:     d.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.Rating != nil {
		rating := *d.Rating
		b.Rating = &rating
	}

	r.mu.Lock()
	r.books[b.ID] = b
	r.mu.Unlock()
	return cloneBook(b), nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id string) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return cloneBook(b), nil
}

func (r *MemoryRepo) UpdateByID(ctx context.Context, id string, p Patch) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	b = p.Apply(b)
	b.UpdatedAt = r.now().UTC()
	r.books[id] = b
	return cloneBook(b), nil
}

func (r *MemoryRepo) DeleteByID(ctx context.Context, id string) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	delete(r.books, id)
	return b, nil
}

func cloneBook(b Book) Book {
	if b.Rating != nil {
		r := *b.Rating
		b.Rating = &r
	}
	return b
}
