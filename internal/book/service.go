package book

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Service provides the listing and mutation operations over a Repository.
type Service struct {
	repo Repository
}

// NewService creates a new book service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of books matching q, newest first. The count and the
// slice are read concurrently and are not a transactional snapshot of each other.
func (s *Service) List(ctx context.Context, q QuerySpec) (Page, error) {
	var (
		total int
		items []Book
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.Count(gctx, q.Filter)
		if err != nil {
			return storeErr("count", err)
		}
		total = n
		return nil
	})
	skip, inRange := q.Skip()
	g.Go(func() error {
		if !inRange {
			return nil
		}
		found, err := s.repo.Find(gctx, q.Filter, skip, q.Limit, NewestFirst)
		if err != nil {
			return storeErr("find", err)
		}
		items = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return Page{}, err
	}

	if items == nil {
		items = []Book{}
	}
	if len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return Page{Items: items, PageInfo: NewPageInfo(q.Page, q.Limit, total)}, nil
}

// All returns every book, newest first.
func (s *Service) All(ctx context.Context) ([]Book, error) {
	return s.findAll(ctx, NewestFirst)
}

// Sorted returns every book ordered by title, descending.
func (s *Service) Sorted(ctx context.Context) ([]Book, error) {
	return s.findAll(ctx, TitleDesc)
}

func (s *Service) findAll(ctx context.Context, sort SortSpec) ([]Book, error) {
	items, err := s.repo.Find(ctx, Filter{}, 0, 0, sort)
	if err != nil {
		return nil, storeErr("find", err)
	}
	if items == nil {
		items = []Book{}
	}
	return items, nil
}

// Get returns a book by its identifier.
func (s *Service) Get(ctx context.Context, id string) (Book, error) {
	if err := s.checkID(id); err != nil {
		return Book{}, err
	}
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Book{}, storeErr("find by id", err)
	}
	return b, nil
}

// Create validates d and stores it. The store assigns the identifier.
func (s *Service) Create(ctx context.Context, d Draft) (Book, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return Book{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	b, err := s.repo.Insert(ctx, d)
	if err != nil {
		return Book{}, storeErr("insert", err)
	}
	return b, nil
}

// Update applies p to the book with the given id and returns the full record.
func (s *Service) Update(ctx context.Context, id string, p Patch) (Book, error) {
	if err := s.checkID(id); err != nil {
		return Book{}, err
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return Book{}, fmt.Errorf("%w: title must not be empty", ErrValidation)
		}
		p.Title = &title
	}

	var (
		b   Book
		err error
	)
	if p.IsEmpty() {
		b, err = s.repo.FindByID(ctx, id)
	} else {
		b, err = s.repo.UpdateByID(ctx, id, p)
	}
	if err != nil {
		return Book{}, storeErr("update", err)
	}
	return b, nil
}

// Delete removes the book with the given id and returns it.
func (s *Service) Delete(ctx context.Context, id string) (Book, error) {
	if err := s.checkID(id); err != nil {
		return Book{}, err
	}
	b, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return Book{}, storeErr("delete", err)
	}
	return b, nil
}

// Ready reports whether the underlying store answers.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (s *Service) checkID(id string) error {
	if !s.repo.ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}

// storeErr keeps ErrNotFound as is and turns any other failure into ErrStoreUnavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
