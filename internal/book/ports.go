package book

import (
	"context"

	"github.com/google/uuid"
)

//go:generate mockgen -source=ports.go -destination=mock_repository_test.go -package=book

// SortSpec orders a Find result by one column.
type SortSpec struct {
	Field string
	Desc  bool
}

var (
	// NewestFirst orders by identifier, descending.
	NewestFirst = SortSpec{Field: "id", Desc: true}
	// TitleDesc orders by title, descending.
	TitleDesc = SortSpec{Field: "title", Desc: true}
)

// Repository defines the contract for book data storage.
// FindByID, UpdateByID and DeleteByID return ErrNotFound when the id does not
// resolve to a live book.
type Repository interface {
	Count(ctx context.Context, f Filter) (int, error)
	Find(ctx context.Context, f Filter, skip, limit int, sort SortSpec) ([]Book, error)
	Insert(ctx context.Context, d Draft) (Book, error)
	FindByID(ctx context.Context, id string) (Book, error)
	UpdateByID(ctx context.Context, id string, p Patch) (Book, error)
	DeleteByID(ctx context.Context, id string) (Book, error)
	ValidID(id string) bool
	Ping(ctx context.Context) error
}

// isCanonicalUUID accepts only the lowercase dashed form the uuid stores
// generate, since they look records up by exact string.
func isCanonicalUUID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}
