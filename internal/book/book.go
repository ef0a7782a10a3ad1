package book

import (
	"sort"
	"strings"
	"time"
)

// Book represents a book record in the catalog.
type Book struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Author    string    `json:"author" db:"author"`
	Price     float64   `json:"price" db:"price"`
	Rating    *float64  `json:"rating,omitempty" db:"rating"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Draft carries the fields of a book that does not exist yet.
type Draft struct {
	Title  string   `json:"title" validate:"required,notblank"`
	Author string   `json:"author"`
	Price  float64  `json:"price"`
	Rating *float64 `json:"rating,omitempty"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Title  *string  `json:"title,omitempty"`
	Author *string  `json:"author,omitempty"`
	Price  *float64 `json:"price,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.Price == nil && p.Rating == nil
}

// Apply returns b with the patch fields copied over it.
func (p Patch) Apply(b Book) Book {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Price != nil {
		b.Price = *p.Price
	}
	if p.Rating != nil {
		r := *p.Rating
		b.Rating = &r
	}
	return b
}

// PageInfo describes where a page sits in the full result set.
type PageInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

// Page is one slice of a listing plus its metadata.
type Page struct {
	Items []Book `json:"items"`
	PageInfo
}

// NewPageInfo computes the page metadata. TotalPages is never below 1.
func NewPageInfo(page, limit, total int) PageInfo {
	totalPages := 1
	if limit > 0 && total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return PageInfo{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}
}

// SortBooks sorts items in place by one of title, author, price or rating.
// Unknown fields leave the order unchanged. Books without a rating sort first.
func SortBooks(items []Book, field string, desc bool) {
	var less func(a, b Book) bool
	switch strings.ToLower(field) {
	case "title":
		less = func(a, b Book) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case "author":
		less = func(a, b Book) bool { return strings.ToLower(a.Author) < strings.ToLower(b.Author) }
	case "price":
		less = func(a, b Book) bool { return a.Price < b.Price }
	case "rating":
		less = func(a, b Book) bool {
			if a.Rating == nil || b.Rating == nil {
				return a.Rating == nil && b.Rating != nil
			}
			return *a.Rating < *b.Rating
		}
	default:
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}
