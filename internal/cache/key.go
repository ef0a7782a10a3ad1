package cache

import (
	"net/url"
	"strconv"

	"bookcatalog/internal/book"
)

// Key identifies one cached query. The zero Key is the unparameterized
// listing of every book.
type Key struct {
	Paged  bool
	Page   int
	Limit  int
	Search string
}

// AllKey is the key of the unparameterized listing.
var AllKey = Key{}

// KeyFor returns the key of a normalized listing query.
func KeyFor(q book.QuerySpec) Key {
	return Key{Paged: true, Page: q.Page, Limit: q.Limit, Search: q.Search}
}

// PageKey normalizes raw values the same way the server does and returns the key.
func PageKey(page, limit int, search string) Key {
	return KeyFor(book.NewQuery(page, limit, search))
}

// Query returns the listing query for a paged key.
func (k Key) Query() book.QuerySpec {
	return book.NewQuery(k.Page, k.Limit, k.Search)
}

func (k Key) String() string {
	if !k.Paged {
		return "books"
	}
	v := url.Values{}
	v.Set("page", strconv.Itoa(k.Page))
	v.Set("limit", strconv.Itoa(k.Limit))
	if k.Search != "" {
		v.Set("search", k.Search)
	}
	return "books?" + v.Encode()
}
