package book

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Filter selects books whose title or author contains Term, case-insensitively,
// as a literal substring. The zero Filter matches everything.
type Filter struct {
	Term string
	re   *regexp.Regexp
}

// NewFilter trims term and prepares the literal matcher.
func NewFilter(term string) Filter {
	term = strings.TrimSpace(term)
	if term == "" {
		return Filter{}
	}
	return Filter{Term: term, re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))}
}

// IsZero reports whether the filter matches all books.
func (f Filter) IsZero() bool {
	return f.Term == ""
}

// Pattern returns the escaped regular expression source (without flags),
// suitable for stores that take a regex plus a case-insensitive option.
func (f Filter) Pattern() string {
	return regexp.QuoteMeta(f.Term)
}

// LikePattern returns a LIKE pattern with %, _ and the escape character
// backslash escaped, wrapped for substring matching.
func (f Filter) LikePattern() string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(f.Term)
	return "%" + escaped + "%"
}

// Match reports whether b satisfies the filter.
func (f Filter) Match(b Book) bool {
	if f.IsZero() {
		return true
	}
	re := f.re
	if re == nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(f.Term))
	}
	return re.MatchString(b.Title) || re.MatchString(b.Author)
}

// QuerySpec is a normalized listing request.
type QuerySpec struct {
	Page   int
	Limit  int
	Search string
	Filter Filter
}

// Skip returns the number of matching books before this page. ok is false
// when that number does not fit in an int; such a page is always empty.
func (q QuerySpec) Skip() (skip int, ok bool) {
	if q.Page < 1 || q.Limit < 1 {
		return 0, true
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return 0, false
	}
	return (q.Page - 1) * q.Limit, true
}

// BuildQuery turns raw client parameters into a valid QuerySpec. It never fails:
// unparsable or zero numbers fall back to the defaults, page is raised to 1 and
// limit is clamped to [1, MaxLimit].
func BuildQuery(rawPage, rawLimit, rawSearch string) QuerySpec {
	page := parseIntOrDefault(rawPage, DefaultPage)
	if page < 1 {
		page = 1
	}

	limit := parseIntOrDefault(rawLimit, DefaultLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	filter := NewFilter(rawSearch)
	return QuerySpec{
		Page:   page,
		Limit:  limit,
		Search: filter.Term,
		Filter: filter,
	}
}

// NewQuery builds a QuerySpec from already typed values, with the same rules
// as BuildQuery.
func NewQuery(page, limit int, search string) QuerySpec {
	return BuildQuery(strconv.Itoa(page), strconv.Itoa(limit), search)
}

func parseIntOrDefault(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		return def
	}
	return n
}
