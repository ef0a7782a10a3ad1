package cache

import (
	"time"

	"bookcatalog/internal/book"
)

type State int

const (
	StateEmpty State = iota
	StateFetching
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFetching:
		return "fetching"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of one cache entry.
type Snapshot struct {
	Key       Key
	State     State
	Items     []book.Book
	Info      *book.PageInfo
	HasData   bool
	UpdatedAt time.Time
	Revision  uint64
	// Version increases on every change of the entry, so of two snapshots of
	// one key the higher Version is the later state.
	Version uint64
	// Err is the failure of the last fetch, kept until the next successful one.
	Err error
}

type entry struct {
	key       Key
	state     State
	items     []book.Book
	info      *book.PageInfo
	hasData   bool
	updatedAt time.Time
	revision  uint64
	version   uint64
	err       error
	// pinned entries hold an optimistic edit and are not refetched until the
	// mutation settles.
	pinned bool
	subs   map[uint64]*subscriber
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:       e.key,
		State:     e.state,
		Items:     cloneItems(e.items),
		Info:      cloneInfo(e.info),
		HasData:   e.hasData,
		UpdatedAt: e.updatedAt,
		Revision:  e.revision,
		Version:   e.version,
		Err:       e.err,
	}
}

// supersede bumps the revision so that any fetch in flight is discarded on arrival.
func (e *entry) supersede() {
	e.revision++
	if e.state == StateFetching {
		if e.hasData {
			e.state = StateStale
		} else {
			e.state = StateEmpty
		}
	}
}

// invalidate marks the entry for refetch on the next read.
func (e *entry) invalidate() {
	e.supersede()
	if e.state == StateFresh {
		e.state = StateStale
	}
}

func (e *entry) indexOf(id string) int {
	for i, b := range e.items {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// removeID drops the book with id and adjusts the page totals. It reports
// whether anything was removed.
func (e *entry) removeID(id string) bool {
	i := e.indexOf(id)
	if i < 0 {
		return false
	}
	items := make([]book.Book, 0, len(e.items)-1)
	items = append(items, e.items[:i]...)
	items = append(items, e.items[i+1:]...)
	e.items = items
	if e.info != nil {
		info := book.NewPageInfo(e.info.Page, e.info.Limit, max(e.info.Total-1, 0))
		e.info = &info
	}
	return true
}

// replaceID swaps in b for the book with id. It reports whether a book was replaced.
func (e *entry) replaceID(id string, b book.Book) bool {
	i := e.indexOf(id)
	if i < 0 {
		return false
	}
	items := cloneItems(e.items)
	items[i] = cloneBook(b)
	e.items = items
	return true
}

type backup struct {
	items   []book.Book
	info    *book.PageInfo
	hasData bool
}

func (e *entry) backup() backup {
	return backup{items: cloneItems(e.items), info: cloneInfo(e.info), hasData: e.hasData}
}

func (e *entry) restore(b backup) {
	e.items = b.items
	e.info = b.info
	e.hasData = b.hasData
}

func cloneBook(b book.Book) book.Book {
	if b.Rating != nil {
		r := *b.Rating
		b.Rating = &r
	}
	return b
}

func cloneItems(items []book.Book) []book.Book {
	if items == nil {
		return nil
	}
	out := make([]book.Book, len(items))
	for i, b := range items {
		out[i] = cloneBook(b)
	}
	return out
}

func cloneInfo(info *book.PageInfo) *book.PageInfo {
	if info == nil {
		return nil
	}
	c := *info
	return &c
}
