package cache

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"bookcatalog/internal/book"
)

// PlaceholderPrefix marks the id of an optimistic record that the server has
// not confirmed yet.
const PlaceholderPrefix = "optimistic-"

// IsPlaceholder reports whether id belongs to an unconfirmed optimistic record.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// mutation describes one write. edit applies the optimistic change to an
// entry and reports whether it touched it. reconcile folds the confirmed
// record into an entry.
type mutation struct {
	name      string
	edit      func(e *entry) bool
	call      func(ctx context.Context) (book.Book, error)
	reconcile func(e *entry, b book.Book)
}

// Create adds d. A placeholder is appended to the unparameterized listing
// until the server answers.
func (c *Coordinator) Create(ctx context.Context, d book.Draft) (book.Book, error) {
	placeholder := book.Book{
		ID:        PlaceholderPrefix + uuid.NewString(),
		Title:     strings.TrimSpace(d.Title),
		Author:    d.Author,
		Price:     d.Price,
		Rating:    d.Rating,
		CreatedAt: c.opts.Now(),
		UpdatedAt: c.opts.Now(),
	}
	placeholder = cloneBook(placeholder)

	return c.mutate(ctx, mutation{
		name: "create",
		edit: func(e *entry) bool {
			if e.key != AllKey {
				return false
			}
			items := make([]book.Book, 0, len(e.items)+1)
			items = append(items, e.items...)
			e.items = append(items, placeholder)
			return true
		},
		call: func(ctx context.Context) (book.Book, error) {
			return c.backend.Create(ctx, d)
		},
		reconcile: func(e *entry, b book.Book) {
			e.replaceID(placeholder.ID, b)
		},
	})
}

// Update applies p to the book with id in every cached entry holding it.
func (c *Coordinator) Update(ctx context.Context, id string, p book.Patch) (book.Book, error) {
	return c.mutate(ctx, mutation{
		name: "update",
		edit: func(e *entry) bool {
			i := e.indexOf(id)
			if i < 0 {
				return false
			}
			return e.replaceID(id, p.Apply(cloneBook(e.items[i])))
		},
		call: func(ctx context.Context) (book.Book, error) {
			return c.backend.Update(ctx, id, p)
		},
		reconcile: func(e *entry, b book.Book) {
			e.replaceID(id, b)
		},
	})
}

// Delete removes the book with id from every cached entry.
func (c *Coordinator) Delete(ctx context.Context, id string) (book.Book, error) {
	return c.mutate(ctx, mutation{
		name: "delete",
		edit: func(e *entry) bool {
			return e.removeID(id)
		},
		call: func(ctx context.Context) (book.Book, error) {
			return c.backend.Delete(ctx, id)
		},
		reconcile: func(e *entry, _ book.Book) {
			e.removeID(id)
		},
	})
}

// mutate runs the optimistic write protocol: supersede fetches, edit the
// cached entries, call the backend, then reconcile or roll back, and finally
// invalidate every entry. Mutations never interleave.
func (c *Coordinator) mutate(ctx context.Context, m mutation) (book.Book, error) {
	select {
	case c.mutations <- struct{}{}:
	case <-ctx.Done():
		return book.Book{}, ctx.Err()
	case <-c.ctx.Done():
		return book.Book{}, ErrClosed
	}
	defer func() { <-c.mutations }()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return book.Book{}, ErrClosed
	}
	backups := make(map[*entry]backup)
	var ns []notification
	for _, e := range c.entries {
		prev := e.state
		e.supersede()
		edited := false
		if e.hasData {
			saved := e.backup()
			if edited = m.edit(e); edited {
				backups[e] = saved
				e.pinned = true
			}
		}
		if edited || e.state != prev {
			ns = c.notifyLocked(e, ns)
		}
	}
	c.mu.Unlock()
	deliver(ns)
	c.log.Debug("optimistic edit applied", "mutation", m.name, "entries", len(backups))

	result, err := m.call(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if err != nil {
			return book.Book{}, err
		}
		return result, nil
	}
	ns = nil
	if err != nil {
		for e, saved := range backups {
			e.restore(saved)
		}
		c.log.Debug("mutation rolled back", "mutation", m.name, "entries", len(backups), "error", err)
	} else {
		for _, e := range c.entries {
			if e.hasData {
				m.reconcile(e, result)
			}
		}
	}
	for e := range backups {
		e.pinned = false
	}
	ns = c.invalidateLocked(nil, ns)
	c.mu.Unlock()
	deliver(ns)

	if err != nil {
		return book.Book{}, err
	}
	return result, nil
}
