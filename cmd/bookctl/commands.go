package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookcatalog/internal/book"
	"bookcatalog/internal/cache"
)

type ListCmd struct {
	Page   int    `short:"p" help:"Page number" default:"1"`
	Limit  int    `short:"l" help:"Books per page" default:"10"`
	Search string `short:"s" help:"Case-insensitive substring of title or author"`
}

func (c *ListCmd) Run(ctx context.Context, a *app) error {
	snap, err := a.get(ctx, cache.PageKey(c.Page, c.Limit, c.Search))
	if err != nil {
		return err
	}
	if err := printBooks(a.out, snap.Items); err != nil {
		return err
	}
	return printPageInfo(a.out, snap.Info)
}

type AllCmd struct{}

func (c *AllCmd) Run(ctx context.Context, a *app) error {
	snap, err := a.get(ctx, cache.AllKey)
	if err != nil {
		return err
	}
	return printBooks(a.out, snap.Items)
}

type SortedCmd struct {
	By  string `help:"Sort field (title, author, price, rating), sorted locally when set"`
	Asc bool   `help:"Ascending order for local sorting"`
}

// Run asks the server for its title-descending order, or sorts the cached
// listing locally when a field is given.
func (c *SortedCmd) Run(ctx context.Context, a *app) error {
	if c.By == "" {
		items, err := a.client.Sorted(ctx)
		if err != nil {
			return err
		}
		return printBooks(a.out, items)
	}

	switch c.By {
	case "title", "author", "price", "rating":
	default:
		return fmt.Errorf("unknown sort field %q", c.By)
	}

	snap, err := a.get(ctx, cache.AllKey)
	if err != nil {
		return err
	}
	items := snap.Items
	book.SortBooks(items, c.By, !c.Asc)
	return printBooks(a.out, items)
}

type GetCmd struct {
	ID string `arg:"" help:"Book id"`
}

func (c *GetCmd) Run(ctx context.Context, a *app) error {
	b, err := a.client.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	return printBook(a.out, b)
}

type AddCmd struct {
	Title  string   `arg:"" help:"Title"`
	Author string   `short:"a" help:"Author"`
	Price  float64  `help:"Price"`
	Rating *float64 `help:"Rating"`
}

func (c *AddCmd) Run(ctx context.Context, a *app) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", book.ErrValidation)
	}
	b, err := a.mutate(ctx, func(ctx context.Context) (book.Book, error) {
		return a.cache.Create(ctx, book.Draft{Title: c.Title, Author: c.Author, Price: c.Price, Rating: c.Rating})
	})
	if err != nil {
		return err
	}
	return printBook(a.out, b)
}

type UpdateCmd struct {
	ID     string   `arg:"" help:"Book id"`
	Title  *string  `help:"New title"`
	Author *string  `help:"New author"`
	Price  *float64 `help:"New price"`
	Rating *float64 `help:"New rating"`
}

func (c *UpdateCmd) Run(ctx context.Context, a *app) error {
	p := book.Patch{Title: c.Title, Author: c.Author, Price: c.Price, Rating: c.Rating}
	if p.IsEmpty() {
		return errors.New("nothing to update, pass at least one of --title, --author, --price, --rating")
	}
	b, err := a.mutate(ctx, func(ctx context.Context) (book.Book, error) {
		return a.cache.Update(ctx, c.ID, p)
	})
	if err != nil {
		return err
	}
	return printBook(a.out, b)
}

type DeleteCmd struct {
	ID string `arg:"" help:"Book id"`
}

func (c *DeleteCmd) Run(ctx context.Context, a *app) error {
	b, err := a.mutate(ctx, func(ctx context.Context) (book.Book, error) {
		return a.cache.Delete(ctx, c.ID)
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "deleted %s (%s)\n", b.ID, b.Title)
	return err
}

// get reads key through the cache, logging every state change at debug.
func (a *app) get(ctx context.Context, key cache.Key) (cache.Snapshot, error) {
	unsubscribe := a.cache.Subscribe(key, func(s cache.Snapshot) {
		a.log.Debug("cache entry changed", "key", s.Key.String(), "state", s.State.String(), "revision", s.Revision, "items", len(s.Items))
	})
	defer unsubscribe()
	return a.cache.Get(ctx, key)
}

// mutate primes the unparameterized listing so the optimistic edit has an
// entry to work on, then runs fn.
func (a *app) mutate(ctx context.Context, fn func(context.Context) (book.Book, error)) (book.Book, error) {
	if _, err := a.get(ctx, cache.AllKey); err != nil {
		a.log.Debug("listing unavailable before mutation", "error", err)
	}

	unsubscribe := a.cache.Subscribe(cache.AllKey, func(s cache.Snapshot) {
		a.log.Debug("cache entry changed", "key", s.Key.String(), "state", s.State.String(), "revision", s.Revision, "items", len(s.Items))
	})
	defer unsubscribe()

	b, err := fn(ctx)
	if err != nil {
		a.log.Debug("mutation failed, cache rolled back", "error", err)
		return book.Book{}, err
	}
	return b, nil
}
