package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/book"
)

// primed returns a coordinator whose listing and two pages are cached.
func primed(t *testing.T) (*Coordinator, *flakyBackend, []book.Book, []Key) {
	t.Helper()
	backend, created := newFlaky(t, titles...)
	c := New(backend, Options{})
	t.Cleanup(func() { _ = c.Close() })

	keys := []Key{AllKey, PageKey(1, 3, ""), PageKey(2, 3, "")}
	for _, k := range keys {
		_, err := c.Get(context.Background(), k)
		require.NoError(t, err)
	}
	return c, backend, created, keys
}

func containsID(items []book.Book, id string) bool {
	for _, b := range items {
		if b.ID == id {
			return true
		}
	}
	return false
}

func TestCoordinator_CreateOptimistic(t *testing.T) {
	ctx := context.Background()
	c, backend, _, keys := primed(t)
	release := backend.hold()

	type result struct {
		b   book.Book
		err error
	}
	done := make(chan result, 1)
	go func() {
		b, err := c.Create(ctx, book.Draft{Title: "  Dune ", Author: "Herbert"})
		done <- result{b, err}
	}()
	recv(t, backend.writeStarted)

	all := c.Peek(AllKey)
	require.Len(t, all.Items, 8)
	placeholder := all.Items[7]
	assert.True(t, IsPlaceholder(placeholder.ID))
	assert.Equal(t, "Dune", placeholder.Title)
	for _, k := range keys[1:] {
		assert.Len(t, c.Peek(k).Items, 3, k.String())
	}

	// Reads during the mutation see the optimistic state without refetching.
	snap, err := c.Get(ctx, AllKey)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 8)
	assert.EqualValues(t, 1, backend.allCalls.Load())

	release()
	r := recv(t, done)
	require.NoError(t, r.err)
	assert.False(t, IsPlaceholder(r.b.ID))

	all = c.Peek(AllKey)
	assert.Equal(t, StateStale, all.State)
	assert.Equal(t, r.b.ID, all.Items[7].ID)
	for _, k := range keys {
		assert.Equal(t, StateStale, c.Peek(k).State, k.String())
	}

	all, err = c.Get(ctx, AllKey)
	require.NoError(t, err)
	assert.Equal(t, StateFresh, all.State)
	assert.Equal(t, r.b.ID, all.Items[0].ID)
	for _, b := range all.Items {
		assert.False(t, IsPlaceholder(b.ID))
	}
}

func TestCoordinator_DeleteFailureRollsBackExactly(t *testing.T) {
	ctx := context.Background()
	c, backend, created, keys := primed(t)

	before := make(map[Key]Snapshot)
	for _, k := range keys {
		before[k] = c.Peek(k)
	}

	backend.setWriteErr(book.ErrStoreUnavailable)
	release := backend.hold()
	victim := created[2].ID

	done := make(chan error, 1)
	go func() {
		_, err := c.Delete(ctx, victim)
		done <- err
	}()
	recv(t, backend.writeStarted)

	assert.False(t, containsID(c.Peek(AllKey).Items, victim))
	page := c.Peek(PageKey(2, 3, ""))
	assert.False(t, containsID(page.Items, victim))
	assert.Equal(t, 6, page.Info.Total)
	assert.Equal(t, 2, page.Info.TotalPages)
	assert.Len(t, c.Peek(PageKey(1, 3, "")).Items, 3)

	release()
	assert.ErrorIs(t, recv(t, done), book.ErrStoreUnavailable)

	for _, k := range keys {
		after := c.Peek(k)
		assert.Empty(t, cmp.Diff(before[k].Items, after.Items), k.String())
		assert.Empty(t, cmp.Diff(before[k].Info, after.Info), k.String())
		assert.Equal(t, StateStale, after.State, k.String())
		assert.Greater(t, after.Revision, before[k].Revision, k.String())
	}
}

func TestCoordinator_DeleteRemovesEverywhere(t *testing.T) {
	ctx := context.Background()
	c, _, created, keys := primed(t)
	victim := created[5].ID

	removed, err := c.Delete(ctx, victim)
	require.NoError(t, err)
	assert.Equal(t, victim, removed.ID)

	for _, k := range keys {
		assert.False(t, containsID(c.Peek(k).Items, victim), k.String())
	}

	page, err := c.Get(ctx, PageKey(1, 3, ""))
	require.NoError(t, err)
	assert.Equal(t, StateFresh, page.State)
	assert.Equal(t, 6, page.Info.Total)
	assert.Equal(t, []string{created[6].ID, created[4].ID, created[3].ID}, ids(page.Items))
}

func TestCoordinator_UpdateReconcilesAndRollsBack(t *testing.T) {
	ctx := context.Background()
	c, backend, created, keys := primed(t)
	target := created[6].ID

	price := 19.5
	updated, err := c.Update(ctx, target, book.Patch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 19.5, updated.Price)
	for _, k := range []Key{AllKey, PageKey(1, 3, "")} {
		snap := c.Peek(k)
		require.True(t, containsID(snap.Items, target), k.String())
		assert.Equal(t, updated, snap.Items[0], k.String())
	}

	for _, k := range keys {
		_, err := c.Get(ctx, k)
		require.NoError(t, err)
	}
	before := c.Peek(AllKey)

	backend.setWriteErr(book.ErrStoreUnavailable)
	release := backend.hold()
	title := "Renamed"
	done := make(chan error, 1)
	go func() {
		_, err := c.Update(ctx, target, book.Patch{Title: &title})
		done <- err
	}()
	recv(t, backend.writeStarted)
	assert.Equal(t, "Renamed", c.Peek(AllKey).Items[0].Title)
	assert.Equal(t, "Renamed", c.Peek(PageKey(1, 3, "")).Items[0].Title)

	release()
	assert.ErrorIs(t, recv(t, done), book.ErrStoreUnavailable)
	assert.Empty(t, cmp.Diff(before.Items, c.Peek(AllKey).Items))
}

func TestCoordinator_MutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	c, backend, _, _ := primed(t)
	release := backend.hold()

	var wg sync.WaitGroup
	for _, title := range []string{"A", "B"} {
		wg.Add(1)
		go func(title string) {
			defer wg.Done()
			_, err := c.Create(ctx, book.Draft{Title: title})
			assert.NoError(t, err)
		}(title)
	}

	recv(t, backend.writeStarted)
	assert.Never(t, func() bool { return len(backend.writeStarted) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	// Only the first mutation's placeholder is visible.
	assert.Len(t, c.Peek(AllKey).Items, 8)

	release()
	wg.Wait()
	assert.Len(t, backend.writeStarted, 1)

	all, err := c.Get(ctx, AllKey)
	require.NoError(t, err)
	assert.Len(t, all.Items, 9)
}

func TestCoordinator_MutationSupersedesInflightFetch(t *testing.T) {
	g := newGated(1)
	g.results[1] = []book.Book{{ID: "keep"}, {ID: "gone"}}
	c := New(g, Options{})
	defer c.Close()

	done := make(chan Snapshot, 1)
	go func() {
		snap, err := c.Get(context.Background(), AllKey)
		assert.NoError(t, err)
		done <- snap
	}()
	recv(t, g.started)

	_, err := c.Delete(context.Background(), "gone")
	require.NoError(t, err)

	close(g.gates[1])
	snap := recv(t, done)
	assert.False(t, containsID(snap.Items, "gone"))
	assert.False(t, snap.HasData)
	assert.Equal(t, StateEmpty, c.Peek(AllKey).State)
}

func TestCoordinator_MutationContextCancelledWhileQueued(t *testing.T) {
	c, backend, created, _ := primed(t)
	release := backend.hold()
	defer release()

	go func() { _, _ = c.Delete(context.Background(), created[0].ID) }()
	recv(t, backend.writeStarted)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Delete(ctx, created[1].ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, containsID(c.Peek(AllKey).Items, created[1].ID))
}
