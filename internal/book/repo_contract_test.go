package book

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract exercises a Repository through the Service. repo must start empty.
func runRepositoryContract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	svc := NewService(repo)

	created := make([]Book, 0, 7)
	for i := 1; i <= 7; i++ {
		b, err := svc.Create(ctx, Draft{Title: fmt.Sprintf("Book %d", i), Author: "Author", Price: float64(i)})
		require.NoError(t, err)
		require.True(t, repo.ValidID(b.ID), b.ID)
		created = append(created, b)
	}

	t.Run("pagination scenario", func(t *testing.T) {
		page, err := svc.List(ctx, BuildQuery("2", "3", ""))
		require.NoError(t, err)
		assert.Len(t, page.Items, 3)
		assert.Equal(t, 7, page.Total)
		assert.Equal(t, 3, page.TotalPages)
		assert.True(t, page.HasPrev)
		assert.True(t, page.HasNext)
		// newest first: page 2 holds the 4th, 3rd and 2nd created books
		assert.Equal(t, []string{created[3].ID, created[2].ID, created[1].ID}, bookIDs(page.Items))
	})

	t.Run("item count formula", func(t *testing.T) {
		for limit := 1; limit <= 8; limit++ {
			for p := 1; p <= 9; p++ {
				page, err := svc.List(ctx, NewQuery(p, limit, ""))
				require.NoError(t, err)
				want := min(limit, max(0, 7-(p-1)*limit))
				assert.Len(t, page.Items, want, "page=%d limit=%d", p, limit)
			}
		}
	})

	t.Run("page far past the end", func(t *testing.T) {
		for _, raw := range []string{"1000", "1000000000000000000", "9223372036854775807"} {
			page, err := svc.List(ctx, BuildQuery(raw, "10", ""))
			require.NoError(t, err, raw)
			assert.Empty(t, page.Items, raw)
			assert.Equal(t, 7, page.Total, raw)
			assert.True(t, page.HasPrev, raw)
			assert.False(t, page.HasNext, raw)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		a, err := svc.List(ctx, BuildQuery("1", "4", "book"))
		require.NoError(t, err)
		b, err := svc.List(ctx, BuildQuery("1", "4", "book"))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("search is literal and case insensitive", func(t *testing.T) {
		_, err := svc.Create(ctx, Draft{Title: "Regex a.b*c Guide", Author: "X"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, Draft{Title: "Axbbbc", Author: "Y"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, Draft{Title: "Discounts", Author: "100% Real_Author"})
		require.NoError(t, err)

		page, err := svc.List(ctx, BuildQuery("", "", "A.B*C"))
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Regex a.b*c Guide", page.Items[0].Title)

		page, err = svc.List(ctx, BuildQuery("", "", "0% real_"))
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Discounts", page.Items[0].Title)

		page, err = svc.List(ctx, BuildQuery("", "", "zzz"))
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, 1, page.TotalPages)
		assert.False(t, page.HasNext)
	})

	t.Run("sorted by title descending", func(t *testing.T) {
		all, err := svc.Sorted(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, all)
		assert.Equal(t, "Regex a.b*c Guide", all[0].Title)
	})

	t.Run("update returns full record", func(t *testing.T) {
		title := "Renamed"
		rating := 4.0
		b, err := svc.Update(ctx, created[0].ID, Patch{Title: &title, Rating: &rating})
		require.NoError(t, err)
		assert.Equal(t, created[0].ID, b.ID)
		assert.Equal(t, "Renamed", b.Title)
		assert.Equal(t, "Author", b.Author)
		assert.Equal(t, 1.0, b.Price)
		require.NotNil(t, b.Rating)
		assert.Equal(t, 4.0, *b.Rating)

		got, err := svc.Get(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
	})

	t.Run("delete returns removed record", func(t *testing.T) {
		b, err := svc.Delete(ctx, created[6].ID)
		require.NoError(t, err)
		assert.Equal(t, "Book 7", b.Title)

		_, err = svc.Get(ctx, created[6].ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = svc.Delete(ctx, created[6].ID)
		assert.ErrorIs(t, err, ErrNotFound)
		title := "x"
		_, err = svc.Update(ctx, created[6].ID, Patch{Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := svc.Get(ctx, "not-an-id")
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
		_, err = svc.Delete(ctx, "not-an-id")
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	})

	t.Run("alternate id spellings", func(t *testing.T) {
		id := created[1].ID
		for _, alt := range []string{strings.ToUpper(id), "{" + id + "}", "urn:uuid:" + id} {
			got, err := svc.Get(ctx, alt)
			if repo.ValidID(alt) {
				require.NoError(t, err, alt)
				assert.Equal(t, "Book 2", got.Title, alt)
			} else {
				assert.ErrorIs(t, err, ErrInvalidIdentifier, alt)
			}
		}
	})

	t.Run("ready", func(t *testing.T) {
		assert.NoError(t, svc.Ready(ctx))
	})
}

func bookIDs(bs []Book) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.ID)
	}
	return out
}
