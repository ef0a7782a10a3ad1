package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/book"
	"bookcatalog/internal/client"
	"bookcatalog/internal/testutil"
)

var (
	_ Backend = (*book.Service)(nil)
	_ Backend = (*client.Client)(nil)
)

func TestCoordinator_OverHTTP(t *testing.T) {
	ctx := context.Background()
	url, repo, created := testutil.NewServer(t, titles...)
	c := New(client.New(client.Options{BaseURL: url, Backoff: time.Millisecond}), Options{})
	defer c.Close()

	page, err := c.Get(ctx, PageKey(2, 3, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{created[3].ID, created[2].ID, created[1].ID}, ids(page.Items))
	assert.Equal(t, 3, page.Info.TotalPages)

	_, err = c.Get(ctx, AllKey)
	require.NoError(t, err)

	_, err = c.Delete(ctx, created[2].ID)
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, created[2].ID)
	assert.ErrorIs(t, err, book.ErrNotFound)

	page, err = c.Get(ctx, PageKey(2, 3, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{created[3].ID, created[1].ID, created[0].ID}, ids(page.Items))
	assert.Equal(t, 6, page.Info.Total)

	_, err = c.Delete(ctx, created[2].ID)
	assert.ErrorIs(t, err, book.ErrNotFound)
	all, err := c.Get(ctx, AllKey)
	require.NoError(t, err)
	assert.Len(t, all.Items, 6)
}
