package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"bookcatalog/internal/book"
	"bookcatalog/internal/testutil"
)

// flakyBackend wraps a real backend and can fail or hold calls on demand.
type flakyBackend struct {
	Backend

	allCalls  atomic.Int32
	listCalls atomic.Int32

	mu        sync.Mutex
	readErr   error
	writeErr  error
	writeGate chan struct{}
	// writeStarted receives one value per mutation that reached the backend.
	writeStarted chan struct{}
}

func newFlaky(t *testing.T, titles ...string) (*flakyBackend, []book.Book) {
	t.Helper()
	repo := book.NewMemoryRepo()
	created := testutil.SeedBooks(t, repo, titles...)
	return &flakyBackend{Backend: book.NewService(repo), writeStarted: make(chan struct{}, 16)}, created
}

func (f *flakyBackend) setReadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *flakyBackend) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// hold makes every mutation wait until the returned function is called.
func (f *flakyBackend) hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.writeGate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *flakyBackend) read() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readErr
}

func (f *flakyBackend) write(ctx context.Context) error {
	f.writeStarted <- struct{}{}
	f.mu.Lock()
	gate, err := f.writeGate, f.writeErr
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *flakyBackend) All(ctx context.Context) ([]book.Book, error) {
	f.allCalls.Add(1)
	if err := f.read(); err != nil {
		return nil, err
	}
	return f.Backend.All(ctx)
}

func (f *flakyBackend) List(ctx context.Context, q book.QuerySpec) (book.Page, error) {
	f.listCalls.Add(1)
	if err := f.read(); err != nil {
		return book.Page{}, err
	}
	return f.Backend.List(ctx, q)
}

func (f *flakyBackend) Create(ctx context.Context, d book.Draft) (book.Book, error) {
	if err := f.write(ctx); err != nil {
		return book.Book{}, err
	}
	return f.Backend.Create(ctx, d)
}

func (f *flakyBackend) Update(ctx context.Context, id string, p book.Patch) (book.Book, error) {
	if err := f.write(ctx); err != nil {
		return book.Book{}, err
	}
	return f.Backend.Update(ctx, id, p)
}

func (f *flakyBackend) Delete(ctx context.Context, id string) (book.Book, error) {
	if err := f.write(ctx); err != nil {
		return book.Book{}, err
	}
	return f.Backend.Delete(ctx, id)
}

// gatedBackend answers the n-th listing call with results[n] once gates[n]
// is closed.
type gatedBackend struct {
	calls   atomic.Int32
	started chan int
	gates   map[int]chan struct{}
	results map[int][]book.Book
}

func newGated(n int) *gatedBackend {
	g := &gatedBackend{
		started: make(chan int, n),
		gates:   make(map[int]chan struct{}, n),
		results: make(map[int][]book.Book, n),
	}
	for i := 1; i <= n; i++ {
		g.gates[i] = make(chan struct{})
	}
	return g
}

func (g *gatedBackend) All(ctx context.Context) ([]book.Book, error) {
	n := int(g.calls.Add(1))
	g.started <- n
	select {
	case <-g.gates[n]:
		return g.results[n], nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedBackend) List(ctx context.Context, q book.QuerySpec) (book.Page, error) {
	items, err := g.All(ctx)
	if err != nil {
		return book.Page{}, err
	}
	return book.Page{Items: items, PageInfo: book.NewPageInfo(q.Page, q.Limit, len(items))}, nil
}

func (g *gatedBackend) Create(context.Context, book.Draft) (book.Book, error) {
	return book.Book{}, errors.New("not supported")
}

func (g *gatedBackend) Update(context.Context, string, book.Patch) (book.Book, error) {
	return book.Book{}, errors.New("not supported")
}

func (g *gatedBackend) Delete(_ context.Context, id string) (book.Book, error) {
	return book.Book{ID: id}, nil
}

// mockBackend is a testify mock of Backend.
type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) List(ctx context.Context, q book.QuerySpec) (book.Page, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(book.Page), args.Error(1)
}

func (m *mockBackend) All(ctx context.Context) ([]book.Book, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]book.Book)
	return items, args.Error(1)
}

func (m *mockBackend) Create(ctx context.Context, d book.Draft) (book.Book, error) {
	args := m.Called(ctx, d)
	return args.Get(0).(book.Book), args.Error(1)
}

func (m *mockBackend) Update(ctx context.Context, id string, p book.Patch) (book.Book, error) {
	args := m.Called(ctx, id, p)
	return args.Get(0).(book.Book), args.Error(1)
}

func (m *mockBackend) Delete(ctx context.Context, id string) (book.Book, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(book.Book), args.Error(1)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ids(items []book.Book) []string {
	out := make([]string, 0, len(items))
	for _, b := range items {
		out = append(out, b.ID)
	}
	return out
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting on channel")
	}
	var zero T
	return zero
}
