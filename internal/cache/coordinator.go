// Package cache keeps client-side listing results keyed by query and keeps
// them consistent with optimistic mutations and concurrent refetches.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bookcatalog/internal/book"
)

var (
	ErrTimeout = errors.New("cache fetch timed out")
	ErrClosed  = errors.New("cache coordinator closed")
)

// Backend is the read and write path the coordinator talks to. Both
// book.Service and client.Client satisfy it.
type Backend interface {
	List(ctx context.Context, q book.QuerySpec) (book.Page, error)
	All(ctx context.Context) ([]book.Book, error)
	Create(ctx context.Context, d book.Draft) (book.Book, error)
	Update(ctx context.Context, id string, p book.Patch) (book.Book, error)
	Delete(ctx context.Context, id string) (book.Book, error)
}

type Options struct {
	// StaleTime is how long a fetched entry stays fresh. Zero means one
	// minute, a negative value keeps entries fresh until invalidated.
	StaleTime time.Duration
	// FetchTimeout bounds a single fetch. Zero means 30 seconds.
	FetchTimeout time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Coordinator owns the cache for one client session. It is safe for
// concurrent use; mutations are serialized.
type Coordinator struct {
	backend Backend
	opts    Options
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[Key]*entry
	closed  bool
	nextSub uint64

	group singleflight.Group
	// mutations holds one token while a mutation runs.
	mutations chan struct{}
}

func New(backend Backend, opts Options) *Coordinator {
	if opts.StaleTime == 0 {
		opts.StaleTime = time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		backend:   backend,
		opts:      opts,
		log:       opts.Logger.With("component", "cache"),
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[Key]*entry),
		mutations: make(chan struct{}, 1),
	}
}

type notification struct {
	sub  *subscriber
	snap Snapshot
}

func (c *Coordinator) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key, state: StateEmpty}
		c.entries[key] = e
	}
	return e
}

// notifyLocked records a change of e and collects its subscribers' snapshots.
// They must be delivered after mu is released.
func (c *Coordinator) notifyLocked(e *entry, out []notification) []notification {
	e.version++
	if len(e.subs) == 0 {
		return out
	}
	snap := e.snapshot()
	for _, s := range e.subs {
		out = append(out, notification{sub: s, snap: snap})
	}
	return out
}

func deliver(ns []notification) {
	for _, n := range ns {
		n.sub.offer(n.snap)
	}
}

// expireLocked moves a fresh entry past its stale time to Stale.
func (c *Coordinator) expireLocked(e *entry) bool {
	if e.state != StateFresh || c.opts.StaleTime < 0 {
		return false
	}
	if c.opts.Now().Sub(e.updatedAt) < c.opts.StaleTime {
		return false
	}
	e.state = StateStale
	e.version++
	return true
}

// Get returns the entry for key, fetching it first when it is empty or stale.
// Concurrent readers of the same key share one fetch. When the fetch fails the
// returned snapshot still carries the last known data.
func (c *Coordinator) Get(ctx context.Context, key Key) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	e := c.entryLocked(key)

	var ns []notification
	if c.expireLocked(e) {
		ns = c.notifyLocked(e, ns)
	}

	if e.state == StateFresh || e.pinned {
		snap := e.snapshot()
		c.mu.Unlock()
		deliver(ns)
		return snap, nil
	}

	if e.state != StateFetching {
		e.state = StateFetching
		ns = c.notifyLocked(e, ns)
	}
	rev := e.revision
	ch := c.group.DoChan(flightKey(key, rev), func() (any, error) {
		applied, err := c.fetch(key, rev)
		return applied, err
	})
	c.mu.Unlock()
	deliver(ns)

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return c.peek(key), ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Snapshot{}, ErrClosed
	}
	snap := c.entryLocked(key).snapshot()
	if applied, _ := res.Val.(bool); !applied {
		return snap, nil
	}
	return snap, res.Err
}

func flightKey(key Key, rev uint64) string {
	return key.String() + "#" + strconv.FormatUint(rev, 10)
}

type fetchResult struct {
	items []book.Book
	info  *book.PageInfo
	err   error
}

// fetch loads key from the backend and applies the result when the entry is
// still at rev. It reports whether the result was applied.
func (c *Coordinator) fetch(key Key, rev uint64) (bool, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.FetchTimeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		done <- c.load(ctx, key)
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
	}
	if ctxErr := ctx.Err(); ctxErr != nil && (res.err != nil || res.items == nil) {
		switch {
		case c.ctx.Err() != nil:
			res = fetchResult{err: ErrClosed}
		case errors.Is(ctxErr, context.DeadlineExceeded):
			res = fetchResult{err: fmt.Errorf("%w: %s after %s", ErrTimeout, key, c.opts.FetchTimeout)}
		}
	}

	return c.apply(key, rev, res), res.err
}

func (c *Coordinator) load(ctx context.Context, key Key) fetchResult {
	if !key.Paged {
		items, err := c.backend.All(ctx)
		if err != nil {
			return fetchResult{err: err}
		}
		if items == nil {
			items = []book.Book{}
		}
		return fetchResult{items: items}
	}

	page, err := c.backend.List(ctx, key.Query())
	if err != nil {
		return fetchResult{err: err}
	}
	if page.Items == nil {
		page.Items = []book.Book{}
	}
	info := page.PageInfo
	return fetchResult{items: page.Items, info: &info}
}

func (c *Coordinator) apply(key Key, rev uint64, res fetchResult) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	e := c.entryLocked(key)
	if e.revision != rev || e.state != StateFetching {
		current := e.revision
		c.mu.Unlock()
		c.log.Debug("superseded fetch discarded", "key", key.String(), "revision", rev, "current", current)
		return false
	}

	if res.err != nil {
		e.state = StateStale
		e.err = res.err
		c.log.Debug("fetch failed", "key", key.String(), "revision", rev, "error", res.err)
	} else {
		e.state = StateFresh
		e.items = cloneItems(res.items)
		e.info = cloneInfo(res.info)
		e.hasData = true
		e.err = nil
		e.updatedAt = c.opts.Now()
	}
	ns := c.notifyLocked(e, nil)
	c.mu.Unlock()
	deliver(ns)
	return true
}

// Peek returns the entry for key without fetching. The zero Snapshot for
// key is returned when nothing is cached.
func (c *Coordinator) Peek(key Key) Snapshot {
	return c.peek(key)
}

func (c *Coordinator) peek(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.expireLocked(e)
		return e.snapshot()
	}
	return Snapshot{Key: key, State: StateEmpty}
}

// Keys returns the keys currently held.
func (c *Coordinator) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Subscribe calls fn with the current snapshot of key and again on every
// change until the returned function is called. Callbacks run outside the
// coordinator lock, possibly on different goroutines, but never concurrently
// for one subscription and never with a snapshot older than one already seen.
// Intermediate snapshots may be skipped while fn is busy.
func (c *Coordinator) Subscribe(key Key, fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() {}
	}
	e := c.entryLocked(key)
	if e.subs == nil {
		e.subs = make(map[uint64]*subscriber)
	}
	c.nextSub++
	id := c.nextSub
	s := newSubscriber(fn)
	e.subs[id] = s
	snap := e.snapshot()
	c.mu.Unlock()

	s.offer(snap)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			if e, ok := c.entries[key]; ok {
				delete(e.subs, id)
			}
			c.mu.Unlock()
			s.stop()
		})
	}
}

// Invalidate marks the given keys, or every key when none is given, for
// refetch on the next read. Fetches in flight for them are discarded.
func (c *Coordinator) Invalidate(keys ...Key) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ns := c.invalidateLocked(keys, nil)
	c.mu.Unlock()
	deliver(ns)
}

func (c *Coordinator) invalidateLocked(keys []Key, ns []notification) []notification {
	touch := func(e *entry) {
		e.invalidate()
		ns = c.notifyLocked(e, ns)
	}
	if len(keys) == 0 {
		for _, e := range c.entries {
			touch(e)
		}
		c.log.Debug("invalidated all entries", "count", len(c.entries))
		return ns
	}
	for _, k := range keys {
		if e, ok := c.entries[k]; ok {
			touch(e)
			c.log.Debug("invalidated entry", "key", k.String(), "revision", e.revision)
		}
	}
	return ns
}

// Evict drops the data held for key. The entry keeps its revision and
// subscribers, so a fetch in flight for it is discarded.
func (c *Coordinator) Evict(key Key) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if c.closed || !ok || e.pinned {
		c.mu.Unlock()
		return
	}
	e.revision++
	e.state = StateEmpty
	e.items = nil
	e.info = nil
	e.hasData = false
	e.err = nil
	e.updatedAt = time.Time{}
	ns := c.notifyLocked(e, nil)
	c.mu.Unlock()
	deliver(ns)
}

// Close ends the session. Fetches in flight are cancelled and every later
// call fails with ErrClosed.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()
	c.entries = make(map[Key]*entry)
	return nil
}
