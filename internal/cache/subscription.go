package cache

import "sync"

// subscriber delivers snapshots to one callback in Version order. Snapshots
// taken under the coordinator lock may reach offer from several goroutines in
// any order; an offer older than the newest one seen is dropped, and while a
// callback runs only the newest pending snapshot is kept for it.
type subscriber struct {
	fn func(Snapshot)

	mu       sync.Mutex
	seen     bool
	newest   uint64
	pending  *Snapshot
	draining bool
	done     bool
}

func newSubscriber(fn func(Snapshot)) *subscriber {
	return &subscriber{fn: fn}
}

// offer queues snap and, unless another goroutine is already running the
// callback, delivers it and whatever arrives meanwhile. It never blocks on a
// running callback.
func (s *subscriber) offer(snap Snapshot) {
	s.mu.Lock()
	if s.done || (s.seen && snap.Version <= s.newest) {
		s.mu.Unlock()
		return
	}
	s.seen = true
	s.newest = snap.Version
	s.pending = &snap
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for s.pending != nil && !s.done {
		next := *s.pending
		s.pending = nil
		s.mu.Unlock()
		s.fn(next)
		s.mu.Lock()
	}
	s.pending = nil
	s.draining = false
	s.mu.Unlock()
}

// stop discards pending snapshots and makes later offers no-ops.
func (s *subscriber) stop() {
	s.mu.Lock()
	s.done = true
	s.pending = nil
	s.mu.Unlock()
}
