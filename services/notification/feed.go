package notification

import (
	"sync"
	"time"

	"flexify/models"
)

// DefaultFeedLimit is how many notifications the feed keeps.
const DefaultFeedLimit = 10

type feedState struct {
	items  []models.Notification
	nextID int64
	limit  int
	now    func() time.Time
}

// Feed is the bounded notification list. A single goroutine owns the list;
// every operation is a message to it, so callers never share the slice.
type Feed struct {
	ops       chan func(*feedState)
	done      chan struct{}
	closeOnce sync.Once
}

// NewFeed starts a feed keeping at most limit entries (DefaultFeedLimit
// when limit <= 0).
func NewFeed(limit int, now func() time.Time) *Feed {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if now == nil {
		now = time.Now
	}
	f := &Feed{
		ops:  make(chan func(*feedState)),
		done: make(chan struct{}),
	}
	go f.run(&feedState{limit: limit, now: now})
	return f
}

func (f *Feed) run(st *feedState) {
	for {
		select {
		case op := <-f.ops:
			op(st)
		case <-f.done:
			return
		}
	}
}

// do runs op on the owning goroutine. It reports false once the feed is
// closed.
func (f *Feed) do(op func(*feedState)) bool {
	finished := make(chan struct{})
	select {
	case f.ops <- func(st *feedState) { op(st); close(finished) }:
		<-finished
		return true
	case <-f.done:
		return false
	}
}

// Push prepends evt as a new entry and returns it.
func (f *Feed) Push(evt models.NotificationEvent) models.Notification {
	var n models.Notification
	f.do(func(st *feedState) {
		st.nextID++
		n = models.Notification{
			ID:        st.nextID,
			Type:      evt.Type,
			Message:   evt.Message,
			BookingID: evt.BookingID,
			Data:      evt.Data,
			Timestamp: st.now(),
		}
		st.items = prepend(st.items, n, st.limit)
	})
	return n
}

// Dismiss removes the entry with id. It reports whether one was removed.
func (f *Feed) Dismiss(id int64) bool {
	var removed bool
	f.do(func(st *feedState) {
		kept := st.items[:0:0]
		for _, n := range st.items {
			if n.ID == id {
				removed = true
				continue
			}
			kept = append(kept, n)
		}
		st.items = kept
	})
	return removed
}

func (f *Feed) ClearAll() {
	f.do(func(st *feedState) { st.items = nil })
}

// List returns a copy of the entries, newest first.
func (f *Feed) List() []models.Notification {
	var out []models.Notification
	f.do(func(st *feedState) {
		out = make([]models.Notification, len(st.items))
		copy(out, st.items)
	})
	return out
}

// Close stops the owning goroutine. Later operations are no-ops.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// prepend returns a new list with n first, truncated to limit.
func prepend(items []models.Notification, n models.Notification, limit int) []models.Notification {
	size := len(items) + 1
	if size > limit {
		size = limit
	}
	out := make([]models.Notification, 0, size)
	out = append(out, n)
	for _, it := range items {
		if len(out) == size {
			break
		}
		out = append(out, it)
	}
	return out
}
