package eventbus

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Bus is a lock-free, typed pub/sub fan-out. The aggregator publishes status
// events on it; telemetry and the styled status log subscribe. Delivery is
// best-effort: a subscriber that cannot keep up has events dropped rather
// than blocking the publisher.
type Bus[T any] struct {
	subscribers *xsync.Map[string, *subscriber[T]]
	isShutdown  atomic.Bool
	seq         atomic.Uint64
	bufferSize  int
}

type subscriber[T any] struct {
	id         string
	ch         chan T
	lastActive atomic.Int64
	dropped    atomic.Uint64
	isActive   atomic.Bool
}

const defaultBufferSize = 64

// New creates a bus whose subscriber channels buffer bufferSize events.
// A bufferSize <= 0 selects the default.
func New[T any](bufferSize int) *Bus[T] {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus[T]{
		subscribers: xsync.NewMap[string, *subscriber[T]](),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a receive channel and a cancel function. The channel is
// closed on cancel, context cancellation or bus shutdown.
func (b *Bus[T]) Subscribe(ctx context.Context) (<-chan T, func()) {
	if b.isShutdown.Load() {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	id := "sub_" + strconv.FormatUint(b.seq.Add(1), 10)
	sub := &subscriber[T]{
		id: id,
		ch: make(chan T, b.bufferSize),
	}
	sub.lastActive.Store(time.Now().UnixNano())
	sub.isActive.Store(true)

	b.subscribers.Store(id, sub)

	go func() {
		<-ctx.Done()
		b.unsubscribe(id)
	}()

	return sub.ch, func() { b.unsubscribe(id) }
}

// Publish delivers the event to every active subscriber without blocking and
// returns the delivered count.
func (b *Bus[T]) Publish(event T) int {
	if b.isShutdown.Load() {
		return 0
	}

	delivered := 0
	now := time.Now().UnixNano()

	b.subscribers.Range(func(id string, sub *subscriber[T]) bool {
		if !sub.isActive.Load() {
			return true
		}

		select {
		case sub.ch <- event:
			sub.lastActive.Store(now)
			delivered++
		default:
			sub.dropped.Add(1)
		}
		return true
	})

	return delivered
}

// Shutdown closes every subscriber channel. Publishing after shutdown is a no-op.
func (b *Bus[T]) Shutdown() {
	if !b.isShutdown.CompareAndSwap(false, true) {
		return
	}

	b.subscribers.Range(func(id string, sub *subscriber[T]) bool {
		if sub.isActive.CompareAndSwap(true, false) {
			close(sub.ch)
		}
		return true
	})

	b.subscribers.Clear()
}

// Stats reports subscriber and drop counts.
func (b *Bus[T]) Stats() Stats {
	stats := Stats{IsShutdown: b.isShutdown.Load()}
	if stats.IsShutdown {
		return stats
	}

	b.subscribers.Range(func(id string, sub *subscriber[T]) bool {
		stats.TotalSubscribers++
		if sub.isActive.Load() {
			stats.ActiveSubscribers++
		}
		stats.TotalDropped += sub.dropped.Load()
		return true
	})

	return stats
}

type Stats struct {
	TotalSubscribers  int
	ActiveSubscribers int
	TotalDropped      uint64
	IsShutdown        bool
}

func (b *Bus[T]) unsubscribe(id string) {
	if sub, exists := b.subscribers.LoadAndDelete(id); exists {
		if sub.isActive.CompareAndSwap(true, false) {
			close(sub.ch)
		}
	}
}
