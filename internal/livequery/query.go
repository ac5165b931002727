// Package livequery keeps the result of a read fresh as the store changes.
package livequery

import (
	"context"
	"sync"

	"pitchlog/internal/store"

	"go.uber.org/zap"
)

// Notifier is satisfied by *store.Bus.
type Notifier interface {
	Subscribe(fn func(store.Change)) func()
}

type Func[T any] func(ctx context.Context) (T, error)

// Query re-runs its function on every change published by the notifier.
// Runs may overlap; a completion is applied only if it was started after the
// one currently applied, so a slow early run never overwrites a newer result.
type Query[T any] struct {
	fn     Func[T]
	logger *zap.Logger
	unsub  func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	issued  uint64
	applied uint64
	result  T
	has     bool
	closed  bool
	ready   chan struct{}
	changes chan T
}

type Option func(*options)

type options struct {
	logger *zap.Logger
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New subscribes to n and starts the first run of fn. The caller must Close
// the query when done with it.
func New[T any](ctx context.Context, n Notifier, fn Func[T], opts ...Option) *Query[T] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	q := &Query[T]{
		fn:      fn,
		logger:  o.logger,
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan struct{}),
		changes: make(chan T, 1),
	}
	q.unsub = n.Subscribe(func(store.Change) { q.trigger() })
	q.trigger()
	return q
}

// Result returns the latest applied value and whether any run has succeeded.
func (q *Query[T]) Result() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.result, q.has
}

// Changes delivers applied values. Only the most recent undelivered value is
// kept. The channel is closed by Close.
func (q *Query[T]) Changes() <-chan T {
	return q.changes
}

// Wait blocks until the first successful run or until ctx is done.
func (q *Query[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-q.ready:
		v, _ := q.Result()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Close unsubscribes, cancels runs in flight and waits for them to finish.
func (q *Query[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.unsub()
	q.cancel()
	q.wg.Wait()
	close(q.changes)
}

func (q *Query[T]) trigger() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.issued++
	seq := q.issued
	q.wg.Add(1)
	q.mu.Unlock()

	go q.run(seq)
}

func (q *Query[T]) run(seq uint64) {
	defer q.wg.Done()

	v, err := q.fn(q.ctx)
	if err != nil {
		if q.ctx.Err() == nil {
			q.logger.Warn("live query failed", zap.Uint64("run", seq), zap.Error(err))
		}
		return
	}
	q.apply(seq, v)
}

func (q *Query[T]) apply(seq uint64, v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || seq <= q.applied {
		return
	}
	q.applied = seq
	q.result = v
	if !q.has {
		q.has = true
		close(q.ready)
	}
	select {
	case <-q.changes:
	default:
	}
	q.changes <- v
}
