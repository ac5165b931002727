package store

import (
	"sync"

	"go.uber.org/zap"
)

type Op string

const (
	OpAdd      Op = "add"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
	OpExternal Op = "external"
)

// AnyCollection marks a change whose collection is unknown, such as a write
// made by another process.
const AnyCollection = "*"

// Change describes one completed mutation.
type Change struct {
	Collection string
	Op         Op
}

type subscriber struct {
	id uint64
	fn func(Change)
}

// Bus fans change notifications out to every current subscriber.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers fn and returns a func that removes it. Calling the
// returned func more than once is harmless.
func (b *Bus) Subscribe(fn func(Change)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len reports the number of live subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish calls every subscriber registered at the time of the call, in
// registration order. A panicking subscriber is logged and skipped.
func (b *Bus) Publish(c Change) {
	b.mu.RLock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, c)
	}
}

func (b *Bus) deliver(s subscriber, c Change) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("change subscriber panicked",
				zap.Uint64("subscriber", s.id),
				zap.String("collection", c.Collection),
				zap.Any("panic", r))
		}
	}()
	s.fn(c)
}
