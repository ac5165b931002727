// Package kv is the flat string key/value medium that everything else persists through.
package kv

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a storage call exceeds the bound set by WithTimeout.
var ErrTimeout = errors.New("storage timeout")

// ErrClosed is returned by a medium after Close.
var ErrClosed = errors.New("storage closed")

// Medium stores string values by string key.
type Medium interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes every key given; missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error
	Close() error
}

// Mutator is implemented by media that can read, transform and write one key
// as a single atomic step, including against other processes sharing the
// medium.
type Mutator interface {
	// Mutate calls fn with the current value of key and stores the value fn
	// returns when write is true. An error from fn is returned unchanged and
	// nothing is written.
	Mutate(ctx context.Context, key string, fn MutateFunc) error
}

// MutateFunc receives the current value of a key and returns its replacement.
type MutateFunc func(old string, ok bool) (value string, write bool, err error)

// Mutate runs fn against key on m. Media that implement Mutator do it
// atomically; for the rest it is a Get followed by a Set, and callers must
// serialize writers themselves.
func Mutate(ctx context.Context, m Medium, key string, fn MutateFunc) error {
	if mu, ok := m.(Mutator); ok {
		return mu.Mutate(ctx, key, fn)
	}
	old, ok, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	value, write, err := fn(old, ok)
	if err != nil || !write {
		return err
	}
	return m.Set(ctx, key, value)
}

type Memory struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key. The context is checked again once the lock is
// held, so a write whose caller has already given up never lands.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type timeoutMedium struct {
	inner Medium
	d     time.Duration
}

// WithTimeout bounds every call on m by d. A non-positive d returns m unchanged.
//
// A call that runs past the bound returns ErrTimeout and the underlying call is
// abandoned with an expired context. Memory and SQLite refuse to write once that
// context is done. An inner medium that ignores its context may still complete
// the write after ErrTimeout was reported, and that late write can overwrite a
// newer value.
func WithTimeout(m Medium, d time.Duration) Medium {
	if d <= 0 {
		return m
	}
	return &timeoutMedium{inner: m, d: d}
}

type getResult struct {
	value string
	ok    bool
	err   error
}

func (t *timeoutMedium) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	ch := make(chan getResult, 1)
	go func() {
		v, ok, err := t.inner.Get(ctx, key)
		ch <- getResult{v, ok, err}
	}()
	select {
	case r := <-ch:
		return r.value, r.ok, r.err
	case <-ctx.Done():
		return "", false, timeoutErr(ctx)
	}
}

func (t *timeoutMedium) Set(ctx context.Context, key, value string) error {
	return t.bounded(ctx, func(ctx context.Context) error {
		return t.inner.Set(ctx, key, value)
	})
}

func (t *timeoutMedium) Remove(ctx context.Context, keys ...string) error {
	return t.bounded(ctx, func(ctx context.Context) error {
		return t.inner.Remove(ctx, keys...)
	})
}

func (t *timeoutMedium) Mutate(ctx context.Context, key string, fn MutateFunc) error {
	return t.bounded(ctx, func(ctx context.Context) error {
		return Mutate(ctx, t.inner, key, fn)
	})
}

func (t *timeoutMedium) Close() error {
	return t.inner.Close()
}

func (t *timeoutMedium) bounded(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	ch := make(chan error, 1)
	go func() { ch <- fn(ctx) }()
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return timeoutErr(ctx)
	}
}

func timeoutErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
