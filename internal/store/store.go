// Package store keeps named collections of JSON records on top of a kv.Medium.
//
// Each collection is persisted as one JSON array under its own key. Every
// mutation is a read-modify-write of that array done under a per-collection
// lock, and inside one medium transaction when the medium is a kv.Mutator, so
// stores in separate processes sharing a file do not overwrite each other.
// Exactly one notification follows on the store's Bus once the write has
// landed.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"pitchlog/internal/kv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Well-known collection names.
const (
	Sessions    = "sessions"
	Touches     = "touches"
	Reflections = "reflections"
)

// IDField is the key every record carries its generated id under.
const IDField = "id"

// Record is one JSON object. Numbers read back from storage are json.Number.
type Record map[string]any

func (r Record) ID() string {
	id, _ := r[IDField].(string)
	return id
}

func (r Record) clone() Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

type Store struct {
	medium kv.Medium
	bus    *Bus
	logger *zap.Logger
	newID  func() string

	mu          sync.Mutex
	collections map[string]*Collection
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDFunc replaces the uuid generator.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func New(medium kv.Medium, opts ...Option) *Store {
	s := &Store{
		medium:      medium,
		logger:      zap.NewNop(),
		newID:       func() string { return uuid.New().String() },
		collections: make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bus = NewBus(s.logger)
	return s
}

func (s *Store) Bus() *Bus { return s.bus }

func (s *Store) Medium() kv.Medium { return s.medium }

func (s *Store) Close() error { return s.medium.Close() }

// Collection returns the named collection, creating its handle on first use.
func (s *Store) Collection(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &Collection{
			name:   name,
			medium: s.medium,
			bus:    s.bus,
			logger: s.logger.With(zap.String("collection", name)),
			newID:  s.newID,
		}
		s.collections[name] = c
	}
	return c
}

type Collection struct {
	name   string
	medium kv.Medium
	bus    *Bus
	logger *zap.Logger
	newID  func() string

	mu sync.Mutex
}

func (c *Collection) Name() string { return c.name }

// Add stores a copy of rec under a fresh id and returns that id. An id
// already present in rec is overwritten.
func (c *Collection) Add(ctx context.Context, rec Record) (string, error) {
	item := rec.clone()
	var id string
	err := c.mutate(ctx, OpAdd, func(items []Record) ([]Record, bool) {
		id = c.newID()
		item[IDField] = id
		return append(items, item), true
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *Collection) Get(ctx context.Context, id string) (Record, bool, error) {
	items, err := c.read(ctx, "get")
	if err != nil {
		return nil, false, err
	}
	for _, it := range items {
		if it.ID() == id {
			return it, true, nil
		}
	}
	return nil, false, nil
}

// All returns every record in stored order.
func (c *Collection) All(ctx context.Context) ([]Record, error) {
	return c.read(ctx, "all")
}

// Update shallow-merges partial into the record with the given id. It returns
// 0 without writing when no such record exists. The id itself cannot be changed.
func (c *Collection) Update(ctx context.Context, id string, partial Record) (int, error) {
	count := 0
	err := c.mutate(ctx, OpUpdate, func(items []Record) ([]Record, bool) {
		for i, it := range items {
			if it.ID() != id {
				continue
			}
			for k, v := range partial {
				if k == IDField {
					continue
				}
				it[k] = v
			}
			items[i] = it
			count = 1
			return items, true
		}
		return items, false
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes the record with the given id. A missing id is a no-op.
func (c *Collection) Delete(ctx context.Context, id string) error {
	return c.mutate(ctx, OpDelete, func(items []Record) ([]Record, bool) {
		kept := items[:0]
		for _, it := range items {
			if it.ID() != id {
				kept = append(kept, it)
			}
		}
		return kept, len(kept) != len(items)
	})
}

// mutate runs fn against the current array under the collection lock and
// persists the result when fn reports a change. Subscribers are notified
// after the lock is released so they may query this collection.
func (c *Collection) mutate(ctx context.Context, op Op, fn func([]Record) ([]Record, bool)) error {
	changed, err := c.apply(ctx, op, fn)
	if err != nil || !changed {
		return err
	}
	c.bus.Publish(Change{Collection: c.name, Op: op})
	return nil
}

// apply is atomic against other stores sharing the medium when the medium is a
// kv.Mutator. The collection lock covers writers inside this process.
func (c *Collection) apply(ctx context.Context, op Op, fn func([]Record) ([]Record, bool)) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	err := kv.Mutate(ctx, c.medium, c.name, func(raw string, ok bool) (string, bool, error) {
		items, err := c.decode(string(op), raw, ok)
		if err != nil {
			return "", false, err
		}
		next, dirty := fn(items)
		if !dirty {
			return "", false, nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return "", false, &SerializationError{Collection: c.name, Err: err}
		}
		changed = true
		return string(data), true, nil
	})
	if err != nil {
		var se *SerializationError
		var ste *StorageError
		if !errors.As(err, &se) && !errors.As(err, &ste) {
			err = &StorageError{Op: string(op), Collection: c.name, Err: err}
		}
		return false, c.fail(err)
	}
	return changed, nil
}

func (c *Collection) read(ctx context.Context, op string) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx, op)
}

func (c *Collection) load(ctx context.Context, op string) ([]Record, error) {
	raw, ok, err := c.medium.Get(ctx, c.name)
	if err != nil {
		return nil, c.fail(&StorageError{Op: op, Collection: c.name, Err: err})
	}
	items, err := c.decode(op, raw, ok)
	if err != nil {
		return nil, c.fail(err)
	}
	return items, nil
}

func (c *Collection) decode(op, raw string, ok bool) ([]Record, error) {
	if !ok || raw == "" {
		return []Record{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var items []Record
	if err := dec.Decode(&items); err != nil {
		return nil, &StorageError{Op: op, Collection: c.name, Err: fmt.Errorf("malformed json: %w", err)}
	}
	if items == nil {
		items = []Record{}
	}
	return items, nil
}

func (c *Collection) fail(err error) error {
	var se *StorageError
	op := "encode"
	if errors.As(err, &se) {
		op = se.Op
	}
	c.logger.Error("collection operation failed", zap.String("op", op), zap.Error(err))
	return err
}
