// Package actions persists the vocabulary of touch actions offered for logging.
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"pitchlog/internal/kv"
)

// StorageKey is the medium key the vocabulary is saved under.
const StorageKey = "actionWheelSettings"

// Defaults is the vocabulary offered before the user changes anything.
var Defaults = []string{
	"Pass",
	"Dribble",
	"Shot",
	"Goal",
	"Tackle",
	"Header",
	"Corner Kick",
	"Cross",
	"Free Kick",
	"Penalty Kick",
}

// KnownStats are the action rows a stats summary always carries, logged or not.
var KnownStats = []string{
	"Pass",
	"Dribble",
	"Corner Kick",
	"Header",
	"Tackle",
	"Goal",
	"Shot",
	"Free Kick",
	"Penalty Kick",
	"Cross",
	"Yellow Card",
	"Red Card",
	"Goal Kick",
}

var ErrInvalidOrder = errors.New("order must be a permutation of the current actions")

type Settings struct {
	medium   kv.Medium
	defaults []string
	mu       sync.Mutex
}

// New returns settings backed by m. A nil or empty defaults uses Defaults.
func New(m kv.Medium, defaults []string) *Settings {
	if len(defaults) == 0 {
		defaults = Defaults
	}
	return &Settings{medium: m, defaults: slices.Clone(defaults)}
}

// Load returns the saved vocabulary, or the defaults when nothing is saved.
// A corrupt saved value yields the defaults together with the error.
func (s *Settings) Load(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Settings) load(ctx context.Context) ([]string, error) {
	raw, ok, err := s.medium.Get(ctx, StorageKey)
	if err != nil {
		return slices.Clone(s.defaults), fmt.Errorf("load actions: %w", err)
	}
	list, err := s.decode(raw, ok)
	if err != nil {
		return slices.Clone(s.defaults), err
	}
	return list, nil
}

func (s *Settings) decode(raw string, ok bool) ([]string, error) {
	if !ok {
		return slices.Clone(s.defaults), nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	return list, nil
}

func (s *Settings) save(ctx context.Context, list []string) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	if err := s.medium.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("save actions: %w", err)
	}
	return nil
}

// update reads the saved list, lets fn edit it and writes the result in one
// medium step. It reports whether anything was written.
func (s *Settings) update(ctx context.Context, fn func([]string) ([]string, bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wrote := false
	err := kv.Mutate(ctx, s.medium, StorageKey, func(raw string, ok bool) (string, bool, error) {
		list, err := s.decode(raw, ok)
		if err != nil {
			return "", false, err
		}
		next, write, err := fn(list)
		if err != nil || !write {
			return "", false, err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return "", false, fmt.Errorf("encode actions: %w", err)
		}
		wrote = true
		return string(data), true, nil
	})
	if err != nil {
		return false, fmt.Errorf("save actions: %w", err)
	}
	return wrote, nil
}

// Add appends name. It reports false when name is blank or already present,
// and when the write fails.
func (s *Settings) Add(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}
	return s.update(ctx, func(list []string) ([]string, bool, error) {
		if slices.Contains(list, name) {
			return nil, false, nil
		}
		return append(list, name), true, nil
	})
}

func (s *Settings) Remove(ctx context.Context, name string) error {
	_, err := s.update(ctx, func(list []string) ([]string, bool, error) {
		return slices.DeleteFunc(list, func(a string) bool { return a == name }), true, nil
	})
	return err
}

func (s *Settings) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, s.defaults)
}

func (s *Settings) Reorder(ctx context.Context, order []string) error {
	_, err := s.update(ctx, func(list []string) ([]string, bool, error) {
		a, b := slices.Clone(list), slices.Clone(order)
		slices.Sort(a)
		slices.Sort(b)
		if !slices.Equal(a, b) {
			return nil, false, ErrInvalidOrder
		}
		return order, true, nil
	})
	return err
}
