package session

import (
	"context"
	"encoding/json"
	"fmt"

	"pitchlog/internal/kv"
)

// Draft keys, one per form section.
const (
	DraftProfile      = "playerProfile"
	DraftReflection   = "playerReflection"
	DraftFormation    = "footballFormation"
	DraftAttendance   = "playerAttendance"
	DraftEvaluation   = "playerEvaluation"
	DraftEvaluationBy = "playerEvaluationBy"
)

var DraftKeys = []string{
	DraftProfile,
	DraftReflection,
	DraftFormation,
	DraftAttendance,
	DraftEvaluation,
	DraftEvaluationBy,
}

// Drafts is the last-known-good copy of each form section, kept in the
// medium outside the record collections.
type Drafts struct {
	medium kv.Medium
}

func NewDrafts(m kv.Medium) *Drafts {
	return &Drafts{medium: m}
}

func (d *Drafts) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", key, err)
	}
	if err := d.medium.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("save draft %s: %w", key, err)
	}
	return nil
}

// Load decodes the draft under key into v and reports whether one existed.
func (d *Drafts) Load(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := d.medium.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load draft %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode draft %s: %w", key, err)
	}
	return true, nil
}

// Clear removes every draft.
func (d *Drafts) Clear(ctx context.Context) error {
	if err := d.medium.Remove(ctx, DraftKeys...); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	return nil
}

// Source says where a hydrated value came from.
type Source int

const (
	SourceNone Source = iota
	SourceDraft
	SourceStore
)

func (s Source) String() string {
	switch s {
	case SourceDraft:
		return "draft"
	case SourceStore:
		return "store"
	}
	return "none"
}

// Hydrate picks the value a form should show. Once the store has answered,
// its answer stands, even when it has no record; the draft only fills in
// while the store is unresolved.
func Hydrate[T any](stored *T, storeLoaded bool, draft *T) (T, Source) {
	var zero T
	if storeLoaded {
		if stored != nil {
			return *stored, SourceStore
		}
		return zero, SourceNone
	}
	if draft != nil {
		return *draft, SourceDraft
	}
	return zero, SourceNone
}
