package session

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Snapshot is the read-only state a report is built from.
type Snapshot struct {
	Session       Session    `json:"session"`
	Touches       []Touch    `json:"touches"`
	Stats         Stats      `json:"stats"`
	Reflection    Reflection `json:"reflection"`
	HasReflection bool       `json:"hasReflection"`
}

// Snapshot reads everything recorded for a session.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s, ok, err := m.GetSession(gctx, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
		}
		snap.Session = s
		return nil
	})
	g.Go(func() error {
		touches, err := m.Touches(gctx, sessionID)
		if err != nil {
			return err
		}
		snap.Touches = touches
		return nil
	})
	g.Go(func() error {
		r, ok, err := m.Reflection(gctx, sessionID)
		if err != nil {
			return err
		}
		snap.Reflection, snap.HasReflection = r, ok
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.Stats = ComputeStats(snap.Touches, m.known)
	return snap, nil
}
