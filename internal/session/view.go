package session

import (
	"context"
	"sync"

	"pitchlog/internal/livequery"
)

// View keeps the active session's data current as the store changes.
type View struct {
	SessionID string

	known      []string
	session    *livequery.Query[Session]
	touches    *livequery.Query[[]Touch]
	reflection *livequery.Query[Reflection]

	updates chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// Watch resolves the active session if needed and starts live queries for
// it. The caller must Close the view.
func (m *Manager) Watch(ctx context.Context) (*View, error) {
	id := m.ActiveSessionID()
	if id == "" {
		var err error
		if id, err = m.GetOrCreateActiveSession(ctx); err != nil {
			return nil, err
		}
	}

	opt := livequery.WithLogger(m.logger)
	bus := m.st.Bus()
	v := &View{
		SessionID: id,
		known:     m.KnownActions(),
		session: livequery.New(ctx, bus, func(ctx context.Context) (Session, error) {
			s, _, err := m.GetSession(ctx, id)
			return s, err
		}, opt),
		touches: livequery.New(ctx, bus, func(ctx context.Context) ([]Touch, error) {
			return m.Touches(ctx, id)
		}, opt),
		reflection: livequery.New(ctx, bus, func(ctx context.Context) (Reflection, error) {
			r, _, err := m.Reflection(ctx, id)
			return r, err
		}, opt),
		updates: make(chan struct{}, 1),
	}

	v.wg.Add(1)
	go v.fanIn()
	return v, nil
}

func (v *View) fanIn() {
	defer v.wg.Done()
	defer close(v.updates)

	sc, tc, rc := v.session.Changes(), v.touches.Changes(), v.reflection.Changes()
	for sc != nil || tc != nil || rc != nil {
		select {
		case _, ok := <-sc:
			if !ok {
				sc = nil
				continue
			}
		case _, ok := <-tc:
			if !ok {
				tc = nil
				continue
			}
		case _, ok := <-rc:
			if !ok {
				rc = nil
				continue
			}
		}
		select {
		case v.updates <- struct{}{}:
		default:
		}
	}
}

// Updates signals whenever any part of the view changes. It is closed by Close.
func (v *View) Updates() <-chan struct{} { return v.updates }

// Wait blocks until session, touches and reflection have each loaded once.
func (v *View) Wait(ctx context.Context) error {
	if _, err := v.session.Wait(ctx); err != nil {
		return err
	}
	if _, err := v.touches.Wait(ctx); err != nil {
		return err
	}
	_, err := v.reflection.Wait(ctx)
	return err
}

// Session returns the latest session, or the zero value before it loads.
func (v *View) Session() Session {
	s, _ := v.session.Result()
	return s
}

func (v *View) Touches() []Touch {
	t, ok := v.touches.Result()
	if !ok || t == nil {
		return []Touch{}
	}
	return t
}

func (v *View) Reflection() Reflection {
	r, _ := v.reflection.Result()
	return r
}

func (v *View) Stats() Stats {
	return ComputeStats(v.Touches(), v.known)
}

func (v *View) Close() {
	v.once.Do(func() {
		v.session.Close()
		v.touches.Close()
		v.reflection.Close()
		v.wg.Wait()
	})
}
