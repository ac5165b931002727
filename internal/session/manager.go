// Package session resolves the day's active session and owns every write to
// sessions, touches and reflections.
//
// Callers never reach the record store directly. Going through the Manager
// keeps the one-session-per-day lookup, the reflection upsert and the reset
// cascade in one place.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"pitchlog/internal/actions"
	"pitchlog/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	// ErrOperationFailed wraps every storage failure returned by the Manager.
	ErrOperationFailed = errors.New("operation failed")
	ErrNotFound        = errors.New("not found")
	ErrInvalidPatch    = errors.New("invalid patch")
)

type Manager struct {
	st          *store.Store
	sessions    *store.Collection
	touches     *store.Collection
	reflections *store.Collection
	drafts      *Drafts
	logger      *zap.Logger
	now         func() time.Time
	known       []string

	resolve   singleflight.Group
	reflectMu sync.Mutex

	mu          sync.Mutex
	activeID    string
	lastCreated int64
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock sets the time source. Today's date is taken in the location of
// the returned time.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithKnownActions sets the stat rows every summary carries.
func WithKnownActions(known []string) Option {
	return func(m *Manager) { m.known = slices.Clone(known) }
}

func NewManager(st *store.Store, opts ...Option) *Manager {
	m := &Manager{
		st:          st,
		sessions:    st.Collection(store.Sessions),
		touches:     st.Collection(store.Touches),
		reflections: st.Collection(store.Reflections),
		drafts:      NewDrafts(st.Medium()),
		logger:      zap.NewNop(),
		now:         time.Now,
		known:       slices.Clone(actions.KnownStats),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Drafts() *Drafts { return m.drafts }

func (m *Manager) KnownActions() []string { return slices.Clone(m.known) }

// ActiveSessionID is empty until GetOrCreateActiveSession succeeds.
func (m *Manager) ActiveSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

func (m *Manager) fail(op string, err error) error {
	m.logger.Warn("session operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w: %w", op, ErrOperationFailed, err)
}

// GetOrCreateActiveSession returns today's session id, creating the session
// if there is none. A new session carries the profile of the most recently
// created one forward. Concurrent calls for the same day share one lookup.
// The shared lookup is detached from any single caller's cancellation; a
// cancelled caller stops waiting and the others still get the result.
func (m *Manager) GetOrCreateActiveSession(ctx context.Context) (string, error) {
	now := m.now()
	today := now.Format(dateLayout)

	ch := m.resolve.DoChan(today, func() (any, error) {
		return m.resolveDay(context.WithoutCancel(ctx), now)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", m.fail("resolve session", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return "", m.fail("resolve session", res.Err)
	}

	id := res.Val.(string)
	m.mu.Lock()
	m.activeID = id
	m.mu.Unlock()
	return id, nil
}

func (m *Manager) resolveDay(ctx context.Context, now time.Time) (string, error) {
	today := now.Format(dateLayout)

	if id, ok, err := m.findDay(ctx, today); err != nil || ok {
		return id, err
	}

	prevRec, hasPrev, err := m.sessions.OrderBy("createdAt").Last(ctx)
	if err != nil {
		return "", err
	}
	var prev Session
	if hasPrev {
		if prev, err = fromRecord[Session](prevRec); err != nil {
			return "", fmt.Errorf("decode previous session: %w", err)
		}
	}

	next := Session{
		Date:              today,
		Time:              now.Format(timeLayout),
		PlayerName:        prev.PlayerName,
		Position:          prev.Position,
		Club:              prev.Club,
		Team:              prev.Team,
		Age:               prev.Age,
		Level:             prev.Level,
		TotalYearsPlaying: prev.TotalYearsPlaying,
		TotalHoursTrained: prev.TotalHoursTrained,
		CreatedAt:         m.nextCreatedAt(now, prev.CreatedAt),
	}
	rec, err := toRecord(next)
	if err != nil {
		return "", &store.SerializationError{Collection: store.Sessions, Err: err}
	}

	// Another manager on the same store may have created the row meanwhile.
	if id, ok, err := m.findDay(ctx, today); err != nil || ok {
		return id, err
	}
	id, err := m.sessions.Add(ctx, rec)
	if err != nil {
		return "", err
	}
	m.logger.Info("created session",
		zap.String("session", id),
		zap.String("date", today),
		zap.Bool("carried_forward", hasPrev))
	return id, nil
}

func (m *Manager) findDay(ctx context.Context, day string) (string, bool, error) {
	rec, ok, err := m.sessions.Where("date").Equals(day).First(ctx)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.ID(), true, nil
}

// nextCreatedAt returns a millisecond stamp strictly after both the last one
// this manager issued and floor.
func (m *Manager) nextCreatedAt(now time.Time, floor int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := now.UnixMilli()
	if ts <= floor {
		ts = floor + 1
	}
	if ts <= m.lastCreated {
		ts = m.lastCreated + 1
	}
	m.lastCreated = ts
	return ts
}

// GetSession reads one session.
func (m *Manager) GetSession(ctx context.Context, id string) (Session, bool, error) {
	if id == "" {
		return Session{}, false, nil
	}
	rec, ok, err := m.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, false, m.fail("get session", err)
	}
	if !ok {
		return Session{}, false, nil
	}
	s, err := fromRecord[Session](rec)
	if err != nil {
		return Session{}, false, m.fail("get session", err)
	}
	return s, true, nil
}

// Sessions lists every session, newest first.
func (m *Manager) Sessions(ctx context.Context) ([]Session, error) {
	recs, err := m.sessions.All(ctx)
	if err != nil {
		return nil, m.fail("list sessions", err)
	}
	list, err := fromRecords[Session](recs)
	if err != nil {
		return nil, m.fail("list sessions", err)
	}
	slices.SortStableFunc(list, func(a, b Session) int {
		switch {
		case a.CreatedAt > b.CreatedAt:
			return -1
		case a.CreatedAt < b.CreatedAt:
			return 1
		}
		return 0
	})
	return list, nil
}

// UpdateSession merges the set fields of p into the session and reports
// whether the session exists. A missing row is not an error: it writes
// nothing and returns false. An empty id or an empty patch is a no-op. A
// successful write refreshes the profile draft.
func (m *Manager) UpdateSession(ctx context.Context, id string, p SessionPatch) (bool, error) {
	if id == "" {
		return false, nil
	}
	rec, err := toRecord(p)
	if err != nil {
		return false, m.fail("update session", &store.SerializationError{Collection: store.Sessions, Err: err})
	}
	if len(rec) == 0 {
		return true, nil
	}
	n, err := m.sessions.Update(ctx, id, rec)
	if err != nil {
		return false, m.fail("update session", err)
	}
	if n == 0 {
		m.logger.Debug("update skipped, session not found", zap.String("session", id))
		return false, nil
	}

	if s, ok, err := m.GetSession(ctx, id); err == nil && ok {
		if err := m.drafts.Save(ctx, DraftProfile, s); err != nil {
			m.logger.Debug("profile draft not saved", zap.Error(err))
		}
	}
	return true, nil
}

// Profile returns the session's profile. While the store cannot be read the
// saved profile draft stands in, and the read error is returned alongside it.
func (m *Manager) Profile(ctx context.Context, id string) (Session, Source, error) {
	stored, ok, err := m.GetSession(ctx, id)
	if err == nil {
		var p *Session
		if ok {
			p = &stored
		}
		s, src := Hydrate(p, true, nil)
		return s, src, nil
	}

	var draft Session
	found, derr := m.drafts.Load(ctx, DraftProfile, &draft)
	var dp *Session
	if derr == nil && found {
		dp = &draft
	}
	s, src := Hydrate(nil, false, dp)
	return s, src, err
}

// AddTouch appends a touch stamped with the current time. It does nothing
// when sessionID is empty. Quality is stored as given.
func (m *Manager) AddTouch(ctx context.Context, sessionID, actionType string, q Quality) error {
	if sessionID == "" {
		return nil
	}
	_, err := m.touches.Add(ctx, store.Record{
		"sessionId":  sessionID,
		"actionType": actionType,
		"quality":    string(q),
		"timestamp":  m.now().UnixMilli(),
	})
	if err != nil {
		return m.fail("add touch", err)
	}
	return nil
}

// Touches returns the session's touches in logging order, never nil.
func (m *Manager) Touches(ctx context.Context, sessionID string) ([]Touch, error) {
	if sessionID == "" {
		return []Touch{}, nil
	}
	recs, err := m.touches.Where("sessionId").Equals(sessionID).ToArray(ctx)
	if err != nil {
		return nil, m.fail("list touches", err)
	}
	list, err := fromRecords[Touch](recs)
	if err != nil {
		return nil, m.fail("list touches", err)
	}
	return list, nil
}

func (m *Manager) Stats(ctx context.Context, sessionID string) (Stats, error) {
	touches, err := m.Touches(ctx, sessionID)
	if err != nil {
		return ComputeStats(nil, m.known), err
	}
	return ComputeStats(touches, m.known), nil
}

// Reflection returns the session's reflection, if one has been written.
func (m *Manager) Reflection(ctx context.Context, sessionID string) (Reflection, bool, error) {
	if sessionID == "" {
		return Reflection{}, false, nil
	}
	rec, ok, err := m.reflections.Where("sessionId").Equals(sessionID).First(ctx)
	if err != nil {
		return Reflection{}, false, m.fail("get reflection", err)
	}
	if !ok {
		return Reflection{}, false, nil
	}
	r, err := fromRecord[Reflection](rec)
	if err != nil {
		return Reflection{}, false, m.fail("get reflection", err)
	}
	return r, true, nil
}

// UpdateReflection writes the set sections of p into the session's
// reflection, creating it on first write. Sections replace what is stored;
// sections not in p are kept. It does nothing when sessionID is empty.
func (m *Manager) UpdateReflection(ctx context.Context, sessionID string, p ReflectionPatch) error {
	if sessionID == "" {
		return nil
	}
	if err := p.Validate(); err != nil {
		return err
	}
	rec, err := toRecord(p)
	if err != nil {
		return m.fail("update reflection", &store.SerializationError{Collection: store.Reflections, Err: err})
	}
	if len(rec) == 0 {
		return nil
	}

	m.reflectMu.Lock()
	defer m.reflectMu.Unlock()

	existing, ok, err := m.reflections.Where("sessionId").Equals(sessionID).First(ctx)
	if err != nil {
		return m.fail("update reflection", err)
	}
	if ok {
		if _, err := m.reflections.Update(ctx, existing.ID(), rec); err != nil {
			return m.fail("update reflection", err)
		}
		return nil
	}

	rec["sessionId"] = sessionID
	if _, err := m.reflections.Add(ctx, rec); err != nil {
		return m.fail("update reflection", err)
	}
	return nil
}

// ResetSession deletes the session, its touches, its reflection and all
// form drafts, in that order. It stops at the first failure; the caller
// should retry, and each step is safe to repeat.
func (m *Manager) ResetSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.sessions.Delete(ctx, sessionID); err != nil {
		return m.fail("reset session", err)
	}
	touches, err := m.touches.Where("sessionId").Equals(sessionID).Delete(ctx)
	if err != nil {
		return m.fail("reset session", err)
	}
	if _, err := m.reflections.Where("sessionId").Equals(sessionID).Delete(ctx); err != nil {
		return m.fail("reset session", err)
	}
	if err := m.drafts.Clear(ctx); err != nil {
		return m.fail("reset session", err)
	}

	m.mu.Lock()
	if m.activeID == sessionID {
		m.activeID = ""
	}
	m.mu.Unlock()

	m.logger.Info("session reset", zap.String("session", sessionID), zap.Int("touches", touches))
	return nil
}

// ActiveSession returns the active session, or the zero value when none is
// set or it has been removed.
func (m *Manager) ActiveSession(ctx context.Context) (Session, error) {
	s, _, err := m.GetSession(ctx, m.ActiveSessionID())
	return s, err
}

// ActiveTouches returns the active session's touches, never nil.
func (m *Manager) ActiveTouches(ctx context.Context) ([]Touch, error) {
	return m.Touches(ctx, m.ActiveSessionID())
}

func (m *Manager) ActiveReflection(ctx context.Context) (Reflection, error) {
	r, _, err := m.Reflection(ctx, m.ActiveSessionID())
	return r, err
}

func (m *Manager) ActiveStats(ctx context.Context) (Stats, error) {
	return m.Stats(ctx, m.ActiveSessionID())
}
