package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pitchlog/internal/kv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// faultyMedium counts writes and fails the operations switched on.
type faultyMedium struct {
	*kv.Memory
	sets     atomic.Int32
	failGet  atomic.Bool
	failSet  atomic.Bool
	failWith error
}

func newFaultyMedium() *faultyMedium {
	return &faultyMedium{Memory: kv.NewMemory(), failWith: errors.New("disk full")}
}

func (f *faultyMedium) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet.Load() {
		return "", false, f.failWith
	}
	return f.Memory.Get(ctx, key)
}

func (f *faultyMedium) Set(ctx context.Context, key, value string) error {
	if f.failSet.Load() {
		return f.failWith
	}
	f.sets.Add(1)
	return f.Memory.Set(ctx, key, value)
}

func newTestStore(t *testing.T) (*Store, *faultyMedium) {
	t.Helper()
	m := newFaultyMedium()
	return New(m), m
}

func countChanges(s *Store) (*atomic.Int32, func()) {
	var n atomic.Int32
	unsub := s.Bus().Subscribe(func(Change) { n.Add(1) })
	return &n, unsub
}

func TestAddGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	sessions := s.Collection(Sessions)

	in := Record{
		"playerName": "Alex",
		"age":        "10",
		"active":     true,
		"tags":       []any{"vision", "first touch"},
		"formation":  map[string]any{"teamName": "U11", "players": map[string]any{"1": "Sam"}},
		"note":       nil,
	}
	id, err := sessions.Add(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	_, hasID := in[IDField]
	assert.False(t, hasID, "input record must not be mutated")

	got, ok, err := sessions.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	want := Record{IDField: id}
	for k, v := range in {
		want[k] = v
	}
	assert.Equal(t, want, got)
	assert.IsType(t, "", got["age"], "string ages stay strings")
}

func TestNumbersComeBackAsExactJSONNumbers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c := s.Collection(Touches)

	id, err := c.Add(ctx, Record{"timestamp": int64(1760659200123), "rating": 7})
	require.NoError(t, err)

	got, _, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, json.Number("1760659200123"), got["timestamp"])
	assert.Equal(t, json.Number("7"), got["rating"])
}

func TestAddAssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c := s.Collection(Touches)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := c.Add(ctx, Record{IDField: "caller-supplied", "n": i})
		require.NoError(t, err)
		assert.NotEqual(t, "caller-supplied", id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGetMissing(t *testing.T) {
	s, _ := newTestStore(t)
	rec, ok, err := s.Collection(Sessions).Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestUpdateMergesShallow(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c := s.Collection(Reflections)

	id, err := c.Add(ctx, Record{
		"sessionId":           "s1",
		"whatLearned":         "press higher",
		"detailedPerformance": map[string]any{"Passing": 7, "Vision": 5},
	})
	require.NoError(t, err)

	n, err := c.Update(ctx, id, Record{
		"detailedPerformance": map[string]any{"Passing": 9},
		IDField:               "hijack",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, got.ID())
	assert.Equal(t, "press higher", got["whatLearned"])
	assert.Equal(t, map[string]any{"Passing": json.Number("9")}, got["detailedPerformance"], "nested objects are replaced")
}

func TestUpdateMissingReturnsZeroWithoutWrite(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t)
	changes, unsub := countChanges(s)
	defer unsub()

	n, err := s.Collection(Sessions).Update(ctx, "ghost", Record{"club": "FC"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(0), m.sets.Load())
	assert.Equal(t, int32(0), changes.Load())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t)
	c := s.Collection(Sessions)

	keep, err := c.Add(ctx, Record{"date": "2026-10-16"})
	require.NoError(t, err)
	drop, err := c.Add(ctx, Record{"date": "2026-10-17"})
	require.NoError(t, err)

	changes, unsub := countChanges(s)
	defer unsub()

	require.NoError(t, c.Delete(ctx, drop))
	assert.Equal(t, int32(1), changes.Load())

	writes := m.sets.Load()
	require.NoError(t, c.Delete(ctx, drop), "deleting a missing id is a no-op")
	assert.Equal(t, writes, m.sets.Load())
	assert.Equal(t, int32(1), changes.Load())

	all, err := c.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep, all[0].ID())
}

func TestWhereEqualsFirstAndToArray(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c := s.Collection(Touches)

	for i, sid := range []string{"a", "b", "a", "c", "a"} {
		_, err := c.Add(ctx, Record{"sessionId": sid, "seq": i})
		require.NoError(t, err)
	}

	first, ok, err := c.Where("sessionId").Equals("a").First(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, json.Number("0"), first["seq"])

	all, err := c.Where("sessionId").Equals("a").ToArray(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, want := range []string{"0", "2", "4"} {
		assert.Equal(t, json.Number(want), all[i]["seq"], "stored order is preserved")
	}

	bySeq, ok, err := c.Where("seq").Equals(3).First(ctx)
	require.NoError(t, err)
	require.True(t, ok, "numbers match by value")
	assert.Equal(t, "c", bySeq["sessionId"])

	none, err := c.Where("sessionId").Equals("zzz").ToArray(ctx)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, ok, err = c.Where("missingField").Equals(nil).First(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "absent fields never match")
}

func TestFilteredDeleteIsOneBatch(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t)
	c := s.Collection(Touches)

	owners := []string{"X", "Y", "X", "X", "Z", "X", "Y", "X"}
	for _, o := range owners {
		_, err := c.Add(ctx, Record{"sessionId": o})
		require.NoError(t, err)
	}

	writes := m.sets.Load()
	changes, unsub := countChanges(s)
	defer unsub()

	n, err := c.Where("sessionId").Equals("X").Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, writes+1, m.sets.Load(), "exactly one persisted write")
	assert.Equal(t, int32(1), changes.Load(), "exactly one notification")

	rest, err := c.All(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	for _, r := range rest {
		assert.NotEqual(t, "X", r["sessionId"])
	}

	n, err = c.Where("sessionId").Equals("X").Delete(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int32(1), changes.Load())
}

func TestOrderByLast(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c := s.Collection(Sessions)

	_, ok, err := c.OrderBy("createdAt").Last(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty collection")

	for _, ts := range []int64{300, 100, 900, 200} {
		_, err := c.Add(ctx, Record{"createdAt": ts, "tag": fmt.Sprint(ts)})
		require.NoError(t, err)
	}
	_, err = c.Add(ctx, Record{"tag": "no-timestamp"})
	require.NoError(t, err)

	last, ok, err := c.OrderBy("createdAt").Last(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "900", last["tag"])

	all, err := c.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "300", all[0]["tag"], "sorting works on a copy")
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"numbers", json.Number("10"), json.Number("9"), 1},
		{"mixed numeric types", 3, json.Number("3"), 0},
		{"strings", "2026-10-16", "2026-10-17", -1},
		{"null first", nil, "a", -1},
		{"numbers before strings", json.Number("1"), "0", -1},
		{"bools", false, true, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Compare(tc.a, tc.b))
		})
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c := s.Collection(Sessions)

	id, err := c.Add(ctx, Record{"date": "2026-10-17"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := c.Update(ctx, id, Record{fmt.Sprintf("f%d", i): i})
			assert.NoError(t, err)
			assert.Equal(t, 1, n)
		}(i)
	}
	wg.Wait()

	got, _, err := c.Get(ctx, id)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		assert.Contains(t, got, fmt.Sprintf("f%d", i), "no update may be lost")
	}
}

func TestConcurrentAddsKeepEveryRecord(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c := s.Collection(Touches)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Add(ctx, Record{"sessionId": "s"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := c.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 40)
}

func TestStoresSharingOneFileKeepEveryAdd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	var stores []*Store
	for range 2 {
		m, err := kv.OpenSQLite(dir)
		require.NoError(t, err)
		st := New(m)
		t.Cleanup(func() { _ = st.Close() })
		stores = append(stores, st)
	}

	var wg sync.WaitGroup
	for _, st := range stores {
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := st.Collection(Touches).Add(ctx, Record{"sessionId": "s"})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for _, st := range stores {
		all, err := st.Collection(Touches).All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 40)
	}
}

func TestStorageFailures(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t)
	c := s.Collection(Sessions)

	id, err := c.Add(ctx, Record{"playerName": "Alex"})
	require.NoError(t, err)

	changes, unsub := countChanges(s)
	defer unsub()

	m.failSet.Store(true)
	_, err = c.Update(ctx, id, Record{"playerName": "Sam"})
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Sessions, se.Collection)
	assert.ErrorIs(t, err, m.failWith)
	assert.Equal(t, int32(0), changes.Load(), "no notification for a failed write")

	m.failSet.Store(false)
	got, _, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alex", got["playerName"], "prior state intact")

	m.failGet.Store(true)
	_, _, err = c.Where("playerName").Equals("Alex").First(ctx)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "first", se.Op)
}

func TestMalformedJSONIsStorageError(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t)
	require.NoError(t, m.Memory.Set(ctx, Touches, "{not json"))

	_, err := s.Collection(Touches).All(ctx)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Error(), "malformed json")
}

func TestSerializationError(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t)
	c := s.Collection(Reflections)

	_, err := c.Add(ctx, Record{"bad": func() {}})
	var ser *SerializationError
	require.ErrorAs(t, err, &ser)
	assert.Equal(t, int32(0), m.sets.Load())

	all, err := c.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTimeoutSurfacesAsStorageError(t *testing.T) {
	ctx := context.Background()
	inner := &blockingMedium{Memory: kv.NewMemory(), release: make(chan struct{})}
	defer close(inner.release)

	s := New(kv.WithTimeout(inner, 10*time.Millisecond))
	_, err := s.Collection(Sessions).Add(ctx, Record{})
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, kv.ErrTimeout)
}

type blockingMedium struct {
	*kv.Memory
	release chan struct{}
}

func (b *blockingMedium) Set(ctx context.Context, key, value string) error {
	<-b.release
	return nil
}

func TestNotificationAfterWriteAllowsReentrantReads(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c := s.Collection(Touches)

	var seen []int
	unsub := s.Bus().Subscribe(func(ch Change) {
		all, err := c.All(ctx)
		require.NoError(t, err)
		seen = append(seen, len(all))
		assert.Equal(t, Touches, ch.Collection)
	})
	defer unsub()

	for i := 0; i < 3; i++ {
		_, err := c.Add(ctx, Record{"n": i})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestBusSurvivesPanickingSubscriber(t *testing.T) {
	bus := NewBus(nil)
	var after atomic.Bool
	bus.Subscribe(func(Change) { panic("boom") })
	bus.Subscribe(func(Change) { after.Store(true) })

	assert.NotPanics(t, func() { bus.Publish(Change{Collection: Sessions, Op: OpAdd}) })
	assert.True(t, after.Load())
	assert.Equal(t, 2, bus.Len())
}

func TestBusUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus(nil)
	var calls atomic.Int32
	unsub := bus.Subscribe(func(Change) { calls.Add(1) })
	other := bus.Subscribe(func(Change) {})
	defer other()

	bus.Publish(Change{})
	unsub()
	unsub()
	bus.Publish(Change{})

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, bus.Len())
}

func TestWatcherPublishesExternalChanges(t *testing.T) {
	dir := t.TempDir()
	bus := NewBus(nil)
	got := make(chan Change, 4)
	unsub := bus.Subscribe(func(c Change) {
		select {
		case got <- c:
		default:
		}
	})
	defer unsub()

	w, err := Watch(context.Background(), dir, kv.DBFile, bus, nil, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, kv.DBFile), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, kv.DBFile), []byte("ab"), 0644))

	select {
	case c := <-got:
		assert.Equal(t, Change{Collection: AnyCollection, Op: OpExternal}, c)
	case <-time.After(2 * time.Second):
		t.Fatal("no external change published")
	}
}
