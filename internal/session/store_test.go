package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: t0}
	st := NewStore(zap.NewNop())
	st.now = clock.Now
	return st, clock
}

func TestStore_CreateGetDelete(t *testing.T) {
	st, _ := newTestStore()

	a := st.Create()
	b := st.Create()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, Unauthenticated, a.State())
	assert.Equal(t, t0, a.StartedAt)
	assert.Equal(t, 2, st.Len())

	got, ok := st.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	st.Delete(a.ID)
	_, ok = st.Get(a.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, st.Len())
}

func TestStore_SweepRemovesIdle(t *testing.T) {
	st, clock := newTestStore()

	idle := st.Create()
	busy := st.Create()

	clock.Advance(90 * time.Minute)
	_, ok := st.Get(busy.ID)
	require.True(t, ok)

	clock.Advance(45 * time.Minute)
	expired := st.Sweep(2 * time.Hour)

	require.Len(t, expired, 1)
	assert.Equal(t, idle.ID, expired[0].ID)

	_, ok = st.Get(idle.ID)
	assert.False(t, ok)
	_, ok = st.Get(busy.ID)
	assert.True(t, ok)
}

func TestStore_SweepSkipsLockedSession(t *testing.T) {
	st, clock := newTestStore()
	sess := st.Create()

	mu := st.Lock(sess.ID)
	clock.Advance(3 * time.Hour)

	assert.Empty(t, st.Sweep(2*time.Hour), "a request in flight keeps its session")
	_, ok := st.Get(sess.ID)
	require.True(t, ok)

	// the handler finishes; the session then goes idle again
	mu.Unlock()
	clock.Advance(3 * time.Hour)

	expired := st.Sweep(2 * time.Hour)
	require.Len(t, expired, 1)
	assert.Equal(t, sess.ID, expired[0].ID)

	// a later lock for the same ID is a fresh mutex, usable right away
	fresh := st.Lock(sess.ID)
	assert.NotSame(t, mu, fresh)
	fresh.Unlock()
}

func TestStore_LockSerializesPerSession(t *testing.T) {
	st, _ := newTestStore()
	sess := st.Create()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu := st.Lock(sess.ID)
			defer mu.Unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestStore_RunSweeperStopsOnCancel(t *testing.T) {
	st := NewStore(zap.NewNop())
	st.Create()

	expiredCh := make(chan *Session, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- st.RunSweeper(ctx, 5*time.Millisecond, time.Nanosecond, func(s *Session) {
			expiredCh <- s
		})
	}()

	select {
	case <-expiredCh:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never expired the session")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, st.Len())
}
