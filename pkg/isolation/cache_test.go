package isolation

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeZK serves a single znode and fires one-shot watches like *zk.Conn.
type fakeZK struct {
	mu      sync.Mutex
	data    []byte
	version int32
	exists  bool
	err     error
	gets    int
	gate    chan struct{}
	watches []chan zk.Event
}

func newFakeZK(data string) *fakeZK {
	return &fakeZK{data: []byte(data), exists: true}
}

func (f *fakeZK) GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, nil, nil, f.err
	}
	if !f.exists {
		return nil, nil, nil, zk.ErrNoNode
	}
	ch := make(chan zk.Event, 1)
	f.watches = append(f.watches, ch)
	return append([]byte(nil), f.data...), &zk.Stat{Version: f.version}, ch, nil
}

func (f *fakeZK) fire(ev zk.Event) {
	for _, ch := range f.watches {
		ch <- ev
		close(ch)
	}
	f.watches = nil
}

func (f *fakeZK) set(data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = []byte(data)
	f.version++
	f.exists = true
	f.fire(zk.Event{Type: zk.EventNodeDataChanged, Path: DefaultGroupsPath})
}

func (f *fakeZK) remove() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists = false
	f.fire(zk.Event{Type: zk.EventNodeDeleted, Path: DefaultGroupsPath})
}

func (f *fakeZK) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeZK) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T, z *fakeZK, opts ...CacheOption) *MembershipCache {
	t.Helper()
	opts = append([]CacheOption{WithLogger(quietLogger())}, opts...)
	c := NewMembershipCache(z, "", opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitInvalidated(t *testing.T, c *MembershipCache) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := c.Version()
		return !ok
	}, time.Second, time.Millisecond)
}

const (
	docAB  = `{"groupA": {"bookie-x:3181": {}}, "groupB": {"bookie-y:3181": {}}}`
	docABC = `{"groupA": {"bookie-x:3181": {}}, "groupB": {"bookie-y:3181": {}}, "groupC": {"bookie-z:3181": {}}}`
)

func TestMembershipCache_ReadThrough(t *testing.T) {
	z := newFakeZK(docAB)
	c := newTestCache(t, z)

	m, err := c.Membership()
	require.NoError(t, err)
	assert.Len(t, m, 2)

	for i := 0; i < 5; i++ {
		_, err = c.Membership()
		require.NoError(t, err)
	}
	assert.Equal(t, 1, z.getCount())

	v, ok := c.Version()
	require.True(t, ok)
	assert.Equal(t, int32(0), v)
}

func TestMembershipCache_ReloadsAfterChange(t *testing.T) {
	z := newFakeZK(docAB)
	c := newTestCache(t, z)

	_, err := c.Membership()
	require.NoError(t, err)

	z.set(docABC)
	waitInvalidated(t, c)

	m, err := c.Membership()
	require.NoError(t, err)
	assert.Contains(t, m, "groupC")
	assert.Equal(t, 2, z.getCount())

	v, _ := c.Version()
	assert.Equal(t, int32(1), v)
}

func TestMembershipCache_NodeDeleted(t *testing.T) {
	z := newFakeZK(docAB)
	c := newTestCache(t, z)

	_, err := c.Membership()
	require.NoError(t, err)

	z.remove()
	waitInvalidated(t, c)

	m, err := c.Membership()
	require.ErrorIs(t, err, ErrConfigUnavailable)
	assert.Nil(t, m, "no stale data after delete")

	z.set(docABC)
	m, err = c.Membership()
	require.NoError(t, err)
	assert.Contains(t, m, "groupC")
}

func TestMembershipCache_FetchErrorRecovers(t *testing.T) {
	z := newFakeZK(docAB)
	z.setErr(zk.ErrConnectionClosed)
	c := newTestCache(t, z)

	_, err := c.Membership()
	require.ErrorIs(t, err, ErrConfigUnavailable)

	z.setErr(nil)
	m, err := c.Membership()
	require.NoError(t, err)
	assert.Len(t, m, 2)
}

func TestMembershipCache_Malformed(t *testing.T) {
	z := newFakeZK(`{"groupA": `)
	c := newTestCache(t, z)

	_, err := c.Membership()
	require.ErrorIs(t, err, ErrMalformedMembership)

	// a broken payload is never cached
	_, err = c.Membership()
	require.ErrorIs(t, err, ErrMalformedMembership)
	assert.Equal(t, 2, z.getCount())
}

func TestMembershipCache_CustomDecoderErrorIsMalformed(t *testing.T) {
	z := newFakeZK(docAB)
	c := newTestCache(t, z, WithDecoder(func([]byte) (Membership, error) {
		return nil, errors.New("boom")
	}))

	_, err := c.Membership()
	require.ErrorIs(t, err, ErrMalformedMembership)
}

func TestMembershipCache_SingleFlight(t *testing.T) {
	z := newFakeZK(docAB)
	z.gate = make(chan struct{})
	c := newTestCache(t, z)

	const readers = 16
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Membership()
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(z.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, z.getCount())
}

func TestMembershipCache_EagerReload(t *testing.T) {
	z := newFakeZK(docAB)
	c := newTestCache(t, z, WithEagerReload(true))

	_, err := c.Membership()
	require.NoError(t, err)

	z.set(docABC)
	require.Eventually(t, func() bool {
		v, ok := c.Version()
		return ok && v == 1
	}, time.Second, time.Millisecond)

	m, err := c.Membership()
	require.NoError(t, err)
	assert.Contains(t, m, "groupC")
	assert.Equal(t, 2, z.getCount())
}

func TestMembershipCache_StaleWatchKeepsNewerValue(t *testing.T) {
	z := newFakeZK(docAB)
	c := newTestCache(t, z)

	_, err := c.Membership()
	require.NoError(t, err)

	z.mu.Lock()
	first := z.watches[0]
	z.watches = nil
	z.mu.Unlock()

	c.Invalidate()
	_, err = c.Membership()
	require.NoError(t, err)
	require.Equal(t, 2, z.getCount())

	first <- zk.Event{Type: zk.EventNodeDataChanged}
	time.Sleep(20 * time.Millisecond)

	_, err = c.Membership()
	require.NoError(t, err)
	assert.Equal(t, 2, z.getCount())
}

func TestMembershipCache_SessionLossInvalidates(t *testing.T) {
	z := newFakeZK(docAB)
	c := newTestCache(t, z)

	_, err := c.Membership()
	require.NoError(t, err)

	z.mu.Lock()
	z.fire(zk.Event{Type: zk.EventNotWatching, State: zk.StateExpired, Err: zk.ErrSessionExpired})
	z.mu.Unlock()
	waitInvalidated(t, c)
}

func TestMembershipCache_Close(t *testing.T) {
	z := newFakeZK(docAB)
	c := NewMembershipCache(z, "", WithLogger(quietLogger()))

	_, err := c.Membership()
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Membership()
	require.ErrorIs(t, err, ErrConfigUnavailable)
}
