package isolation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-zookeeper/zk"
)

// DefaultGroupsPath is where bookie group assignments are stored.
const DefaultGroupsPath = "/bookies"

// Watcher is the part of *zk.Conn the cache needs: a read that also arms a
// one-shot watch on the node.
type Watcher interface {
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
}

type cachedValue struct {
	membership Membership
	version    int32
	mzxid      int64
}

// MembershipCache is a read-through cache over a single znode. A value is
// served until the znode's watch fires, after which the next read (or a
// background reload, see WithEagerReload) fetches it again. Reloads are
// single-flight.
type MembershipCache struct {
	watcher Watcher
	path    string
	decode  Decoder
	eager   bool
	logger  *slog.Logger

	value atomic.Pointer[cachedValue]

	reloadMu sync.Mutex
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
}

type CacheOption func(*MembershipCache)

func WithLogger(l *slog.Logger) CacheOption {
	return func(c *MembershipCache) { c.logger = l }
}

func WithDecoder(d Decoder) CacheOption {
	return func(c *MembershipCache) { c.decode = d }
}

// WithEagerReload makes a watch event start a reload in the background
// instead of leaving it to the next reader.
func WithEagerReload(eager bool) CacheOption {
	return func(c *MembershipCache) { c.eager = eager }
}

func NewMembershipCache(w Watcher, path string, opts ...CacheOption) *MembershipCache {
	if path == "" {
		path = DefaultGroupsPath
	}
	c := &MembershipCache{
		watcher: w,
		path:    path,
		decode:  DecodeMembership,
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Membership returns the cached group mapping, fetching it if the cache is
// empty or was invalidated. Errors wrap ErrConfigUnavailable or
// ErrMalformedMembership; stale data is never returned in their place.
func (c *MembershipCache) Membership() (Membership, error) {
	if v := c.value.Load(); v != nil {
		return v.membership, nil
	}
	v, err := c.reload()
	if err != nil {
		return nil, err
	}
	return v.membership, nil
}

// Version returns the znode version of the cached value.
func (c *MembershipCache) Version() (int32, bool) {
	v := c.value.Load()
	if v == nil {
		return 0, false
	}
	return v.version, true
}

// Invalidate drops the cached value so the next read goes to ZooKeeper.
func (c *MembershipCache) Invalidate() {
	c.value.Store(nil)
}

// Close stops all watch goroutines. Reads after Close fail.
func (c *MembershipCache) Close() error {
	c.reloadMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.value.Store(nil)
	c.reloadMu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *MembershipCache) reload() (*cachedValue, error) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%w: cache closed", ErrConfigUnavailable)
	}
	// someone else finished a reload while we waited
	if v := c.value.Load(); v != nil {
		return v, nil
	}

	data, stat, events, err := c.watcher.GetW(c.path)
	if err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrConfigUnavailable, c.path)
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrConfigUnavailable, c.path, err)
	}

	m, err := c.decode(data)
	if err != nil {
		if !errors.Is(err, ErrMalformedMembership) {
			err = fmt.Errorf("%w: %v", ErrMalformedMembership, err)
		}
		return nil, err
	}

	v := &cachedValue{membership: m}
	if stat != nil {
		v.version = stat.Version
		v.mzxid = stat.Mzxid
	}
	c.value.Store(v)

	c.logger.Info("reloading bookie isolation groups mapping",
		"path", c.path, "version", v.version, "groups", len(m))
	c.logger.Debug("bookie isolation groups payload", "path", c.path, "data", string(data))

	c.wg.Add(1)
	go c.watch(v, events)

	return v, nil
}

// watch waits for the one-shot event armed by the fetch that produced v.
func (c *MembershipCache) watch(v *cachedValue, events <-chan zk.Event) {
	defer c.wg.Done()

	var ev zk.Event
	select {
	case ev = <-events:
	case <-c.done:
		return
	}

	// a newer value has replaced v already
	if !c.value.CompareAndSwap(v, nil) {
		return
	}
	c.logger.Info("bookie isolation groups changed, invalidating cache",
		"path", c.path, "event", ev.Type.String(), "state", ev.State.String(), "err", ev.Err)

	if !c.eager {
		return
	}
	if _, err := c.reload(); err != nil {
		c.logger.Warn("background reload of bookie isolation groups failed", "path", c.path, "error", err)
	}
}
