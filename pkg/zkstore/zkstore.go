package zkstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-zookeeper/zk"
)

const defaultRetryInterval = 2 * time.Second

// slogAdapter routes the client's internal logging through slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(format string, args ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, args...), "component", "zk")
}

// Connect dials the ensemble. servers: ["zk1:2181", "zk2:2181"]
func Connect(servers []string, sessionTimeout time.Duration, logger *slog.Logger) (*zk.Conn, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("zk connect: no servers configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogger(slogAdapter{logger: logger}))
	if err != nil {
		return nil, fmt.Errorf("zk connect: %w", err)
	}
	return conn, nil
}

type stater interface {
	State() zk.State
}

// WaitConnected polls until the client holds a session.
func WaitConnected(ctx context.Context, conn stater, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		st := conn.State()
		if st == zk.StateConnected || st == zk.StateHasSession {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("zk: not connected after %s, state=%v", timeout, st)
		case <-ticker.C:
		}
	}
}

// ChildrenWatcher is satisfied by *zk.Conn.
type ChildrenWatcher interface {
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
}

// ChildrenWatch keeps OnChange fed with the current children of Path.
type ChildrenWatch struct {
	Conn          ChildrenWatcher
	Path          string
	OnChange      func(children []string)
	RetryInterval time.Duration
	Logger        *slog.Logger
}

// Run reads the children, arms a watch and repeats on every event until ctx
// is done. Errors are logged and retried.
func (w *ChildrenWatch) Run(ctx context.Context) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := w.RetryInterval
	if retry <= 0 {
		retry = defaultRetryInterval
	}

	for {
		children, _, ch, err := w.Conn.ChildrenW(w.Path)
		if err != nil {
			logger.Warn("zk children watch failed", "path", w.Path, "error", err)
			select {
			case <-time.After(retry):
				continue
			case <-ctx.Done():
				return
			}
		}

		w.OnChange(children)

		select {
		case ev := <-ch:
			logger.Debug("zk children changed", "path", w.Path, "event", ev.Type.String())
		case <-ctx.Done():
			logger.Info("zk watch stopped", "path", w.Path)
			return
		}
	}
}
