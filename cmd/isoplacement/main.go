package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"

	"bkisolation/internal/config"
	"bkisolation/internal/http"
	"bkisolation/pkg/bookie"
	"bkisolation/pkg/isolation"
	"bkisolation/pkg/placement"
	"bkisolation/pkg/zkstore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := initConfig(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := initLogger(&cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("isoplacement failed", "error", err)
		os.Exit(1)
	}
	logger.Info("isoplacement stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	conn, err := zkstore.Connect(cfg.ZooKeeper.Servers, cfg.ZooKeeper.SessionTimeout, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := zkstore.WaitConnected(ctx, conn, cfg.ZooKeeper.ConnectTimeout); err != nil {
		return err
	}

	pool := placement.NewPool()
	available := &zkstore.ChildrenWatch{
		Conn:     conn,
		Path:     cfg.Isolation.AvailablePath,
		OnChange: func(children []string) { syncPool(pool, cfg.Isolation.AvailablePath, children, logger) },
		Logger:   logger,
	}
	go available.Run(ctx)

	// checked once: isolation cannot be turned on or off without a restart
	groups := isolation.ParseGroups(cfg.Isolation.IsolationBookieGroups)
	var source placement.MembershipSource
	if groups.Enabled() {
		cache := isolation.NewMembershipCache(conn, cfg.Isolation.GroupsPath,
			isolation.WithLogger(logger),
			isolation.WithEagerReload(cfg.Isolation.EagerReload),
		)
		defer cache.Close()
		source = cache
		logger.Info("bookie isolation enabled", "groups", groups.Names(), "path", cfg.Isolation.GroupsPath)
	} else {
		logger.Info("bookie isolation disabled")
	}

	policy, err := placement.NewIsolatedPolicy(pool, groups, source, logger)
	if err != nil {
		return err
	}

	server := http.NewServer(policy, pool, cfg.HTTP.Port)
	if err := server.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	return server.Stop()
}

// syncPool replaces the pool with the bookies registered under the available
// path. Children that are not host:port (e.g. the "readonly" node) are skipped.
func syncPool(pool *placement.Pool, root string, children []string, logger *slog.Logger) {
	addrs := make([]bookie.Address, 0, len(children))
	for _, c := range children {
		a, err := bookie.ParseAddress(c)
		if err != nil {
			logger.Debug("skipping non-bookie child", "path", path.Join(root, c))
			continue
		}
		addrs = append(addrs, a)
	}
	pool.Sync(addrs)
	logger.Info("available bookies updated", "count", len(addrs))
}
