package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/qaiserfcc/helpDesk-sub001/internal/client/api"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/config"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/connectivity"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/localdb"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/offline"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/realtime"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/refresh"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/session"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/syncer"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/logging"
)

// app is the wired client. Every command builds one and closes it.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB

	sessions    *session.Store
	client      *api.Client
	coordinator *refresh.Coordinator
	queue       *offline.Queue
	monitor     *connectivity.Monitor
	engine      *syncer.Engine
	realtime    *realtime.Manager
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(logging.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Output:      os.Stderr,
		ServiceName: "deskctl",
		Environment: "client",
	})

	db, err := localdb.Open(ctx, cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		sessions: session.NewStore(db),
		client:   api.NewClient(cfg.APIURL, cfg.RequestTimeout, logger),
		queue:    offline.NewQueue(db),
		realtime: realtime.NewManager(cfg.WSURL, logger),
	}
	a.coordinator = refresh.NewCoordinator(a.client, a.sessions, cfg.RefreshInterval, logger,
		refresh.WithSignOutHook(a.realtime.Disconnect),
	)
	a.monitor = connectivity.NewMonitor(a.client, cfg.HealthInterval, logger)
	a.engine = syncer.NewEngine(a.queue,
		syncer.RemoteApplier{Client: a.client, Coordinator: a.coordinator},
		a.monitor, cfg.SyncInterval, logger,
	)
	return a, nil
}

// close stops background work in dependency order.
func (a *app) close() {
	a.engine.Close()
	a.monitor.Close()
	a.coordinator.Close()
	a.realtime.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close local database", "error", err)
	}
}
