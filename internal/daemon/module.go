// Package daemon wires the session components together with fx and exposes
// the control socket.
package daemon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/thinhng24/CollabSphere-sub001/internal/auth"
	"github.com/thinhng24/CollabSphere-sub001/internal/bus"
	"github.com/thinhng24/CollabSphere-sub001/internal/config"
	"github.com/thinhng24/CollabSphere-sub001/internal/lock"
	"github.com/thinhng24/CollabSphere-sub001/internal/logging"
	"github.com/thinhng24/CollabSphere-sub001/internal/orchestrator"
	"github.com/thinhng24/CollabSphere-sub001/internal/outbox"
	"github.com/thinhng24/CollabSphere-sub001/internal/push"
	"github.com/thinhng24/CollabSphere-sub001/internal/rest"
	"github.com/thinhng24/CollabSphere-sub001/internal/session"
	"github.com/thinhng24/CollabSphere-sub001/internal/state"
	"github.com/thinhng24/CollabSphere-sub001/internal/storage"
	"github.com/thinhng24/CollabSphere-sub001/internal/token"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideLock,
			provideStore,
			provideTokenStore,
			provideRESTClient,
			provideCoordinator,
			providePushMachine,
			providePushManager,
			provideStateStore,
			provideSender,
			provideOrchestrator,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig() (*config.Config, error) {
	return config.LoadOrDefault(session.ConfigPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.LockPath(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*storage.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	requeued, err := db.RequeueStuckOutbox()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if requeued > 0 {
		logger.Info("requeued interrupted sends", zap.Int64("count", requeued))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTokenStore() *token.Store {
	return token.NewStore()
}

func provideRESTClient(cfg *config.Config) *rest.Client {
	return rest.NewClient(cfg.Server.APIBaseURL, cfg.RequestTimeout())
}

// provideCoordinator builds the refresh coordinator and closes the loop with
// the REST client: the client asks the coordinator for tokens, the
// coordinator refreshes through the client's unauthenticated endpoint.
func provideCoordinator(tokens *token.Store, client *rest.Client, db *storage.DB, b *bus.Bus, logger *zap.Logger) *auth.Coordinator {
	coord := auth.NewCoordinator(tokens, client, db, b, logger)
	client.SetTokenSource(coord.AccessToken)
	return coord
}

func providePushMachine(b *bus.Bus) *push.Machine {
	return push.NewMachine(b)
}

func providePushManager(cfg *config.Config, machine *push.Machine, coord *auth.Coordinator, logger *zap.Logger) *push.Manager {
	return push.NewManager(cfg.Server.PushURL, push.NewWebsocketTransport(), coord.AccessToken, machine, logger)
}

func provideStateStore(b *bus.Bus) *state.Store {
	return state.NewStore(b)
}

func provideSender(db *storage.DB, client *rest.Client, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, b, logger)
}

func provideOrchestrator(tokens *token.Store, coord *auth.Coordinator, client *rest.Client, manager *push.Manager, states *state.Store, db *storage.DB, b *bus.Bus, logger *zap.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Deps{
		Tokens:      tokens,
		Coordinator: coord,
		API:         client,
		Channel:     manager,
		States:      states,
		DB:          db,
		Bus:         b,
		Logger:      logger,
		OnAuthExpired: func() {
			logger.Warn("session expired, waiting for login over the control socket")
		},
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, orch *orchestrator.Orchestrator, sender *outbox.Sender, db *storage.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("control server error", zap.Error(err))
				}
			}()

			sender.Start(context.Background())

			// Resume the previous session if usable credentials survived.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := orch.Restore(ctx); err != nil {
					if errors.Is(err, auth.ErrNotAuthenticated) {
						logger.Info("no stored session, login required")
					} else {
						logger.Warn("session restore failed", zap.Error(err))
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sender.Stop()
			orch.Close()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
