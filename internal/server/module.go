// Package server composes the process with fx.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/pliu/engihub/internal/auth"
	"github.com/pliu/engihub/internal/chat"
	"github.com/pliu/engihub/internal/config"
	"github.com/pliu/engihub/internal/dispatch"
	"github.com/pliu/engihub/internal/escrow"
	"github.com/pliu/engihub/internal/friends"
	"github.com/pliu/engihub/internal/handlers"
	"github.com/pliu/engihub/internal/logging"
	"github.com/pliu/engihub/internal/notify"
	"github.com/pliu/engihub/internal/presence"
	"github.com/pliu/engihub/internal/store"
	"github.com/pliu/engihub/internal/store/sqlstore"
	"github.com/pliu/engihub/internal/ws"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Module returns the fx module for the server, composing all providers and
// lifecycle hooks.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("server",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideStore,
			providePresence,
			provideHub,
			provideDispatcher,
			provideNotifier,
			provideEngine,
			provideChat,
			provideFriends,
			provideSigner,
			provideRouter,
			provideHTTPServer,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log)
}

func provideStore(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	st, err := sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	result, err := st.Migrate()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("driver", cfg.Database.Driver))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return st.Close() },
	})
	return st, nil
}

func providePresence(logger *zap.Logger) *presence.Registry {
	return presence.NewRegistry(logger)
}

func provideHub(reg *presence.Registry, cfg *config.Config, logger *zap.Logger) *ws.Hub {
	return ws.NewHub(reg, cfg.WS, logger)
}

func provideDispatcher(reg *presence.Registry, hub *ws.Hub, logger *zap.Logger) dispatch.Dispatcher {
	return dispatch.NewLive(reg, hub, logger)
}

func provideNotifier(st store.Store, d dispatch.Dispatcher, logger *zap.Logger) *notify.Service {
	return notify.NewService(st, d, logger)
}

func provideEngine(st store.Store, n *notify.Service, logger *zap.Logger) *escrow.Engine {
	return escrow.NewEngine(st, n, logger)
}

func provideChat(st store.Store, d dispatch.Dispatcher, logger *zap.Logger) *chat.Service {
	return chat.NewService(st, d, logger)
}

func provideFriends(st store.Store, n *notify.Service, logger *zap.Logger) *friends.Service {
	return friends.NewService(st, n, logger)
}

func provideSigner(cfg *config.Config, logger *zap.Logger) *auth.Signer {
	if cfg.UsesDefaultSecret() {
		logger.Warn("auth.cookie_secret is the built-in default; sessions can be forged until it is changed",
			zap.String("hint", "engihub init-config writes a config with a random secret"))
	}
	return auth.NewSigner(cfg.Auth.CookieSecret)
}

type routerParams struct {
	fx.In

	Config   *config.Config
	Store    store.Store
	Signer   *auth.Signer
	Engine   *escrow.Engine
	Chat     *chat.Service
	Notifier *notify.Service
	Friends  *friends.Service
	Hub      *ws.Hub
	Registry *presence.Registry
	Logger   *zap.Logger
}

func provideRouter(p routerParams) http.Handler {
	log := p.Logger.Named("http")
	return handlers.NewRouter(handlers.Handlers{
		Auth:          &handlers.AuthHandler{Store: p.Store, Signer: p.Signer, InitialBalance: p.Config.Auth.InitialBalance, Log: log},
		Tasks:         &handlers.TaskHandler{Engine: p.Engine, Log: log},
		Chat:          &handlers.ChatHandler{Chat: p.Chat, Log: log},
		Notifications: &handlers.NotificationHandler{Notify: p.Notifier, Log: log},
		Friends:       &handlers.FriendHandler{Friends: p.Friends, Log: log},
		Realtime:      &handlers.RealtimeHandler{Hub: p.Hub, Registry: p.Registry, Signer: p.Signer},
		Signer:        p.Signer,
		Log:           log,
	})
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerLifecycle(lc fx.Lifecycle, srv *http.Server, hub *ws.Hub, chatSvc *chat.Service, logger *zap.Logger) {
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub.SetInboundHandler(chatSvc)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				stopHub()
				return err
			}

			go hub.Run(hubCtx)

			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			logger.Info("server started", zap.String("addr", ln.Addr().String()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := srv.Shutdown(ctx)
			stopHub()
			logger.Info("server stopped")
			return err
		},
	})
}
