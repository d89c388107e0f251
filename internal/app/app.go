package app

import (
	"net/http"

	"github.com/pion/logging"

	"wchat-sfu/internal/config"
	"wchat-sfu/internal/database"
	"wchat-sfu/internal/handlers"
	"wchat-sfu/internal/ice"
	"wchat-sfu/internal/keepalive"
	"wchat-sfu/internal/recovery"
	"wchat-sfu/internal/routes"
	"wchat-sfu/internal/sfu"
)

// App holds the application state
type App struct {
	cfg     *config.Config
	log     logging.LeveledLogger
	store   *database.Store
	manager *sfu.Manager
	mux     *http.ServeMux
}

// New creates and initializes a new App
func New() (*App, error) {
	cfg := config.Load()
	log := logging.NewDefaultLoggerFactory().NewLogger("wchat-sfu")

	store, err := database.Open(cfg.DBURL, log)
	if err != nil {
		return nil, err
	}

	manager := sfu.NewManager(log)

	iceProvider := &ice.Provider{
		StunURL:            cfg.StunURL,
		TurnURL:            cfg.TurnURL,
		TurnAuth:           cfg.TurnAuth,
		TurnAuthExpiration: cfg.TurnAuthExpiration,
		Logger:             log,
	}

	sessionCfg := sfu.SessionConfig{
		Keepalive: keepalive.Config{
			PingInterval: cfg.KeepalivePingInt,
			PongWaitTime: cfg.KeepalivePongWait,
		},
		WriteDeadline: cfg.WriteDeadline,
	}

	mux := http.NewServeMux()
	routes.Setup(mux, handlers.New(log, store, manager, iceProvider, sessionCfg))

	return &App{
		cfg:     cfg,
		log:     log,
		store:   store,
		manager: manager,
		mux:     mux,
	}, nil
}

// Run starts the HTTP server and begins listening
func (a *App) Run() error {
	defer func() {
		if err := a.store.Close(); err != nil {
			a.log.Errorf("Failed to close database: %v", err)
		}
	}()

	a.log.Infof("Starting HTTP server on %s", a.cfg.Addr)
	if err := http.ListenAndServe(a.cfg.Addr, recovery.Middleware(a.log, a.mux)); err != nil { //nolint: gosec
		a.log.Errorf("Failed to start http server: %v", err)
		return err
	}

	return nil
}
