package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/ABTechWorks/TinyLittleHelper/config"
	"github.com/ABTechWorks/TinyLittleHelper/internal/agentapi"
	"github.com/ABTechWorks/TinyLittleHelper/internal/auth"
	"github.com/ABTechWorks/TinyLittleHelper/internal/dashboard"
	"github.com/ABTechWorks/TinyLittleHelper/internal/db"
	"github.com/ABTechWorks/TinyLittleHelper/internal/health"
	"github.com/ABTechWorks/TinyLittleHelper/internal/identity"
	"github.com/ABTechWorks/TinyLittleHelper/internal/logs"
	"github.com/ABTechWorks/TinyLittleHelper/internal/middleware"
	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
	"github.com/ABTechWorks/TinyLittleHelper/internal/netscan"
	"github.com/ABTechWorks/TinyLittleHelper/internal/presence"
	"github.com/ABTechWorks/TinyLittleHelper/internal/repo"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server
	sweeper    *presence.Sweeper

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB (опционально; пустой driver — всё в памяти) */
	if drv := a.cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, a.cfg.Database.DSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		a.db = d

		if err := a.db.AutoMigrate(
			&models.Account{},
			&models.Session{},
			&models.Device{}); err != nil {
			log.Fatalf("db migrate failed: %v", err)
		}
	}

	/* 3) Хранилища: gorm либо in-memory */
	var (
		store    presence.Store
		accounts auth.Accounts
		sessions auth.Sessions
	)
	if a.db != nil {
		store = repo.NewDeviceStore(a.db)
		accounts = repo.NewAccountStore(a.db)
		sessions = repo.NewSessionStore(a.db)
	} else {
		store = presence.NewMemoryStore()
		accounts = auth.NewMemAccounts()
		sessions = auth.NewMemSessions()
	}

	authSvc := auth.New(accounts, sessions, a.cfg.Auth.SessionTTL)
	resolver := identity.NewResolver(netscan.New(), a.cfg.Presence.ARPTimeout)
	a.sweeper = presence.NewSweeper(store, a.cfg.Presence.OfflineAfter, a.cfg.Presence.SweepInterval)

	/* 4) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	/* 5) Health */
	if a.db != nil {
		health.RegisterRoutesWithDB(a.Router, a.db) // /healthz, /readyz
	} else {
		health.RegisterRoutes(a.Router) // только /healthz
	}

	agentapi.RegisterRoutes(a.Router, agentapi.New(store, authSvc, resolver))
	dashboard.RegisterRoutes(a.Router, dashboard.New(store, authSvc, a.cfg.Presence.OfflineAfter))

	/* (необязательно) вывести известные маршруты в лог при старте */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	// Фоновый sweep staleness — полностью развязан с запросами
	go a.sweeper.Run(a.ctx)

	// Жёсткие таймауты — это важно для production
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	return nil
}
