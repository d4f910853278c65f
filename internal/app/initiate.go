package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgconfig"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkglog"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgrouter"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgroutine"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkguid"
)

func (a *App) initConfig() {
	path := "/config/config.yaml"
	if os.Getenv("LOCAL") == "true" {
		path = "./config/config.yaml"
	}

	cfg, err := pkgconfig.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("tz"))

	if level := cfg.GetString("log.level"); level != "" {
		pkglog.InitLogging(pkglog.ParseLevel(level))
	}

	a.config = cfg
	a.addCloser("Config", func(context.Context) error {
		return a.config.Close()
	})
}

func (a *App) initLibraries() {
	workers := int(a.config.GetInt("server.goroutines"))
	if workers < 1 {
		workers = 100
	}

	a.goroutine = pkgroutine.NewManager(workers)
	a.uuid = pkguid.NewUUID()

	users := pkgrouter.Users(a.config.GetMap("auth.users"))
	if len(users) == 0 {
		slog.Warn("no users configured, every authenticated endpoint will answer 401")
	}
	a.auth = users
}

func (a *App) initHTTPServer() {
	a.router = pkgrouter.NewRouter(a.uuid)

	origins := a.config.GetArray("server.cors.origins")
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Correlation-ID", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	})

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("server.address.http"),
		Handler:           corsHandler.Handler(a.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
