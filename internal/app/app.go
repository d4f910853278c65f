package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgconfig"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkglog"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgrouter"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgroutine"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkguid"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	goroutine *pkgroutine.Manager
	auth      pkgrouter.Authenticator

	// server
	router     *pkgrouter.Router
	httpServer *http.Server

	// closed in reverse registration order
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func New() *App {
	pkglog.InitLogging(slog.LevelInfo)

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initLibraries()
	app.initHTTPServer()
	app.initModules()

	return app
}
