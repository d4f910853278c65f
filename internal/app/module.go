package app

import (
	"log/slog"
	"os"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.equipment.enabled") {
		closeFn, err := equipment.New(equipment.Dependency{
			Config:    a.config,
			Router:    a.router,
			Goroutine: a.goroutine,
			Context:   a.ctx,
			Auth:      a.auth,
			EventID:   a.uuid,
		})
		if err != nil {
			slog.Error("failed to init module equipment", "error", err)
			os.Exit(1)
		}
		if closeFn != nil {
			a.addCloser("Equipment", closeFn)
		}
	}
}
