package equipment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/event"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/inbound"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/report"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/store"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/usecase"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgconfig"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgrouter"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgroutine"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkguid"
)

const defaultReportCacheSize = 16

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	Auth      pkgrouter.Authenticator
	EventID   pkguid.StringID
}

type datasetStore interface {
	usecase.Store
	Close(ctx context.Context) error
}

func New(dep Dependency) (func(context.Context) error, error) {
	retention := int(dep.Config.GetInt("modules.equipment.retention"))
	if retention < 1 {
		retention = store.DefaultRetention
	}

	storage, err := newStore(dep.Config, retention)
	if err != nil {
		return nil, err
	}

	ids, err := pkguid.NewSnowflake(dep.Config.GetInt("modules.equipment.node_id"))
	if err != nil {
		_ = storage.Close(context.Background())
		return nil, err
	}

	if dep.EventID == nil {
		dep.EventID = pkguid.NewUUID()
	}

	cacheSize := int(dep.Config.GetInt("modules.equipment.report_cache"))
	if cacheSize < 1 {
		cacheSize = defaultReportCacheSize
	}
	cache := usecase.NewReportCache(cacheSize)

	bus := event.NewBus(64)
	consumer := event.NewEvictionConsumer(bus, event.ReportEvictor{Cache: cache}, event.ConsumerConfig{
		Workers:     2,
		MaxRetries:  3,
		BaseBackoff: 100 * time.Millisecond,
	})
	consumer.Start()

	uc := usecase.New(usecase.Dependency{
		Store:      storage,
		Renderer:   report.NewRenderer(),
		Cache:      cache,
		Events:     bus,
		Runner:     dep.Goroutine,
		ID:         ids,
		EventID:    dep.EventID,
		RootCtx:    dep.Context,
		ReportRows: int(dep.Config.GetInt("modules.equipment.report_rows")),
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, inbound.Config{
		MaxUploadBytes: dep.Config.GetInt("modules.equipment.max_upload_bytes"),
		Auth:           dep.Auth,
	})

	slog.Info("equipment module ready", "retention", retention, "storage", storageDriver(dep.Config))

	return func(ctx context.Context) error {
		return errors.Join(consumer.Stop(ctx), storage.Close(ctx))
	}, nil
}

func storageDriver(cfg pkgconfig.Config) string {
	driver := strings.ToLower(strings.TrimSpace(cfg.GetString("storage.driver")))
	if driver == "" {
		return "memory"
	}
	return driver
}

func newStore(cfg pkgconfig.Config, retention int) (datasetStore, error) {
	switch driver := storageDriver(cfg); driver {
	case "memory":
		return memoryStore{store.NewInMemoryStore(retention)}, nil
	case "sqlite":
		path := cfg.GetString("storage.sqlite.path")
		if path == "" {
			path = "./data/equipment.db"
		}

		db, err := store.OpenSQLite(path)
		if err != nil {
			return nil, err
		}

		s, err := store.NewGormStore(db, retention)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

type memoryStore struct {
	*store.InMemoryStore
}

func (memoryStore) Close(context.Context) error {
	return nil
}
