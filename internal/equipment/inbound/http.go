package inbound

import (
	"context"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/usecase"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgrouter"
)

// DefaultMaxUploadBytes caps a multipart upload body.
const DefaultMaxUploadBytes int64 = 10 << 20

type uc interface {
	Upload(ctx context.Context, in usecase.UploadInput) (usecase.UploadResult, error)
	Datasets(ctx context.Context) ([]entity.Dataset, error)
	Summary(ctx context.Context, datasetID int64) (entity.Summary, error)
	Equipment(ctx context.Context, datasetID int64) ([]entity.Equipment, error)
	Report(ctx context.Context, datasetID int64) (usecase.ReportResult, error)
}

type Config struct {
	MaxUploadBytes int64
	Auth           pkgrouter.Authenticator
}

func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc, cfg Config) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	end := &HTTPEndpoint{uc: uc, maxUploadBytes: cfg.MaxUploadBytes}
	auth := pkgrouter.MiddlewareBasicAuth("equipment", cfg.Auth)

	r.POST("/upload", end.Upload, auth)

	r.GET("/datasets", end.Datasets, auth)
	r.GET("/datasets/:id/summary", end.Summary, auth)
	r.GET("/datasets/:id/equipment", end.Equipment, auth)
	r.GET("/datasets/:id/pdf", end.Report, auth)
}
