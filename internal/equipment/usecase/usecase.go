package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgerror"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkguid"
)

// DefaultReportRows is how many equipment rows a PDF report lists.
const DefaultReportRows = 50

type Store interface {
	// Create stores the dataset and its rows, assigning row ids in place, then
	// applies the retention window. It returns the ids of evicted datasets.
	Create(ctx context.Context, dataset *entity.Dataset, rows []entity.Equipment) ([]int64, error)
	List(ctx context.Context) ([]entity.Dataset, error)
	GetDataset(ctx context.Context, id int64) (entity.Dataset, error)
	ListEquipment(ctx context.Context, datasetID int64) ([]entity.Equipment, error)
}

type Renderer interface {
	Render(summary entity.Summary, rows []entity.Equipment) ([]byte, error)
}

type Cache interface {
	Get(datasetID int64) ([]byte, bool)
	Put(datasetID int64, content []byte)
}

type EventPublisher interface {
	Publish(ctx context.Context, event entity.DatasetEvictedEvent) error
}

type Runner interface {
	TryGo(ctx context.Context, f func(ctx context.Context) error) bool
}

type Clock interface {
	Now() time.Time
}

type Dependency struct {
	Store      Store
	Renderer   Renderer
	Cache      Cache
	Events     EventPublisher
	Runner     Runner
	Clock      Clock
	ID         pkguid.NumberID
	EventID    pkguid.StringID
	RootCtx    context.Context
	ReportRows int
}

type Usecase struct {
	store      Store
	renderer   Renderer
	cache      Cache
	events     EventPublisher
	runner     Runner
	clock      Clock
	id         pkguid.NumberID
	eventID    pkguid.StringID
	rootCtx    context.Context
	reportRows int
}

func New(dep Dependency) *Usecase {
	root := dep.RootCtx
	if root == nil {
		root = context.Background()
	}

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	reportRows := dep.ReportRows
	if reportRows < 1 {
		reportRows = DefaultReportRows
	}

	return &Usecase{
		store:      dep.Store,
		renderer:   dep.Renderer,
		cache:      dep.Cache,
		events:     dep.Events,
		runner:     dep.Runner,
		clock:      clock,
		id:         dep.ID,
		eventID:    dep.EventID,
		rootCtx:    root,
		reportRows: reportRows,
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (u *Usecase) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if u.store == nil || u.id == nil {
		return UploadResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	if in.Body == nil {
		return UploadResult{}, pkgerror.NewInvalidInput(errors.New("no file provided"))
	}

	fileName := path.Base(strings.ReplaceAll(strings.TrimSpace(in.FileName), `\`, "/"))
	if !strings.EqualFold(path.Ext(fileName), ".csv") {
		return UploadResult{}, pkgerror.NewInvalidInput(errors.New("file must be a CSV"))
	}

	rows, err := ParseCSV(ctx, in.Body)
	if err != nil {
		return UploadResult{}, normalizeErr(err)
	}

	now := u.clock.Now()
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Dataset " + now.Format("2006-01-02 15:04")
	}

	dataset := entity.Dataset{
		ID:         u.id.Generate(),
		Name:       name,
		UploadedAt: now,
		TotalCount: len(rows),
		FileName:   fileName,
	}
	for i := range rows {
		rows[i].DatasetID = dataset.ID
	}

	evicted, err := u.store.Create(ctx, &dataset, rows)
	if err != nil {
		return UploadResult{}, normalizeErr(err)
	}

	slog.InfoContext(ctx, "dataset uploaded",
		"dataset_id", dataset.ID,
		"file_name", dataset.FileName,
		"rows", dataset.TotalCount,
		"evicted", len(evicted),
		"uploaded_by", in.UploadedBy,
	)

	u.publishEvictions(ctx, evicted)
	u.prewarmReport(dataset.ID)

	return UploadResult{Dataset: dataset, Equipment: rows}, nil
}

func (u *Usecase) Datasets(ctx context.Context) ([]entity.Dataset, error) {
	datasets, err := u.store.List(ctx)
	if err != nil {
		return nil, normalizeErr(err)
	}

	return datasets, nil
}

func (u *Usecase) Summary(ctx context.Context, datasetID int64) (entity.Summary, error) {
	dataset, rows, err := u.load(ctx, datasetID)
	if err != nil {
		return entity.Summary{}, err
	}

	summary := Summarize(rows)
	summary.Dataset = dataset

	return summary, nil
}

func (u *Usecase) Equipment(ctx context.Context, datasetID int64) ([]entity.Equipment, error) {
	if _, err := u.store.GetDataset(ctx, datasetID); err != nil {
		return nil, mapStoreErr(err)
	}

	rows, err := u.store.ListEquipment(ctx, datasetID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	return rows, nil
}

func (u *Usecase) Report(ctx context.Context, datasetID int64) (ReportResult, error) {
	result := ReportResult{
		DatasetID: datasetID,
		Filename:  fmt.Sprintf("equipment_report_%d.pdf", datasetID),
	}

	if u.cache != nil {
		if content, ok := u.cache.Get(datasetID); ok {
			// the eviction event may still be in flight
			if _, err := u.store.GetDataset(ctx, datasetID); err != nil {
				return ReportResult{}, mapStoreErr(err)
			}
			result.Content = content
			return result, nil
		}
	}

	if u.renderer == nil {
		return ReportResult{}, pkgerror.NewServer(errors.New("missing report renderer"))
	}

	dataset, rows, err := u.load(ctx, datasetID)
	if err != nil {
		return ReportResult{}, err
	}

	summary := Summarize(rows)
	summary.Dataset = dataset

	if len(rows) > u.reportRows {
		rows = rows[:u.reportRows]
	}

	content, err := u.renderer.Render(summary, rows)
	if err != nil {
		return ReportResult{}, pkgerror.NewServer(fmt.Errorf("render report: %w", err))
	}

	if u.cache != nil {
		u.cache.Put(datasetID, content)
	}

	result.Content = content
	return result, nil
}

func (u *Usecase) load(ctx context.Context, datasetID int64) (entity.Dataset, []entity.Equipment, error) {
	dataset, err := u.store.GetDataset(ctx, datasetID)
	if err != nil {
		return entity.Dataset{}, nil, mapStoreErr(err)
	}

	rows, err := u.store.ListEquipment(ctx, datasetID)
	if err != nil {
		return entity.Dataset{}, nil, mapStoreErr(err)
	}

	return dataset, rows, nil
}

func (u *Usecase) publishEvictions(ctx context.Context, evicted []int64) {
	if u.events == nil {
		return
	}

	for _, id := range evicted {
		event := entity.DatasetEvictedEvent{DatasetID: id}
		if u.eventID != nil {
			event.EventID = u.eventID.Generate()
		}

		if err := u.events.Publish(ctx, event); err != nil {
			slog.WarnContext(ctx, "failed to publish eviction", "dataset_id", id, "error", err)
		}
	}
}

func (u *Usecase) prewarmReport(datasetID int64) {
	if u.runner == nil || u.cache == nil || u.renderer == nil {
		return
	}

	scheduled := u.runner.TryGo(u.rootCtx, func(ctx context.Context) error {
		// evicted before the render got to it
		if _, err := u.Report(ctx, datasetID); err != nil && !pkgerror.HasCode(err, pkgerror.CodeNotFound) {
			return err
		}
		return nil
	})
	if !scheduled {
		slog.DebugContext(u.rootCtx, "report prewarm skipped", "dataset_id", datasetID)
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, pkgerror.ErrNotFound) {
		return pkgerror.NewNotFound("dataset not found")
	}
	return normalizeErr(err)
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
