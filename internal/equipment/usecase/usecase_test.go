package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgerror"
)

const validCSV = "Equipment Name,Type,Flowrate,Pressure,Temperature\n" +
	"Pump-1,Pump,120,5.2,110\n" +
	"Valve-1,Valve,60,abc,105\n" +
	"Pump-2,Pump,80,4.8,\n"

type testStore struct {
	mu        sync.RWMutex
	retention int
	order     []int64
	datasets  map[int64]entity.Dataset
	rows      map[int64][]entity.Equipment
	err       error
}

func newTestStore(retention int) *testStore {
	return &testStore{
		retention: retention,
		datasets:  make(map[int64]entity.Dataset),
		rows:      make(map[int64][]entity.Equipment),
	}
}

func (s *testStore) Create(ctx context.Context, dataset *entity.Dataset, rows []entity.Equipment) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	for i := range rows {
		rows[i].ID = int64(i + 1)
	}
	s.datasets[dataset.ID] = *dataset
	s.rows[dataset.ID] = append([]entity.Equipment(nil), rows...)
	s.order = append(s.order, dataset.ID)

	var evicted []int64
	for len(s.order) > s.retention {
		id := s.order[0]
		s.order = s.order[1:]
		delete(s.datasets, id)
		delete(s.rows, id)
		evicted = append(evicted, id)
	}
	return evicted, nil
}

func (s *testStore) List(ctx context.Context) ([]entity.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]entity.Dataset, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.datasets[s.order[i]])
	}
	return out, nil
}

func (s *testStore) GetDataset(ctx context.Context, id int64) (entity.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[id]
	if !ok {
		return entity.Dataset{}, pkgerror.ErrNotFound
	}
	return ds, nil
}

func (s *testStore) ListEquipment(ctx context.Context, datasetID int64) ([]entity.Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.rows[datasetID]
	if !ok {
		return nil, pkgerror.ErrNotFound
	}
	return append([]entity.Equipment(nil), rows...), nil
}

func (s *testStore) drop(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.datasets, id)
	delete(s.rows, id)
}

type testRenderer struct {
	mu    sync.Mutex
	calls int
	rows  int
	err   error
}

func (r *testRenderer) Render(summary entity.Summary, rows []entity.Equipment) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.rows = len(rows)
	if r.err != nil {
		return nil, r.err
	}
	return []byte(fmt.Sprintf("%%PDF %d %s", summary.Dataset.ID, summary.Dataset.Name)), nil
}

type testPublisher struct {
	mu     sync.Mutex
	events []entity.DatasetEvictedEvent
}

func (p *testPublisher) Publish(ctx context.Context, event entity.DatasetEvictedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// syncRunner runs submitted work inline so tests observe its effects.
type syncRunner struct {
	mu   sync.Mutex
	errs []error
}

func (r *syncRunner) TryGo(ctx context.Context, f func(ctx context.Context) error) bool {
	err := f(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errs = append(r.errs, err)
	}
	return true
}

type testID struct {
	mu sync.Mutex
	n  int64
}

func (t *testID) Generate() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return t.n
}

type testEventID struct {
	mu sync.Mutex
	n  int
}

func (t *testEventID) Generate() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return fmt.Sprintf("evt-%d", t.n)
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

type fixture struct {
	uc       *Usecase
	store    *testStore
	renderer *testRenderer
	cache    *ReportCache
	events   *testPublisher
	runner   *syncRunner
}

func newFixture(retention int) fixture {
	f := fixture{
		store:    newTestStore(retention),
		renderer: &testRenderer{},
		cache:    NewReportCache(8),
		events:   &testPublisher{},
		runner:   &syncRunner{},
	}

	f.uc = New(Dependency{
		Store:    f.store,
		Renderer: f.renderer,
		Cache:    f.cache,
		Events:   f.events,
		Runner:   f.runner,
		Clock:    fixedClock{now: time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)},
		ID:       &testID{},
		EventID:  &testEventID{},
	})

	return f
}

func assertCode(t *testing.T, err error, want pkgerror.Code) *pkgerror.Error {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error with code %v, got nil", want)
	}

	var perr *pkgerror.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected pkgerror.Error, got %T", err)
	}
	if perr.Code() != want {
		t.Fatalf("error code = %v, want %v", perr.Code(), want)
	}

	return perr
}

func TestUploadStoresDatasetAndRows(t *testing.T) {
	t.Parallel()

	f := newFixture(5)

	res, err := f.uc.Upload(context.Background(), UploadInput{
		FileName: "plant.csv",
		Body:     strings.NewReader(validCSV),
	})
	if err != nil {
		t.Fatalf("Upload() err = %v", err)
	}

	if res.Dataset.TotalCount != 3 || len(res.Equipment) != 3 {
		t.Fatalf("Upload() count = %d/%d, want 3/3", res.Dataset.TotalCount, len(res.Equipment))
	}
	if res.Dataset.Name != "Dataset 2024-03-01 09:05" {
		t.Fatalf("Upload() default name = %q", res.Dataset.Name)
	}
	if res.Dataset.FileName != "plant.csv" {
		t.Fatalf("Upload() file name = %q", res.Dataset.FileName)
	}

	valve := res.Equipment[1]
	if valve.Pressure != nil || valve.Flowrate == nil || *valve.Flowrate != 60 || valve.Temperature == nil {
		t.Fatalf("Upload() valve row = %+v, want only pressure missing", valve)
	}
	for _, row := range res.Equipment {
		if row.DatasetID != res.Dataset.ID || row.ID == 0 {
			t.Fatalf("Upload() row ids = %d/%d", row.ID, row.DatasetID)
		}
	}

	stored, err := f.uc.Equipment(context.Background(), res.Dataset.ID)
	if err != nil {
		t.Fatalf("Equipment() err = %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("Equipment() len = %d, want 3", len(stored))
	}

	// upload pre-renders the report
	if _, ok := f.cache.Get(res.Dataset.ID); !ok {
		t.Fatal("Upload() expected report to be cached")
	}
}

func TestUploadKeepsGivenNameAndWindowsPath(t *testing.T) {
	t.Parallel()

	f := newFixture(5)

	res, err := f.uc.Upload(context.Background(), UploadInput{
		Name:     "  Morning run ",
		FileName: `C:\data\PLANT.CSV`,
		Body:     strings.NewReader(validCSV),
	})
	if err != nil {
		t.Fatalf("Upload() err = %v", err)
	}
	if res.Dataset.Name != "Morning run" {
		t.Fatalf("Upload() name = %q, want %q", res.Dataset.Name, "Morning run")
	}
	if res.Dataset.FileName != "PLANT.CSV" {
		t.Fatalf("Upload() file name = %q, want PLANT.CSV", res.Dataset.FileName)
	}
}

func TestUploadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      UploadInput
		wantMsg string
	}{
		{
			name:    "no file",
			in:      UploadInput{FileName: "a.csv"},
			wantMsg: "no file provided",
		},
		{
			name:    "wrong extension",
			in:      UploadInput{FileName: "a.xlsx", Body: strings.NewReader(validCSV)},
			wantMsg: "file must be a CSV",
		},
		{
			name:    "missing column",
			in:      UploadInput{FileName: "a.csv", Body: strings.NewReader("Equipment Name,Type,Flowrate,Pressure\nP,Pump,1,2\n")},
			wantMsg: "missing required columns: Temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(5)

			_, err := f.uc.Upload(context.Background(), tt.in)
			perr := assertCode(t, err, pkgerror.CodeInvalidInput)
			if perr.Msg() != tt.wantMsg {
				t.Fatalf("Upload() msg = %q, want %q", perr.Msg(), tt.wantMsg)
			}

			if list, _ := f.store.List(context.Background()); len(list) != 0 {
				t.Fatalf("Upload() stored %d datasets on failure", len(list))
			}
		})
	}
}

func TestUploadStoreFailureIsServerError(t *testing.T) {
	t.Parallel()

	f := newFixture(5)
	f.store.err = errors.New("disk full")

	_, err := f.uc.Upload(context.Background(), UploadInput{FileName: "a.csv", Body: strings.NewReader(validCSV)})
	perr := assertCode(t, err, pkgerror.CodeInternal)
	if perr.StatusCode() != 500 {
		t.Fatalf("Upload() status = %d, want 500", perr.StatusCode())
	}
}

func TestUploadPublishesEvictions(t *testing.T) {
	t.Parallel()

	f := newFixture(5)

	var ids []int64
	for i := 0; i < 6; i++ {
		res, err := f.uc.Upload(context.Background(), UploadInput{FileName: "a.csv", Body: strings.NewReader(validCSV)})
		if err != nil {
			t.Fatalf("Upload(%d) err = %v", i, err)
		}
		ids = append(ids, res.Dataset.ID)
	}

	list, err := f.uc.Datasets(context.Background())
	if err != nil {
		t.Fatalf("Datasets() err = %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("Datasets() len = %d, want 5", len(list))
	}

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	if len(f.events.events) != 1 {
		t.Fatalf("events = %+v, want one eviction", f.events.events)
	}
	if got := f.events.events[0]; got.DatasetID != ids[0] || got.EventID == "" {
		t.Fatalf("event = %+v, want dataset %d with an event id", got, ids[0])
	}

	for _, call := range []func(context.Context, int64) error{
		func(ctx context.Context, id int64) error { _, err := f.uc.Summary(ctx, id); return err },
		func(ctx context.Context, id int64) error { _, err := f.uc.Equipment(ctx, id); return err },
	} {
		assertCode(t, call(context.Background(), ids[0]), pkgerror.CodeNotFound)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	f := newFixture(5)
	res, err := f.uc.Upload(context.Background(), UploadInput{Name: "S", FileName: "a.csv", Body: strings.NewReader(validCSV)})
	if err != nil {
		t.Fatalf("Upload() err = %v", err)
	}

	summary, err := f.uc.Summary(context.Background(), res.Dataset.ID)
	if err != nil {
		t.Fatalf("Summary() err = %v", err)
	}

	if summary.Dataset.ID != res.Dataset.ID || summary.Dataset.Name != "S" {
		t.Fatalf("Summary() dataset = %+v", summary.Dataset)
	}
	if m := summary.Averages[entity.ParameterPressure]; m.Count != 2 || math.Abs(m.Value-5) > 1e-9 {
		t.Fatalf("Summary() pressure = %+v, want 5 over 2", m)
	}
	if m := summary.Averages[entity.ParameterTemperature]; m.Count != 2 || m.Value != 107.5 {
		t.Fatalf("Summary() temperature = %+v, want 107.5 over 2", m)
	}

	var types []string
	for k := range summary.TypeDistribution {
		types = append(types, k)
	}
	sort.Strings(types)
	if strings.Join(types, ",") != "Pump,Valve" || summary.TypeDistribution["Pump"] != 2 {
		t.Fatalf("Summary() distribution = %v", summary.TypeDistribution)
	}
}

func TestNotFoundEverywhere(t *testing.T) {
	t.Parallel()

	f := newFixture(5)
	ctx := context.Background()

	_, err := f.uc.Summary(ctx, 99)
	assertCode(t, err, pkgerror.CodeNotFound)

	_, err = f.uc.Equipment(ctx, 99)
	assertCode(t, err, pkgerror.CodeNotFound)

	_, err = f.uc.Report(ctx, 99)
	perr := assertCode(t, err, pkgerror.CodeNotFound)
	if perr.Msg() != "dataset not found" {
		t.Fatalf("Report() msg = %q", perr.Msg())
	}
}

func TestReportCachesAndTruncates(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("Equipment Name,Type,Flowrate,Pressure,Temperature\n")
	for i := 0; i < 70; i++ {
		fmt.Fprintf(&b, "P-%d,Pump,%d,1,2\n", i, i)
	}

	f := newFixture(5)
	f.uc.runner = nil

	res, err := f.uc.Upload(context.Background(), UploadInput{FileName: "big.csv", Body: strings.NewReader(b.String())})
	if err != nil {
		t.Fatalf("Upload() err = %v", err)
	}

	report, err := f.uc.Report(context.Background(), res.Dataset.ID)
	if err != nil {
		t.Fatalf("Report() err = %v", err)
	}
	if report.Filename != fmt.Sprintf("equipment_report_%d.pdf", res.Dataset.ID) {
		t.Fatalf("Report() filename = %q", report.Filename)
	}
	if f.renderer.rows != DefaultReportRows {
		t.Fatalf("Report() rendered %d rows, want %d", f.renderer.rows, DefaultReportRows)
	}

	again, err := f.uc.Report(context.Background(), res.Dataset.ID)
	if err != nil {
		t.Fatalf("Report() second err = %v", err)
	}
	if string(again.Content) != string(report.Content) || f.renderer.calls != 1 {
		t.Fatalf("Report() expected cached content, renderer calls = %d", f.renderer.calls)
	}

	// a cached report must not outlive its dataset
	f.store.drop(res.Dataset.ID)
	_, err = f.uc.Report(context.Background(), res.Dataset.ID)
	assertCode(t, err, pkgerror.CodeNotFound)
}

func TestReportRenderFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(5)
	f.uc.runner = nil
	f.renderer.err = errors.New("font missing")

	res, err := f.uc.Upload(context.Background(), UploadInput{FileName: "a.csv", Body: strings.NewReader(validCSV)})
	if err != nil {
		t.Fatalf("Upload() err = %v", err)
	}

	_, err = f.uc.Report(context.Background(), res.Dataset.ID)
	assertCode(t, err, pkgerror.CodeInternal)

	if _, ok := f.cache.Get(res.Dataset.ID); ok {
		t.Fatal("Report() cached a failed render")
	}
}
