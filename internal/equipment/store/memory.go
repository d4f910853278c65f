package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgerror"
)

// DefaultRetention is how many datasets are kept when none is configured.
const DefaultRetention = 5

type InMemoryStore struct {
	mu        sync.RWMutex
	retention int
	nextSeq   int64
	nextRowID int64
	datasets  map[int64]*datasetRecord
}

type datasetRecord struct {
	seq     int64
	dataset entity.Dataset
	rows    []entity.Equipment
}

func NewInMemoryStore(retention int) *InMemoryStore {
	if retention < 1 {
		retention = DefaultRetention
	}

	return &InMemoryStore{
		retention: retention,
		datasets:  make(map[int64]*datasetRecord),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, dataset *entity.Dataset, rows []entity.Equipment) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.datasets[dataset.ID]; exists {
		return nil, pkgerror.NewBusiness("dataset already exists", pkgerror.CodeConflict)
	}

	stored := make([]entity.Equipment, len(rows))
	for i := range rows {
		s.nextRowID++
		rows[i].ID = s.nextRowID
		rows[i].DatasetID = dataset.ID
		stored[i] = rows[i]
	}

	s.nextSeq++
	s.datasets[dataset.ID] = &datasetRecord{
		seq:     s.nextSeq,
		dataset: *dataset,
		rows:    stored,
	}

	ordered := s.ordered()
	if len(ordered) <= s.retention {
		return nil, nil
	}

	evicted := make([]int64, 0, len(ordered)-s.retention)
	for _, rec := range ordered[s.retention:] {
		delete(s.datasets, rec.dataset.ID)
		evicted = append(evicted, rec.dataset.ID)
	}

	return evicted, nil
}

func (s *InMemoryStore) List(ctx context.Context) ([]entity.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.ordered()
	if len(ordered) > s.retention {
		ordered = ordered[:s.retention]
	}

	out := make([]entity.Dataset, 0, len(ordered))
	for _, rec := range ordered {
		out = append(out, rec.dataset)
	}

	return out, nil
}

func (s *InMemoryStore) GetDataset(ctx context.Context, id int64) (entity.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.datasets[id]
	if !ok {
		return entity.Dataset{}, pkgerror.ErrNotFound
	}

	return rec.dataset, nil
}

func (s *InMemoryStore) ListEquipment(ctx context.Context, datasetID int64) ([]entity.Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.datasets[datasetID]
	if !ok {
		return nil, pkgerror.ErrNotFound
	}

	out := make([]entity.Equipment, len(rec.rows))
	copy(out, rec.rows)

	return out, nil
}

// ordered returns records newest first: by upload time, then by insertion.
// Callers hold s.mu.
func (s *InMemoryStore) ordered() []*datasetRecord {
	out := make([]*datasetRecord, 0, len(s.datasets))
	for _, rec := range s.datasets {
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].dataset.UploadedAt.Equal(out[j].dataset.UploadedAt) {
			return out[i].dataset.UploadedAt.After(out[j].dataset.UploadedAt)
		}
		return out[i].seq > out[j].seq
	})

	return out
}
