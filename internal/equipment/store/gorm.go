package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgerror"
)

type datasetModel struct {
	ID         int64            `gorm:"primaryKey;autoIncrement:false"`
	Name       string           `gorm:"type:varchar(255);not null"`
	UploadedAt time.Time        `gorm:"not null;index"`
	TotalCount int              `gorm:"not null"`
	FileName   string           `gorm:"type:varchar(255);not null"`
	Equipment  []equipmentModel `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
}

func (datasetModel) TableName() string {
	return "equipment_datasets"
}

type equipmentModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	DatasetID   int64  `gorm:"not null;index"`
	Name        string `gorm:"column:equipment_name;type:varchar(255);not null"`
	Type        string `gorm:"column:equipment_type;type:varchar(100);not null"`
	Flowrate    *float64
	Pressure    *float64
	Temperature *float64
}

func (equipmentModel) TableName() string {
	return "equipment"
}

// OpenSQLite opens (creating if needed) the sqlite database at path.
//
// Writes are funneled through one connection so the retention pass of one
// upload can never interleave with another upload.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

type GormStore struct {
	db        *gorm.DB
	retention int
}

// NewGormStore migrates the schema and returns a store on db. The store owns
// db from here on, it is closed when migration fails.
func NewGormStore(db *gorm.DB, retention int) (*GormStore, error) {
	if retention < 1 {
		retention = DefaultRetention
	}

	s := &GormStore{db: db, retention: retention}
	if err := db.AutoMigrate(&datasetModel{}, &equipmentModel{}); err != nil {
		err = fmt.Errorf("failed to migrate database: %w", err)
		if cerr := s.Close(context.Background()); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}

	return s, nil
}

func (s *GormStore) Create(ctx context.Context, dataset *entity.Dataset, rows []entity.Equipment) ([]int64, error) {
	var evicted []int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&datasetModel{}).Where("id = ?", dataset.ID).Count(&exists).Error; err != nil {
			return err
		}
		if exists > 0 {
			return pkgerror.NewBusiness("dataset already exists", pkgerror.CodeConflict)
		}

		header := datasetModel{
			ID:         dataset.ID,
			Name:       dataset.Name,
			UploadedAt: dataset.UploadedAt.UTC(),
			TotalCount: dataset.TotalCount,
			FileName:   dataset.FileName,
		}
		if err := tx.Create(&header).Error; err != nil {
			return err
		}

		if len(rows) > 0 {
			models := make([]equipmentModel, len(rows))
			for i, row := range rows {
				models[i] = toEquipmentModel(dataset.ID, row)
			}
			if err := tx.CreateInBatches(&models, 200).Error; err != nil {
				return err
			}
			for i := range rows {
				rows[i].ID = models[i].ID
				rows[i].DatasetID = dataset.ID
			}
		}

		var ids []int64
		if err := tx.Model(&datasetModel{}).Order("uploaded_at DESC, id DESC").Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) <= s.retention {
			return nil
		}

		stale := ids[s.retention:]
		// rows go first so the result does not depend on the FK pragma
		if err := tx.Where("dataset_id IN ?", stale).Delete(&equipmentModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", stale).Delete(&datasetModel{}).Error; err != nil {
			return err
		}

		evicted = stale
		return nil
	})
	if err != nil {
		return nil, err
	}

	return evicted, nil
}

func (s *GormStore) List(ctx context.Context) ([]entity.Dataset, error) {
	var models []datasetModel
	if err := s.db.WithContext(ctx).Order("uploaded_at DESC, id DESC").Limit(s.retention).Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]entity.Dataset, 0, len(models))
	for _, m := range models {
		out = append(out, toDataset(m))
	}

	return out, nil
}

func (s *GormStore) GetDataset(ctx context.Context, id int64) (entity.Dataset, error) {
	var m datasetModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.Dataset{}, pkgerror.ErrNotFound
		}
		return entity.Dataset{}, err
	}

	return toDataset(m), nil
}

func (s *GormStore) ListEquipment(ctx context.Context, datasetID int64) ([]entity.Equipment, error) {
	var rows []entity.Equipment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&datasetModel{}).Where("id = ?", datasetID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return pkgerror.ErrNotFound
		}

		var models []equipmentModel
		if err := tx.Where("dataset_id = ?", datasetID).Order("id ASC").Find(&models).Error; err != nil {
			return err
		}

		rows = make([]entity.Equipment, 0, len(models))
		for _, m := range models {
			rows = append(rows, toEquipment(m))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toDataset(m datasetModel) entity.Dataset {
	return entity.Dataset{
		ID:         m.ID,
		Name:       m.Name,
		UploadedAt: m.UploadedAt,
		TotalCount: m.TotalCount,
		FileName:   m.FileName,
	}
}

func toEquipmentModel(datasetID int64, e entity.Equipment) equipmentModel {
	return equipmentModel{
		DatasetID:   datasetID,
		Name:        e.Name,
		Type:        e.Type,
		Flowrate:    e.Flowrate,
		Pressure:    e.Pressure,
		Temperature: e.Temperature,
	}
}

func toEquipment(m equipmentModel) entity.Equipment {
	return entity.Equipment{
		ID:          m.ID,
		DatasetID:   m.DatasetID,
		Name:        m.Name,
		Type:        m.Type,
		Flowrate:    m.Flowrate,
		Pressure:    m.Pressure,
		Temperature: m.Temperature,
	}
}
