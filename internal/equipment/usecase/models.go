package usecase

import (
	"io"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
)

type UploadInput struct {
	Name     string
	FileName string
	Body     io.Reader

	// UploadedBy is the authenticated user, only logged.
	UploadedBy string
}

type UploadResult struct {
	Dataset   entity.Dataset
	Equipment []entity.Equipment
}

type ReportResult struct {
	DatasetID int64
	Filename  string
	Content   []byte
}
