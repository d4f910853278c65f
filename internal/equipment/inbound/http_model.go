package inbound

import (
	"net/http"
	"time"
)

type Dataset struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploaded_at"`
	TotalCount int       `json:"total_count"`
	FileName   string    `json:"file_name"`
}

// Equipment is one row; missing measurements encode as null.
type Equipment struct {
	ID          int64    `json:"id"`
	Name        string   `json:"equipment_name"`
	Type        string   `json:"equipment_type"`
	Flowrate    *float64 `json:"flowrate"`
	Pressure    *float64 `json:"pressure"`
	Temperature *float64 `json:"temperature"`
}

type UploadResponse struct {
	Dataset
	Equipment []Equipment `json:"equipment"`
}

func (UploadResponse) StatusCode() int {
	return http.StatusCreated
}

func (UploadResponse) Message() string {
	return "dataset uploaded"
}

type DatasetListResponse []Dataset

func (r DatasetListResponse) Meta() map[string]any {
	return map[string]any{"total": len(r)}
}

type EquipmentListResponse []Equipment

func (r EquipmentListResponse) Meta() map[string]any {
	return map[string]any{"total": len(r)}
}

// SummaryResponse keeps averages at 0 when a measurement has no values;
// Samples tells such a 0 apart from a real one.
type SummaryResponse struct {
	DatasetID        int64              `json:"dataset_id"`
	DatasetName      string             `json:"dataset_name"`
	TotalCount       int                `json:"total_count"`
	UploadedAt       time.Time          `json:"uploaded_at"`
	Averages         map[string]float64 `json:"averages"`
	Samples          map[string]int     `json:"samples"`
	TypeDistribution map[string]int     `json:"type_distribution"`
}

type PDFResponse struct {
	filename string
	content  []byte
}

func (r PDFResponse) ContentType() string {
	return "application/pdf"
}

func (r PDFResponse) Filename() string {
	return r.filename
}

func (r PDFResponse) Content() []byte {
	return r.content
}
