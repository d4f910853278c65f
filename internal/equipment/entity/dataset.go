package entity

import "time"

// Dataset is the header of one uploaded CSV file.
type Dataset struct {
	ID         int64
	Name       string
	UploadedAt time.Time
	TotalCount int
	FileName   string
}

// Equipment is one parsed CSV row. Nil measurements were missing or not
// numeric in the source file.
type Equipment struct {
	ID          int64
	DatasetID   int64
	Name        string
	Type        string
	Flowrate    *float64
	Pressure    *float64
	Temperature *float64
}
