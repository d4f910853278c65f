package entity

// DatasetEvictedEvent is published when the retention window drops a dataset.
type DatasetEvictedEvent struct {
	EventID   string
	DatasetID int64
}
