// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "time"

// Source kinds understood by the ingest consumer.
const (
	SourceFS    = "fs"
	SourceMinIO = "minio"
)

// IngestTask asks the consumer to run the ingestion pipeline over a source.
type IngestTask struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Root        string    `json:"root"` // directory for fs, object prefix for minio
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}
