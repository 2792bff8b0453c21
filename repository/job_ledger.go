package repository

import (
	"context"
	"time"
)

type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
)

// JobRecord tracks one scrape job by correlation id.
type JobRecord struct {
	CorrelationID string    `json:"correlationId"`
	Status        JobStatus `json:"status"`
	URLs          int       `json:"urls"`
	Chunks        int       `json:"chunks"`
	FailedURLs    int       `json:"failedUrls"`
	StartedAt     time.Time `json:"startedAt"`
	CompletedAt   time.Time `json:"completedAt,omitzero"`
}

type JobLedgerRepo interface {
	Get(ctx context.Context, correlationID string) (*JobRecord, error)
	Put(ctx context.Context, rec *JobRecord) error
}
