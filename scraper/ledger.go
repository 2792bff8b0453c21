package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"fynex/repository"

	bolt "go.etcd.io/bbolt"
)

var jobsBucket = []byte("scrape_jobs")

// BoltLedger records scrape job outcomes keyed by correlation id.
type BoltLedger struct {
	db *bolt.DB
}

var _ repository.JobLedgerRepo = (*BoltLedger)(nil)

func OpenBoltLedger(path string) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(jobsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltLedger{db: db}, nil
}

// Get returns nil, nil when no record exists.
func (l *BoltLedger) Get(_ context.Context, correlationID string) (*repository.JobRecord, error) {
	var rec *repository.JobRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(jobsBucket).Get([]byte(correlationID))
		if v == nil {
			return nil
		}
		rec = &repository.JobRecord{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", correlationID, err)
	}
	return rec, nil
}

func (l *BoltLedger) Put(_ context.Context, rec *repository.JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(jobsBucket).Put([]byte(rec.CorrelationID), data)
	})
}

func (l *BoltLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
