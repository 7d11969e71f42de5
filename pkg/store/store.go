// Package store defines the append-only metric log interface.
// Backends live in subpackages: csvlog (default), sqlite and redislog.
package store

import (
	"context"
	"errors"

	"github.com/Zerofisher/icmpwatch/pkg/model"
)

// SchemaVersion is incremented when the persisted column layout changes.
const SchemaVersion = 1

// ErrNoLog is returned by Tail when the log has never been created.
// It is distinct from an existing log with zero rows.
var ErrNoLog = errors.New("metric log does not exist")

// Log is a durable, append-only sequence of feature records.
//
// A single writer appends while any number of readers call Tail. Readers may
// miss an append that is still in flight but never observe a partial row.
type Log interface {
	Writer
	Reader

	// Close releases the backend.
	Close() error
}

// Writer defines the write side used by the feature extractor.
type Writer interface {
	// Append adds one record to the end of the log, creating the log
	// (and its header) on first use.
	Append(ctx context.Context, rec model.FeatureRecord) error
}

// Reader defines the read side used by the aggregator and the trainer.
type Reader interface {
	// Tail returns up to n most recent records, oldest first.
	// n <= 0 returns every record.
	Tail(ctx context.Context, n int) ([]model.FeatureRecord, error)
}
