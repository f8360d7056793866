package staterepo

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateVersion = errors.New("applied record already exists")
)

// AppliedRecord is one persisted row of the applied-state record set.
// Created exactly once when a migration completes forward execution,
// deleted exactly once when it completes backward execution, never
// mutated otherwise. The set of these records is the sole source of truth
// for what state the database is in.
type AppliedRecord struct {
	Version     string    `bson:"version" json:"version"`
	Description string    `bson:"description" json:"description"`
	Filename    string    `bson:"filename" json:"filename"`
	AppliedAt   time.Time `bson:"applied_at" json:"applied_at"`
	Checksum    string    `bson:"checksum" json:"checksum"`
}

// Repo is the applied-state store.
type Repo interface {
	// EnsureInitialized creates the backing record set when absent.
	// Idempotent, safe to call every startup.
	EnsureInitialized(ctx context.Context) error

	// ListApplied returns records ascending by version.
	ListApplied(ctx context.Context) ([]AppliedRecord, error)

	// Record inserts one record, ErrDuplicateVersion when the version is
	// already present.
	Record(ctx context.Context, rec AppliedRecord) error

	// Remove deletes the record for version, no-op when absent.
	Remove(ctx context.Context, version string) error
}
