// Package store persists mapping-run history behind a driver-selectable
// interface.
package store

import (
	"context"

	"github.com/sells-group/chassis-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.RunKind `json:"kind,omitempty"`
	Limit  int           `json:"limit,omitempty"`
	Offset int           `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// RecordRun saves a completed run. A missing ID and CreatedAt are
	// filled in.
	RecordRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
