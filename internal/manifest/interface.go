package manifest

import "context"

// Repository describes persistence operations for runs and file records.
// Implementations are backed by a local SQLite database.
type Repository interface {
	// CreateRun registers a new run.
	CreateRun(ctx context.Context, r *Run) error

	// Upsert inserts a file record or replaces its state and detail.
	Upsert(ctx context.Context, f *FileRecord) error

	// Get returns the record for a path within a run.
	Get(ctx context.Context, runID, path string) (*FileRecord, error)

	// ListByRun returns all records of a run in lexicographic path order.
	ListByRun(ctx context.Context, runID string) ([]*FileRecord, error)

	// ListByState returns the run's records currently in the given state,
	// in lexicographic path order.
	ListByState(ctx context.Context, runID string, state State) ([]*FileRecord, error)

	// CountStates tallies records per state for a run.
	CountStates(ctx context.Context, runID string) (map[State]int, error)
}
