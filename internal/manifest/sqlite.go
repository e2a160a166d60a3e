package manifest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/bulkcrypt/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {

	query := `INSERT INTO runs (id, root_dir, started_at) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, run.ID, run.RootDir, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, f *FileRecord) error {

	query := ` INSERT INTO files (run_id, path, size, state, detail)
			values (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, path) DO UPDATE SET
				size = excluded.size,
				state = excluded.state,
				detail = excluded.detail
	`
	_, err := r.db.ExecContext(ctx, query, f.RunID, f.Path, f.Size, f.State, f.Detail)
	if err != nil {
		return fmt.Errorf("failed to upsert file record: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, runID, path string) (*FileRecord, error) {

	query := `select run_id, path, size, state, detail from files where run_id=? and path=?`
	row := r.db.QueryRowContext(ctx, query, runID, path)

	f := &FileRecord{}
	err := row.Scan(&f.RunID, &f.Path, &f.Size, &f.State, &f.Detail)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}

	return f, nil
}

func (r *SQLiteRepository) ListByRun(ctx context.Context, runID string) ([]*FileRecord, error) {

	query := `select run_id, path, size, state, detail from files where run_id=? order by path`
	return r.list(ctx, query, runID)
}

func (r *SQLiteRepository) ListByState(ctx context.Context, runID string, state State) ([]*FileRecord, error) {

	query := `select run_id, path, size, state, detail from files where run_id=? and state=? order by path`
	return r.list(ctx, query, runID, state)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*FileRecord, error) {

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting file records: %w", err)
	}
	defer rows.Close()

	var result []*FileRecord

	for rows.Next() {
		var item = &FileRecord{}
		err := rows.Scan(&item.RunID, &item.Path, &item.Size, &item.State, &item.Detail)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepository) CountStates(ctx context.Context, runID string) (map[State]int, error) {

	query := `select state, count(*) from files where run_id=? group by state`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("error counting states: %w", err)
	}
	defer rows.Close()

	counts := make(map[State]int)

	for rows.Next() {
		var state State
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}
