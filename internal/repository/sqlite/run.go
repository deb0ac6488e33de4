package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/model"
	"github.com/sakif/pygate/internal/repository"
)

var _ repository.RunRepository = (*DB)(nil)

const runColumns = `id, COALESCE(snippet_id, ''), caller, backend, code, ok, kind, reason, output, duration_ms, steps, created_at`

// CreateRun inserts the run row and its artifacts atomically, so a run
// is never visible without the charts it produced.
func (db *DB) CreateRun(ctx context.Context, run *model.Run) error {
	run.ID = xid.New().String()
	run.CreatedAt = time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning run transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, snippet_id, caller, backend, code, ok, kind, reason, output, duration_ms, steps, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		nullString(run.SnippetID),
		run.Caller,
		run.Backend,
		run.Code,
		run.OK,
		run.Kind,
		run.Reason,
		run.Output,
		run.DurationMS,
		run.Steps,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating run: %w", err)
	}

	for i := range run.Artifacts {
		a := &run.Artifacts[i]
		a.Size = len(a.Data)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_artifacts (run_id, name, media_type, data) VALUES (?, ?, ?, ?)`,
			run.ID, a.Name, a.MediaType, a.Data,
		)
		if err != nil {
			return fmt.Errorf("sqlite: storing artifact %s of run %s: %w", a.Name, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns the run with artifact metadata but without artifact data.
func (db *DB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	run, err := scanRun(db.conn.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("run", id)
		}
		return nil, fmt.Errorf("sqlite: getting run %s: %w", id, err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, media_type, length(data) FROM run_artifacts WHERE run_id = ? ORDER BY rowid`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing artifacts of run %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.Name, &a.MediaType, &a.Size); err != nil {
			return nil, fmt.Errorf("sqlite: scanning artifact row: %w", err)
		}
		run.Artifacts = append(run.Artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating artifacts: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first. Artifacts are not loaded.
func (db *DB) ListRuns(ctx context.Context, filter repository.RunFilter) ([]model.Run, error) {
	limit, offset := page(filter.ListOptions)

	var where []string
	var args []any
	if filter.SnippetID != "" {
		where = append(where, "snippet_id = ?")
		args = append(args, filter.SnippetID)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.OK != nil {
		where = append(where, "ok = ?")
		args = append(args, *filter.OK)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.Run, 0, limit)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning run row: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating runs: %w", err)
	}
	return runs, nil
}

func (db *DB) GetArtifact(ctx context.Context, runID, name string) (*model.Artifact, error) {
	var a model.Artifact
	err := db.conn.QueryRowContext(ctx,
		`SELECT name, media_type, data FROM run_artifacts WHERE run_id = ? AND name = ?`,
		runID, name,
	).Scan(&a.Name, &a.MediaType, &a.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("artifact", runID+"/"+name)
		}
		return nil, fmt.Errorf("sqlite: getting artifact %s of run %s: %w", name, runID, err)
	}
	a.Size = len(a.Data)
	return &a, nil
}

func scanRun(row scanner) (*model.Run, error) {
	var r model.Run
	err := row.Scan(
		&r.ID, &r.SnippetID, &r.Caller, &r.Backend, &r.Code, &r.OK,
		&r.Kind, &r.Reason, &r.Output, &r.DurationMS, &r.Steps, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
