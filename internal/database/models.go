package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"oligo-export/internal/primers"
)

// StoredPrimer is a primer row with its export bookkeeping
type StoredPrimer struct {
	primers.Primer
	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastExportedAt time.Time `json:"last_exported_at"`
	ExportCount    int       `json:"export_count"`
}

// Run status values
const (
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// ExportRun records one invocation of the exporter
type ExportRun struct {
	ID         int       `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Orders     int       `json:"orders"`
	Exported   int       `json:"exported"`
	OutputPath string    `json:"output_path"`
	Status     string    `json:"status"`
	Error      *string   `json:"error,omitempty"`
}

// PrimerStore handles database operations for primers
type PrimerStore struct {
	db *sql.DB
}

func NewPrimerStore(db *sql.DB) *PrimerStore {
	return &PrimerStore{db: db}
}

// UpsertBatch stores every primer in one transaction. Existing rows are
// refreshed and their export count incremented.
func (s *PrimerStore) UpsertBatch(ctx context.Context, list []primers.Primer, exportedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO primers (id, name, sequence, price, tm, length, scale, purification, remarks,
			first_seen_at, last_exported_at, export_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			sequence = excluded.sequence,
			price = excluded.price,
			tm = excluded.tm,
			length = excluded.length,
			scale = excluded.scale,
			purification = excluded.purification,
			remarks = excluded.remarks,
			last_exported_at = excluded.last_exported_at,
			export_count = primers.export_count + 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range list {
		_, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Sequence, p.Price, p.Tm, p.Length, p.Scale,
			p.Purification, p.Remarks, exportedAt.UTC(), exportedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to store primer %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// List returns all stored primers, most recently exported first
func (s *PrimerStore) List(ctx context.Context) ([]StoredPrimer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sequence, price, tm, length, scale, purification, remarks,
			first_seen_at, last_exported_at, export_count
		FROM primers ORDER BY last_exported_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []StoredPrimer
	for rows.Next() {
		var p StoredPrimer
		err := rows.Scan(&p.ID, &p.Name, &p.Sequence, &p.Price, &p.Tm, &p.Length, &p.Scale,
			&p.Purification, &p.Remarks, &p.FirstSeenAt, &p.LastExportedAt, &p.ExportCount)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// GetByID returns one stored primer
func (s *PrimerStore) GetByID(ctx context.Context, id string) (*StoredPrimer, error) {
	var p StoredPrimer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, sequence, price, tm, length, scale, purification, remarks,
			first_seen_at, last_exported_at, export_count
		FROM primers WHERE id = ?`, id).Scan(&p.ID, &p.Name, &p.Sequence, &p.Price, &p.Tm, &p.Length, &p.Scale,
		&p.Purification, &p.Remarks, &p.FirstSeenAt, &p.LastExportedAt, &p.ExportCount)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RunStore handles database operations for export runs
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Create records a finished run and sets its ID
func (s *RunStore) Create(ctx context.Context, run *ExportRun) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO export_runs (started_at, finished_at, orders, exported, output_path, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Orders, run.Exported, run.OutputPath, run.Status, run.Error)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = int(id)
	return nil
}

// Recent returns up to limit runs, newest first
func (s *RunStore) Recent(ctx context.Context, limit int) ([]ExportRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, orders, exported, output_path, status, error
		FROM export_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ExportRun
	for rows.Next() {
		var r ExportRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Orders, &r.Exported, &r.OutputPath, &r.Status, &r.Error); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
