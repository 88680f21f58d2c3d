// Copyright 2024 The oligo-export Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"oligo-export/internal/primers"
)

// DB wraps the sql.DB connection and provides access to stores
type DB struct {
	*sql.DB
	Primers *PrimerStore
	Runs    *RunStore
}

// Open opens a database connection and initializes stores
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &DB{
		DB:      db,
		Primers: NewPrimerStore(db),
		Runs:    NewRunStore(db),
	}

	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, nil
}

// migrate creates the database schema
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS primers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sequence TEXT NOT NULL,
		price REAL NOT NULL,
		tm REAL NOT NULL,
		length INTEGER NOT NULL,
		scale REAL NOT NULL,
		purification TEXT NOT NULL DEFAULT '',
		remarks TEXT NOT NULL DEFAULT '',
		first_seen_at DATETIME NOT NULL,
		last_exported_at DATETIME NOT NULL,
		export_count INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS export_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		orders INTEGER NOT NULL DEFAULT 0,
		exported INTEGER NOT NULL DEFAULT 0,
		output_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_primers_last_exported ON primers(last_exported_at);
	CREATE INDEX IF NOT EXISTS idx_export_runs_started ON export_runs(started_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// IsHealthy checks if the database connection is healthy
func (db *DB) IsHealthy() error {
	return db.Ping()
}

// RecordExport stores the exported primers and the run that produced them
func (db *DB) RecordExport(ctx context.Context, list []primers.Primer, run *ExportRun) error {
	if len(list) > 0 {
		if err := db.Primers.UpsertBatch(ctx, list, run.FinishedAt); err != nil {
			return err
		}
	}
	return db.Runs.Create(ctx, run)
}
