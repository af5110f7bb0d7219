package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database and runs schema migrations.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=1", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return conn, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pdf_name TEXT NOT NULL,
			model TEXT NOT NULL,
			language TEXT NOT NULL,
			num_requested INTEGER NOT NULL,
			num_generated INTEGER NOT NULL DEFAULT 0,
			skipped_grading INTEGER NOT NULL DEFAULT 0,
			form_id TEXT NOT NULL DEFAULT '',
			form_url TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK(status IN ('success','failed')),
			error TEXT NOT NULL DEFAULT '',
			warnings TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			question_id TEXT NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			difficulty TEXT NOT NULL DEFAULT '',
			stem TEXT NOT NULL,
			answer_label TEXT NOT NULL DEFAULT '',
			answer_text TEXT NOT NULL DEFAULT '',
			graded INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_run_questions_run ON run_questions(run_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(40, len(stmt))], err)
		}
	}
	return nil
}
