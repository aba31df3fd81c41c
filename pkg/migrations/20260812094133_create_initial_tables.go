package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				type TEXT NOT NULL,
				status TEXT NOT NULL,
				data TEXT NOT NULL,
				progress INTEGER NOT NULL,
				process_id TEXT
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				filepath TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				isbn TEXT,
				completed_sources TEXT NOT NULL DEFAULT '[]'
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_books_filepath ON books (filepath)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE sources (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				kind TEXT NOT NULL,
				trust_level REAL NOT NULL DEFAULT 0.5
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_sources_name ON sources (name)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE metadata_candidates (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_id INTEGER REFERENCES books (id) NOT NULL,
				source_id INTEGER REFERENCES sources (id) NOT NULL,
				field TEXT NOT NULL,
				value TEXT NOT NULL DEFAULT '',
				confidence REAL NOT NULL DEFAULT 0,
				active BOOLEAN NOT NULL DEFAULT TRUE
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_metadata_candidates_book_id_field ON metadata_candidates (book_id, field)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_metadata_candidates_source_id ON metadata_candidates (source_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE final_metadata (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_id INTEGER REFERENCES books (id) NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				title_confidence REAL NOT NULL DEFAULT 0,
				author TEXT NOT NULL DEFAULT '',
				author_confidence REAL NOT NULL DEFAULT 0,
				series TEXT NOT NULL DEFAULT '',
				series_confidence REAL NOT NULL DEFAULT 0,
				cover TEXT NOT NULL DEFAULT '',
				cover_confidence REAL NOT NULL DEFAULT 0,
				publisher TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL DEFAULT '',
				identifier TEXT NOT NULL DEFAULT '',
				year TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				overall_confidence REAL NOT NULL DEFAULT 0,
				completeness_score REAL NOT NULL DEFAULT 0,
				reviewed BOOLEAN NOT NULL DEFAULT FALSE
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_final_metadata_book_id ON final_metadata (book_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE source_access_records (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_id INTEGER REFERENCES books (id) NOT NULL,
				source_id INTEGER REFERENCES sources (id) NOT NULL,
				status TEXT NOT NULL DEFAULT 'not_attempted',
				consecutive_failures INTEGER NOT NULL DEFAULT 0,
				items_found INTEGER NOT NULL DEFAULT 0,
				last_confidence REAL,
				last_error TEXT,
				last_attempt_at TIMESTAMPTZ
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_source_access_records_book_id_source_id ON source_access_records (book_id, source_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE scan_sessions (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				total_books INTEGER NOT NULL DEFAULT 0,
				processed_books INTEGER NOT NULL DEFAULT 0,
				books_with_external_data INTEGER NOT NULL DEFAULT 0,
				calls_made TEXT NOT NULL DEFAULT '{}',
				failures TEXT NOT NULL DEFAULT '{}',
				rate_limits_hit TEXT NOT NULL DEFAULT '{}',
				resume_queue TEXT NOT NULL DEFAULT '[]',
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				can_resume BOOLEAN NOT NULL DEFAULT FALSE,
				completed_at TIMESTAMPTZ
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_scan_sessions_can_resume ON scan_sessions (can_resume)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE rate_limit_counters (
				key TEXT PRIMARY KEY,
				count INTEGER NOT NULL DEFAULT 0,
				expires_at TIMESTAMPTZ NOT NULL
			)
`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS rate_limit_counters")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS scan_sessions")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS source_access_records")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS final_metadata")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS metadata_candidates")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS sources")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS books")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS jobs")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
