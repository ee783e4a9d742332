package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection backing the journal
type DB struct {
	conn *sql.DB
}

// RunRow is one process lifetime: the seed and bounds a world started with
type RunRow struct {
	ID        int64
	Seed      uint64
	Width     int
	Height    int
	StartedAt time.Time
	EndedAt   sql.NullTime
}

// OpenDB opens (or creates) the journal database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}

	// WAL lets /stats read while the writer flushes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER REFERENCES runs(id),
		event_type TEXT NOT NULL,
		body_id INTEGER,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrating journal schema: %w", err)
	}
	return nil
}

// StartRun records a new world and returns its run id
func (db *DB) StartRun(seed uint64, width, height int) (int64, error) {
	// seed is stored as text: SQLite integers are signed
	res, err := db.conn.Exec(
		"INSERT INTO runs (seed, width, height, started_at) VALUES (?, ?, ?, ?)",
		fmt.Sprintf("%d", seed), width, height, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return res.LastInsertId()
}

// EndRun stamps the end time of a run
func (db *DB) EndRun(id int64) error {
	_, err := db.conn.Exec("UPDATE runs SET ended_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("ending run %d: %w", id, err)
	}
	return nil
}

// GetRun returns a run by id, or nil if there is none
func (db *DB) GetRun(id int64) (*RunRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, seed, width, height, started_at, ended_at FROM runs WHERE id = ?", id,
	)
	r := &RunRow{}
	var seed string
	err := row.Scan(&r.ID, &seed, &r.Width, &r.Height, &r.StartedAt, &r.EndedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Sscan(seed, &r.Seed); err != nil {
		return nil, fmt.Errorf("parsing seed %q: %w", seed, err)
	}
	return r, nil
}
