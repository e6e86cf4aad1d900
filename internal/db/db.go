// Package db is the optional SQLite reading store. Each process run is a
// session; every accepted reading is stored against it so runs can be
// inspected later through the tailsql console.
package db

import (
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/multimeter/internal/measure"
)

// pragmas are applied to every connection opened by NewDB.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// DB is the SQLite reading store. It embeds *sql.DB so callers can run
// ad-hoc queries.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens (or creates) the store at path and migrates it to the latest
// schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps the per-connection pragmas in force.
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(migrationsFS); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the store was opened from.
func (db *DB) Path() string { return db.path }

// Session identifies one acquisition run.
type Session struct {
	ID        string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Channel   int       `json:"channel"`
	Unit      string    `json:"unit"`
	Port      string    `json:"port"`
	LogPath   string    `json:"log_path,omitempty"`
}

// StartSession records a new session and assigns it a random ID.
func (db *DB) StartSession(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, started_at_unix_ms, channel, unit, port, log_path)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt.UnixMilli(), s.Channel, s.Unit, s.Port, s.LogPath,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT session_id, started_at_unix_ms, channel, unit, port, log_path
		FROM sessions ORDER BY started_at_unix_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var startedMs int64
		if err := rows.Scan(&s.ID, &startedMs, &s.Channel, &s.Unit, &s.Port, &s.LogPath); err != nil {
			return nil, err
		}
		s.StartedAt = time.UnixMilli(startedMs)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Reading is one stored measurement.
type Reading struct {
	SessionID   string  `json:"session_id"`
	Sequence    float64 `json:"sequence"`
	TimestampMs int64   `json:"timestamp_ms"`
	Value       float32 `json:"value"`
}

// RecordReading stores one measurement taken at timestampMs.
func (db *DB) RecordReading(sessionID string, m measure.Measurement, timestampMs int64) error {
	_, err := db.Exec(
		"INSERT INTO readings (session_id, sequence, timestamp_ms, value) VALUES (?, ?, ?, ?)",
		sessionID, m.Sequence, timestampMs, float64(m.Value),
	)
	return err
}

// Readings returns up to limit readings of a session in acquisition order.
func (db *DB) Readings(sessionID string, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`SELECT session_id, sequence, timestamp_ms, value FROM readings
		WHERE session_id = ? ORDER BY sequence ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		var value float64
		if err := rows.Scan(&r.SessionID, &r.Sequence, &r.TimestampMs, &value); err != nil {
			return nil, err
		}
		r.Value = float32(value)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}

// Recorder stores readings for a single session.
type Recorder struct {
	db        *DB
	SessionID string
}

// Recorder binds the store to sessionID.
func (db *DB) Recorder(sessionID string) *Recorder {
	return &Recorder{db: db, SessionID: sessionID}
}

// Record stores m as taken at time at.
func (r *Recorder) Record(m measure.Measurement, at time.Time) error {
	return r.db.RecordReading(r.SessionID, m, at.UnixMilli())
}

// AttachAdminRoutes mounts the tailsql console and a backup download under
// the tsweb debug page.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Multimeter readings",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.handleBackup))
	return nil
}

func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	backupName := fmt.Sprintf("multimeter-backup-%d.db", time.Now().Unix())
	backupPath := filepath.Join(os.TempDir(), backupName)
	if err := db.Backup(backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}

	// close the backup file after sending it
	// and remove it from the filesystem
	defer func() {
		backupFile.Close()
		if err := os.Remove(backupPath); err != nil {
			log.Printf("Failed to remove backup file: %v", err)
		}
	}()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupName))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		log.Printf("Failed to write backup file: %v", err)
	}
}

// Backup writes a consistent copy of the store to path using VACUUM INTO.
// path must not exist.
func (db *DB) Backup(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("backup target %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if _, err := db.Exec("VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	return nil
}
