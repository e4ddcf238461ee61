package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prysmai/debate-arena/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed transcript archive.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS transcripts (
		session_id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		total_rounds INTEGER NOT NULL,
		rounds_json TEXT NOT NULL,
		verdict TEXT NOT NULL,
		undetermined INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_completed ON transcripts(completed_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveTranscript stores a completed debate, replacing any earlier record for
// the same session.
func (s *SQLiteStore) SaveTranscript(ctx context.Context, t *domain.Transcript) error {
	roundsJSON, err := json.Marshal(t.Rounds)
	if err != nil {
		return fmt.Errorf("encode rounds: %w", err)
	}

	query := `
		INSERT INTO transcripts (session_id, topic, total_rounds, rounds_json, verdict, undetermined, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			topic = excluded.topic,
			total_rounds = excluded.total_rounds,
			rounds_json = excluded.rounds_json,
			verdict = excluded.verdict,
			undetermined = excluded.undetermined,
			completed_at = excluded.completed_at`

	undetermined := 0
	if t.Undetermined {
		undetermined = 1
	}

	// Busy errors can still slip past the busy_timeout pragma under WAL
	// checkpoint pressure; a short retry covers them.
	for attempt := 0; ; attempt++ {
		_, err = s.db.ExecContext(ctx, query,
			t.SessionID, t.Topic, t.TotalRounds, string(roundsJSON),
			t.Verdict, undetermined, t.CompletedAt.Unix())
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) || attempt >= 2 {
			return fmt.Errorf("save transcript: %w", err)
		}
		select {
		case <-time.After(50 * time.Millisecond << attempt):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// isSQLiteBusy reports a SQLITE_BUSY / "database is locked" concurrency
// error worth retrying.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// GetTranscript retrieves an archived debate by session id.
func (s *SQLiteStore) GetTranscript(ctx context.Context, sessionID string) (*domain.Transcript, error) {
	query := `
		SELECT session_id, topic, total_rounds, rounds_json, verdict, undetermined, completed_at
		FROM transcripts WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var t domain.Transcript
	var roundsJSON string
	var undetermined int
	var completedAt int64

	err := row.Scan(&t.SessionID, &t.Topic, &t.TotalRounds, &roundsJSON, &t.Verdict, &undetermined, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan transcript row: %w", err)
	}

	if err := json.Unmarshal([]byte(roundsJSON), &t.Rounds); err != nil {
		return nil, fmt.Errorf("decode rounds: %w", err)
	}
	t.Undetermined = undetermined != 0
	t.CompletedAt = time.Unix(completedAt, 0)

	return &t, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
