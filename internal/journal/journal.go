// ============================================================
// ATTEMPT JOURNAL - local sqlite log of kiosk attempts
// ============================================================
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"attendance-kiosk/models"
)

// Attempt is one finished enrollment or attendance attempt.
type Attempt struct {
	ID        string          `json:"id"`
	Workflow  models.Workflow `json:"workflow"`
	Outcome   models.Outcome  `json:"outcome"`
	Ident     string          `json:"ident,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
}

// Journal stores attempts. A nil *Journal accepts and drops everything.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id          TEXT PRIMARY KEY,
		workflow    TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		ident       TEXT NOT NULL DEFAULT '',
		reason      TEXT NOT NULL DEFAULT '',
		started_at  DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_started ON attempts(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores a and fills in its ID when empty.
func (j *Journal) Record(a *Attempt) error {
	if j == nil {
		return nil
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now()
	}

	_, err := j.db.Exec(
		`INSERT INTO attempts (id, workflow, outcome, ident, reason, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Workflow), string(a.Outcome), a.Ident, a.Reason,
		a.StartedAt.UTC(), a.Duration.Milliseconds(),
	)
	return err
}

// Recent returns up to limit attempts, newest first.
func (j *Journal) Recent(limit int) ([]Attempt, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.Query(
		`SELECT id, workflow, outcome, ident, reason, started_at, duration_ms
		 FROM attempts ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a        Attempt
			workflow string
			outcome  string
			ms       int64
		)
		if err := rows.Scan(&a.ID, &workflow, &outcome, &a.Ident, &a.Reason, &a.StartedAt, &ms); err != nil {
			return nil, err
		}
		a.Workflow = models.Workflow(workflow)
		a.Outcome = models.Outcome(outcome)
		a.Duration = time.Duration(ms) * time.Millisecond
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
