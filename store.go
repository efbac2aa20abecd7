package viscalyx

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/viscalyx/viscalyx.se-sub001/consent"
)

// ConsentRecord is one entry of the consent audit log.
type ConsentRecord struct {
	ID          int64
	Subject     string // hashed visitor identifier
	Action      consent.EventType
	Analytics   bool
	Preferences bool
	Version     string
	CreatedAt   time.Time
}

// Store wraps the SQLite consent audit log.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open consent db: %w", err)
	}
	// WAL lets the audit listener write while readers query; busy_timeout
	// makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure consent db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure consent schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS consent_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subject TEXT NOT NULL,
    action TEXT NOT NULL,
    analytics INTEGER NOT NULL DEFAULT 0,
    preferences INTEGER NOT NULL DEFAULT 0,
    version TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_consent_events_subject ON consent_events(subject);
CREATE INDEX IF NOT EXISTS idx_consent_events_created ON consent_events(created_at);
`)
	return err
}

// RecordConsent appends r to the log. Subject is stored as given; use
// HashSubject before passing visitor identifiers.
func (s *Store) RecordConsent(ctx context.Context, r ConsentRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	if r.Version == "" {
		r.Version = consent.Version
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consent_events (subject, action, analytics, preferences, version, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Subject, string(r.Action), boolInt(r.Analytics), boolInt(r.Preferences), r.Version, r.CreatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("insert consent event: %w", err)
	}
	return nil
}

// ListConsent returns the newest records first. An empty subject lists
// every visitor.
func (s *Store) ListConsent(ctx context.Context, subject string, limit int) ([]ConsentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, subject, action, analytics, preferences, version, created_at FROM consent_events`
	args := []any{}
	if subject != "" {
		query += ` WHERE subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query consent events: %w", err)
	}
	defer rows.Close()

	records := []ConsentRecord{}
	for rows.Next() {
		var (
			r                      ConsentRecord
			action                 string
			analytics, preferences int
			created                int64
		)
		if err := rows.Scan(&r.ID, &r.Subject, &action, &analytics, &preferences, &r.Version, &created); err != nil {
			return nil, err
		}
		r.Action = consent.EventType(action)
		r.Analytics = analytics == 1
		r.Preferences = preferences == 1
		r.CreatedAt = time.Unix(created, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// ConsentStats counts consent events by kind.
type ConsentStats struct {
	Changes     int `json:"changes"`
	Resets      int `json:"resets"`
	Analytics   int `json:"analytics"`
	Preferences int `json:"preferences"`
}

// Stats summarizes the log since from.
func (s *Store) Stats(ctx context.Context, from time.Time) (ConsentStats, error) {
	var st ConsentStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN action = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action = ? AND analytics = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action = ? AND preferences = 1 THEN 1 ELSE 0 END), 0)
		FROM consent_events WHERE created_at >= ?`,
		string(consent.EventChanged), string(consent.EventReset),
		string(consent.EventChanged), string(consent.EventChanged),
		from.UTC().Unix()).Scan(&st.Changes, &st.Resets, &st.Analytics, &st.Preferences)
	if err != nil {
		return ConsentStats{}, fmt.Errorf("query consent stats: %w", err)
	}
	return st, nil
}

// Listener returns a bus listener that records every consent event.
// Failures are logged; they never reach the visitor.
func (s *Store) Listener() consent.Listener {
	return func(e consent.Event) {
		r := ConsentRecord{
			Subject: HashSubject(e.Subject),
			Action:  e.Type,
		}
		if e.Settings != nil {
			r.Analytics = e.Settings.Analytics
			r.Preferences = e.Settings.Preferences
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.RecordConsent(ctx, r); err != nil {
			s.logger.Error("failed to record consent event", "action", e.Type, "error", err)
		}
	}
}

// HashSubject returns a truncated SHA-256 of a visitor identifier. Empty
// identifiers stay empty.
func HashSubject(subject string) string {
	if subject == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:])[:16]
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
