package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// Store keeps data points in SQLite. It implements Sink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the analytics database at dbPath.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create analytics dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS data_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			index1 TEXT NOT NULL,
			blob1 TEXT NOT NULL DEFAULT '',
			blob2 TEXT NOT NULL DEFAULT '',
			blob3 TEXT NOT NULL DEFAULT '',
			double1 REAL NOT NULL DEFAULT 0,
			timestamp INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_data_points_timestamp ON data_points(timestamp);
		CREATE INDEX IF NOT EXISTS idx_data_points_index1 ON data_points(index1);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	verStr, err := s.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if verStr != "" {
		version, err = strconv.Atoi(verStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}
	if version < currentSchemaVersion {
		version = currentSchemaVersion
	}
	return s.SetSetting("schema_version", strconv.Itoa(version))
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// WriteDataPoint implements Sink. The first index, the first three blobs
// and the first double are kept; missing values are stored empty. The
// stored time is when the point was written.
func (s *Store) WriteDataPoint(ctx context.Context, dp DataPoint) error {
	if len(dp.Indexes) == 0 || dp.Indexes[0] == "" {
		return errors.New("data point without index")
	}
	blob := func(i int) string {
		if i < len(dp.Blobs) {
			return dp.Blobs[i]
		}
		return ""
	}
	var double1 float64
	if len(dp.Doubles) > 0 {
		double1 = dp.Doubles[0]
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO data_points (index1, blob1, blob2, blob3, double1, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		dp.Indexes[0], blob(0), blob(1), blob(2), double1, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("insert data point: %w", err)
	}
	return nil
}

// TopPosts returns the most viewed posts since from, most views first.
func (s *Store) TopPosts(ctx context.Context, from time.Time, limit int) ([]PostStat, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT index1, MAX(blob2), CAST(SUM(double1) AS INTEGER) AS views
		FROM data_points
		WHERE timestamp >= ?
		GROUP BY index1
		ORDER BY views DESC, index1 ASC
		LIMIT ?`, from.UTC().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("query top posts: %w", err)
	}
	defer rows.Close()

	stats := []PostStat{}
	for rows.Next() {
		var ps PostStat
		if err := rows.Scan(&ps.Slug, &ps.Category, &ps.Views); err != nil {
			return nil, err
		}
		stats = append(stats, ps)
	}
	return stats, rows.Err()
}

// DailyViews returns total views per UTC day since from, oldest first.
func (s *Store) DailyViews(ctx context.Context, from time.Time) ([]DailyView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(timestamp, 'unixepoch') AS day, CAST(SUM(double1) AS INTEGER)
		FROM data_points
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day ASC`, from.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("query daily views: %w", err)
	}
	defer rows.Close()

	days := []DailyView{}
	for rows.Next() {
		var d DailyView
		if err := rows.Scan(&d.Date, &d.Views); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// CleanupOld removes data points older than the retention period.
func (s *Store) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM data_points WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup data points: %w", err)
	}
	return res.RowsAffected()
}

// StartCleanupScheduler runs periodic cleanup of old data. Returns a stop function.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				n, err := s.CleanupOld(context.Background(), retentionDays)
				if err != nil {
					s.logger.Error("analytics cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					s.logger.Info("analytics cleanup", "removed", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
