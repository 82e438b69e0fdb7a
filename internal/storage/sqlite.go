package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for channels, the video ledger,
// and the scheduler state.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "ytdigest.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors. This
	// also makes the ledger claim a serialized test-and-set.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Channels ---

func (s *Store) CreateChannel(c Channel) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO channels (channel_id, channel_name, uploads_playlist_id, created_at)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.UploadsPlaylistID, createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetChannel(channelID string) (Channel, error) {
	var c Channel
	var createdAt string
	err := s.db.QueryRow(`
		SELECT channel_id, channel_name, uploads_playlist_id, created_at
		FROM channels WHERE channel_id = ?`, channelID,
	).Scan(&c.ID, &c.Name, &c.UploadsPlaylistID, &createdAt)
	if err == sql.ErrNoRows {
		return Channel{}, ErrNotFound
	}
	if err != nil {
		return Channel{}, err
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Channel{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return c, nil
}

func (s *Store) ListChannels() ([]Channel, error) {
	rows, err := s.db.Query(`
		SELECT channel_id, channel_name, uploads_playlist_id, created_at
		FROM channels ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.UploadsPlaylistID, &createdAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func (s *Store) DeleteChannel(channelID string) error {
	res, err := s.db.Exec(`DELETE FROM channels WHERE channel_id = ?`, channelID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Video ledger ---

// ClaimVideo atomically registers rec for processing. It returns true when
// the caller won the claim: either no record with that video ID existed yet,
// or an existing record is in a retryable failed state (a permanently failed
// record is reclaimed only when allowPermanentRetry is set, which manual
// re-summarization uses). On a reclaim the cached summary and strategy are
// preserved so delivery retries can skip re-summarization.
//
// Two overlapping runs claiming the same video ID resolve to exactly one
// winner: the insert-or-reset runs in a single transaction against a
// single-connection database.
func (s *Store) ClaimVideo(rec VideoRecord, allowPermanentRetry bool) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	var retryable bool
	err = tx.QueryRow(`SELECT status, retryable FROM videos WHERE video_id = ?`, rec.VideoID).
		Scan(&status, &retryable)

	switch {
	case err == sql.ErrNoRows:
		discoveredAt := rec.DiscoveredAt
		if discoveredAt.IsZero() {
			discoveredAt = time.Now().UTC()
		}
		var publishedAt any
		if !rec.PublishedAt.IsZero() {
			publishedAt = rec.PublishedAt.UTC().Format(time.RFC3339)
		}
		_, err = tx.Exec(`
			INSERT INTO videos (video_id, channel_id, title, duration_seconds, published_at, discovered_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.VideoID, rec.ChannelID, rec.Title, rec.DurationSeconds,
			publishedAt, discoveredAt.UTC().Format(time.RFC3339), string(StatusDiscovered),
		)
		if err != nil {
			return false, fmt.Errorf("inserting video record: %w", err)
		}

	case err != nil:
		return false, fmt.Errorf("checking video record: %w", err)

	case VideoStatus(status) == StatusFailed && (retryable || allowPermanentRetry):
		// Failed -> Discovered on retry. Summary and strategy stay so a
		// delivery-only failure does not re-summarize.
		_, err = tx.Exec(`
			UPDATE videos SET status = ?, last_error = '', retryable = 0 WHERE video_id = ?`,
			string(StatusDiscovered), rec.VideoID,
		)
		if err != nil {
			return false, fmt.Errorf("resetting failed video record: %w", err)
		}

	default:
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing claim: %w", err)
	}
	return true, nil
}

func (s *Store) GetVideo(videoID string) (VideoRecord, error) {
	var rec VideoRecord
	var status string
	var publishedAt, deliveredAt sql.NullString
	var discoveredAt string
	err := s.db.QueryRow(`
		SELECT video_id, channel_id, title, duration_seconds, published_at, discovered_at,
		       status, last_error, retryable, summary, strategy, delivered_at
		FROM videos WHERE video_id = ?`, videoID,
	).Scan(&rec.VideoID, &rec.ChannelID, &rec.Title, &rec.DurationSeconds, &publishedAt,
		&discoveredAt, &status, &rec.LastError, &rec.Retryable, &rec.Summary, &rec.Strategy, &deliveredAt)
	if err == sql.ErrNoRows {
		return VideoRecord{}, ErrNotFound
	}
	if err != nil {
		return VideoRecord{}, err
	}
	rec.Status = VideoStatus(status)
	if rec.DiscoveredAt, err = time.Parse(time.RFC3339, discoveredAt); err != nil {
		return VideoRecord{}, fmt.Errorf("parsing discovered_at: %w", err)
	}
	if publishedAt.Valid {
		if rec.PublishedAt, err = time.Parse(time.RFC3339, publishedAt.String); err != nil {
			return VideoRecord{}, fmt.Errorf("parsing published_at: %w", err)
		}
	}
	if deliveredAt.Valid {
		if rec.DeliveredAt, err = time.Parse(time.RFC3339, deliveredAt.String); err != nil {
			return VideoRecord{}, fmt.Errorf("parsing delivered_at: %w", err)
		}
	}
	return rec, nil
}

func (s *Store) MarkTranscriptFetched(videoID string) error {
	return s.setStatus(videoID, StatusTranscriptFetched)
}

// MarkSummarized records the generated summary and advances the status. The
// summary is kept so a later delivery retry reuses it.
func (s *Store) MarkSummarized(videoID, summary, strategy string) error {
	res, err := s.db.Exec(`
		UPDATE videos SET status = ?, summary = ?, strategy = ? WHERE video_id = ?`,
		string(StatusSummarized), summary, strategy, videoID,
	)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *Store) MarkDelivered(videoID string) error {
	res, err := s.db.Exec(`
		UPDATE videos SET status = ?, delivered_at = ? WHERE video_id = ?`,
		string(StatusDelivered), time.Now().UTC().Format(time.RFC3339), videoID,
	)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// MarkFailed records a failure. Retryable failures are reclaimed by the next
// run; permanent ones (no transcript) are only retried manually.
func (s *Store) MarkFailed(videoID, reason string, retryable bool) error {
	res, err := s.db.Exec(`
		UPDATE videos SET status = ?, last_error = ?, retryable = ? WHERE video_id = ?`,
		string(StatusFailed), reason, retryable, videoID,
	)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *Store) setStatus(videoID string, status VideoStatus) error {
	res, err := s.db.Exec(`UPDATE videos SET status = ? WHERE video_id = ?`, string(status), videoID)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestPublishedAt returns the newest publish timestamp recorded for a
// channel. The second return value is false when the channel has no videos
// with a publish date yet.
func (s *Store) LatestPublishedAt(channelID string) (time.Time, bool, error) {
	var latest sql.NullString
	err := s.db.QueryRow(`
		SELECT MAX(published_at) FROM videos WHERE channel_id = ?`, channelID,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, err
	}
	if !latest.Valid || latest.String == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, latest.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing published_at: %w", err)
	}
	return t, true, nil
}

// CountByStatus returns ledger counts keyed by status, for status reporting.
func (s *Store) CountByStatus() (map[VideoStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM videos GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[VideoStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[VideoStatus(status)] = n
	}
	return counts, rows.Err()
}

// --- Schedule state ---

func (s *Store) GetScheduleState() (ScheduleState, error) {
	var st ScheduleState
	var lastRunAt sql.NullString
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT trigger_hour, trigger_minute, is_paused, last_run_at, last_run_outcome, updated_at
		FROM schedule_state WHERE id = 1`,
	).Scan(&st.TriggerHour, &st.TriggerMinute, &st.Paused, &lastRunAt, &st.LastRunOutcome, &updatedAt)
	if err != nil {
		return ScheduleState{}, err
	}
	if lastRunAt.Valid && lastRunAt.String != "" {
		if st.LastRunAt, err = time.Parse(time.RFC3339, lastRunAt.String); err != nil {
			return ScheduleState{}, fmt.Errorf("parsing last_run_at: %w", err)
		}
	}
	if st.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return ScheduleState{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return st, nil
}

func (s *Store) SetPaused(paused bool) error {
	_, err := s.db.Exec(`
		UPDATE schedule_state SET is_paused = ?, updated_at = ? WHERE id = 1`,
		paused, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) SetTriggerTime(hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid trigger time %02d:%02d", hour, minute)
	}
	_, err := s.db.Exec(`
		UPDATE schedule_state SET trigger_hour = ?, trigger_minute = ?, updated_at = ? WHERE id = 1`,
		hour, minute, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RecordRun stores the completion time and outcome summary of a pipeline run.
func (s *Store) RecordRun(at time.Time, outcome string) error {
	_, err := s.db.Exec(`
		UPDATE schedule_state SET last_run_at = ?, last_run_outcome = ?, updated_at = ? WHERE id = 1`,
		at.UTC().Format(time.RFC3339), outcome, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}
