package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRecord is returned when a session record cannot be stored.
var ErrInvalidRecord = errors.New("invalid session record")

const metaLastCleanup = "last_cleanup"

// Store defines the interface for dwell data operations. Every mutation is
// atomic from the caller's perspective.
type Store interface {
	RecordSession(ctx context.Context, rec SessionRecord) error
	ActivityData(ctx context.Context) (map[string]*DomainStat, error)
	DailyData(ctx context.Context) (map[string]*DayStat, error)
	LastCleanup(ctx context.Context) (time.Time, error)
	SetLastCleanup(ctx context.Context, t time.Time) error
	CountDaysBefore(ctx context.Context, cutoffKey string) (int64, error)
	PruneDaysBefore(ctx context.Context, cutoffKey string) (int64, error)
	ClearAll(ctx context.Context) error
	Snapshot(ctx context.Context) (*Document, error)
	Restore(ctx context.Context, doc *Document) error
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// validateRecord checks the fields every backend relies on.
func validateRecord(rec SessionRecord) error {
	switch {
	case rec.Domain == "":
		return fmt.Errorf("%w: empty domain", ErrInvalidRecord)
	case rec.Seconds <= 0:
		return fmt.Errorf("%w: non-positive duration %d", ErrInvalidRecord, rec.Seconds)
	case rec.DateKey == "":
		return fmt.Errorf("%w: empty date key", ErrInvalidRecord)
	}
	return nil
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool

	// Prepared statements
	upsertDomain    *sql.Stmt
	upsertBreakdown *sql.Stmt
	upsertDay       *sql.Stmt
	getMeta         *sql.Stmt
	setMeta         *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.upsertDomain, err = s.db.Prepare(`
		INSERT INTO domain_stats (domain, total_seconds, visits, last_visit_ms)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(domain) DO UPDATE SET
			total_seconds = total_seconds + excluded.total_seconds,
			visits        = visits + 1,
			last_visit_ms = excluded.last_visit_ms,
			updated_at    = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}

	s.upsertBreakdown, err = s.db.Prepare(`
		INSERT INTO domain_daily (domain, date_key, seconds)
		VALUES (?, ?, ?)
		ON CONFLICT(domain, date_key) DO UPDATE SET seconds = seconds + excluded.seconds
	`)
	if err != nil {
		return err
	}

	s.upsertDay, err = s.db.Prepare(`
		INSERT INTO day_domains (date_key, domain, seconds)
		VALUES (?, ?, ?)
		ON CONFLICT(date_key, domain) DO UPDATE SET seconds = seconds + excluded.seconds
	`)
	if err != nil {
		return err
	}

	s.getMeta, err = s.db.Prepare(`SELECT value FROM meta WHERE key = ?`)
	if err != nil {
		return err
	}

	s.setMeta, err = s.db.Prepare(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}

	return nil
}

// RecordSession folds one closed interval into the domain and day tables
// in a single transaction.
func (s *SQLiteStore) RecordSession(ctx context.Context, rec SessionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.StmtContext(ctx, s.upsertDomain).ExecContext(ctx,
		rec.Domain, rec.Seconds, rec.At.UnixMilli(),
	); err != nil {
		return fmt.Errorf("upsert domain: %w", err)
	}

	if _, err := tx.StmtContext(ctx, s.upsertBreakdown).ExecContext(ctx,
		rec.Domain, rec.DateKey, rec.Seconds,
	); err != nil {
		return fmt.Errorf("upsert breakdown: %w", err)
	}

	if _, err := tx.StmtContext(ctx, s.upsertDay).ExecContext(ctx,
		rec.DateKey, rec.Domain, rec.Seconds,
	); err != nil {
		return fmt.Errorf("upsert day: %w", err)
	}

	return tx.Commit()
}

// ActivityData returns every DomainStat with its daily breakdown.
func (s *SQLiteStore) ActivityData(ctx context.Context) (map[string]*DomainStat, error) {
	return activityData(ctx, s.db)
}

func activityData(ctx context.Context, q queryer) (map[string]*DomainStat, error) {
	out := make(map[string]*DomainStat)

	rows, err := q.QueryContext(ctx, `SELECT domain, total_seconds, visits, last_visit_ms FROM domain_stats`)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	for rows.Next() {
		var domain string
		ds := &DomainStat{DailyBreakdown: make(map[string]int64)}
		if err := rows.Scan(&domain, &ds.TotalTime, &ds.Visits, &ds.LastVisit); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out[domain] = ds
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = q.QueryContext(ctx, `SELECT domain, date_key, seconds FROM domain_daily`)
	if err != nil {
		return nil, fmt.Errorf("query breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var domain, key string
		var secs int64
		if err := rows.Scan(&domain, &key, &secs); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		if ds, ok := out[domain]; ok {
			ds.DailyBreakdown[key] = secs
		}
	}

	return out, rows.Err()
}

// DailyData returns every DayStat with its per-domain breakdown.
func (s *SQLiteStore) DailyData(ctx context.Context) (map[string]*DayStat, error) {
	return dailyData(ctx, s.db)
}

func dailyData(ctx context.Context, q queryer) (map[string]*DayStat, error) {
	rows, err := q.QueryContext(ctx, `SELECT date_key, domain, seconds FROM day_domains`)
	if err != nil {
		return nil, fmt.Errorf("query days: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*DayStat)
	for rows.Next() {
		var key, domain string
		var secs int64
		if err := rows.Scan(&key, &domain, &secs); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		day, ok := out[key]
		if !ok {
			day = &DayStat{Domains: make(map[string]int64)}
			out[key] = day
		}
		day.Domains[domain] += secs
		day.TotalTime += secs
	}

	return out, rows.Err()
}

// LastCleanup returns when the retention sweep last ran, or the zero time.
func (s *SQLiteStore) LastCleanup(ctx context.Context) (time.Time, error) {
	var raw string
	err := s.getMeta.QueryRowContext(ctx, metaLastCleanup).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("get last cleanup: %w", err)
	}
	return parseEpochMillis(raw)
}

// SetLastCleanup records when the retention sweep ran.
func (s *SQLiteStore) SetLastCleanup(ctx context.Context, t time.Time) error {
	if _, err := s.setMeta.ExecContext(ctx, metaLastCleanup, strconv.FormatInt(t.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("set last cleanup: %w", err)
	}
	return nil
}

// CountDaysBefore counts the day entries whose key sorts before cutoffKey.
func (s *SQLiteStore) CountDaysBefore(ctx context.Context, cutoffKey string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT date_key) FROM day_domains WHERE date_key < ?", cutoffKey,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count days: %w", err)
	}
	return n, nil
}

// PruneDaysBefore deletes day entries whose key sorts before cutoffKey and
// returns the number of days removed. Lifetime domain breakdowns are kept.
func (s *SQLiteStore) PruneDaysBefore(ctx context.Context, cutoffKey string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT date_key) FROM day_domains WHERE date_key < ?", cutoffKey,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count days: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM day_domains WHERE date_key < ?", cutoffKey); err != nil {
		return 0, fmt.Errorf("prune days: %w", err)
	}

	if err := writeAudit(ctx, tx, "prune", fmt.Sprintf("%d days before %s", n, cutoffKey)); err != nil {
		return 0, err
	}

	return n, tx.Commit()
}

// ClearAll deletes every domain and day entry and resets the cleanup marker.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := clearTables(ctx, tx); err != nil {
		return err
	}
	if err := writeAudit(ctx, tx, "purge", "all data deleted"); err != nil {
		return err
	}
	return tx.Commit()
}

func clearTables(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		"DELETE FROM day_domains",
		"DELETE FROM domain_daily",
		"DELETE FROM domain_stats",
		"DELETE FROM meta WHERE key = 'last_cleanup'",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return nil
}

// Snapshot reads the whole store into its external document shape.
func (s *SQLiteStore) Snapshot(ctx context.Context) (*Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	doc := NewDocument()
	if doc.ActivityData, err = activityData(ctx, tx); err != nil {
		return nil, err
	}
	if doc.DailyData, err = dailyData(ctx, tx); err != nil {
		return nil, err
	}

	var raw string
	err = tx.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaLastCleanup).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("get last cleanup: %w", err)
	default:
		if doc.LastCleanup, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("parse last cleanup: %w", err)
		}
	}

	return doc, nil
}

// Restore replaces the whole store with doc.
func (s *SQLiteStore) Restore(ctx context.Context, doc *Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := clearTables(ctx, tx); err != nil {
		return err
	}

	for domain, ds := range doc.ActivityData {
		if ds == nil {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO domain_stats (domain, total_seconds, visits, last_visit_ms) VALUES (?, ?, ?, ?)",
			domain, ds.TotalTime, ds.Visits, ds.LastVisit,
		); err != nil {
			return fmt.Errorf("restore domain %s: %w", domain, err)
		}
		for key, secs := range ds.DailyBreakdown {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO domain_daily (domain, date_key, seconds) VALUES (?, ?, ?)",
				domain, key, secs,
			); err != nil {
				return fmt.Errorf("restore breakdown %s/%s: %w", domain, key, err)
			}
		}
	}

	for key, day := range doc.DailyData {
		if day == nil {
			continue
		}
		for domain, secs := range day.Domains {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO day_domains (date_key, domain, seconds) VALUES (?, ?, ?)",
				key, domain, secs,
			); err != nil {
				return fmt.Errorf("restore day %s/%s: %w", key, domain, err)
			}
		}
	}

	if doc.LastCleanup > 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO meta (key, value) VALUES (?, ?)",
			metaLastCleanup, strconv.FormatInt(doc.LastCleanup, 10),
		); err != nil {
			return fmt.Errorf("restore last cleanup: %w", err)
		}
	}

	if err := writeAudit(ctx, tx, "import", fmt.Sprintf("%d domains, %d days", len(doc.ActivityData), len(doc.DailyData))); err != nil {
		return err
	}

	return tx.Commit()
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(total_seconds), 0) FROM domain_stats",
	).Scan(&stats.TotalDomains, &stats.TotalSeconds)
	if err != nil {
		return nil, fmt.Errorf("count domains: %w", err)
	}

	var oldest, newest sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT date_key), MIN(date_key), MAX(date_key) FROM day_domains",
	).Scan(&stats.TotalDays, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("day range: %w", err)
	}
	stats.OldestDay = oldest.String
	stats.NewestDay = newest.String

	if stats.LastCleanup, err = s.LastCleanup(ctx); err != nil {
		return nil, err
	}

	if stats.DatabaseSizeBytes, err = s.databaseSize(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT domain, total_seconds FROM domain_stats ORDER BY total_seconds DESC, domain ASC LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dt DomainTime
		if err := rows.Scan(&dt.Domain, &dt.Seconds); err != nil {
			return nil, err
		}
		stats.TopDomains = append(stats.TopDomains, dt)
	}

	return stats, rows.Err()
}

// databaseSize is page_count * page_size. It works for in-memory
// databases too.
func (s *SQLiteStore) databaseSize(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("page size: %w", err)
	}
	return pageCount * pageSize, nil
}

// Close releases all prepared statements. The underlying *sql.DB is closed
// only when the store opened it (OpenSQLite).
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.upsertDomain, s.upsertBreakdown, s.upsertDay,
		s.getMeta, s.setMeta,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// writeAudit appends an audit entry tagged with a fresh reference ID.
func writeAudit(ctx context.Context, tx *sql.Tx, action, detail string) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO audit_log (action, detail, ref_id) VALUES (?, ?, ?)",
		action, detail, uuid.NewString(),
	); err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}

// parseEpochMillis converts a stored epoch-ms string to a time.
func parseEpochMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse epoch millis %q: %w", raw, err)
	}
	if ms <= 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}
