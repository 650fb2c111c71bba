package storage

import "database/sql"

// migrateV001 creates the initial dwell schema. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS domain_stats (
			domain        TEXT PRIMARY KEY,
			total_seconds INTEGER NOT NULL DEFAULT 0,
			visits        INTEGER NOT NULL DEFAULT 0,
			last_visit_ms INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS domain_daily (
			domain   TEXT NOT NULL REFERENCES domain_stats(domain) ON DELETE CASCADE,
			date_key TEXT NOT NULL,
			seconds  INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (domain, date_key)
		)`,

		`CREATE TABLE IF NOT EXISTS day_domains (
			date_key TEXT NOT NULL,
			domain   TEXT NOT NULL,
			seconds  INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (date_key, domain)
		)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			ref_id TEXT,
			ts     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_domain_daily_date  ON domain_daily(date_key)`,
		`CREATE INDEX IF NOT EXISTS idx_day_domains_date   ON day_domains(date_key)`,
		`CREATE INDEX IF NOT EXISTS idx_domain_stats_total ON domain_stats(total_seconds)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_ts       ON audit_log(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action   ON audit_log(action)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
