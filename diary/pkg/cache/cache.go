// Package cache persists a parsed health export on disk so the file is
// only re-parsed when it changes. The cache key is the export path and
// its modification time.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	"glyko/diary/defs"
	"glyko/diary/pkg/healthkit"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	kindGlucose = "glucose"
	kindInsulin = "insulin"
	kindCarbs   = "carbs"
)

const schema = `
CREATE TABLE IF NOT EXISTS exports (
	path      TEXT PRIMARY KEY,
	mtime     INTEGER NOT NULL,
	skipped   INTEGER NOT NULL,
	stored_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	path   TEXT NOT NULL,
	kind   TEXT NOT NULL,
	time   INTEGER NOT NULL,
	value  REAL NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (path) REFERENCES exports(path)
);
CREATE INDEX IF NOT EXISTS records_path_time ON records(path, time);
`

type Cache struct {
	db     *sql.DB
	logger *zap.Logger
}

func Open(path string, logger *zap.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("unable to set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("unable to create cache schema: %w", err)
	}

	return &Cache{db: db, logger: logger}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Load returns the cached export for path if one was stored with the
// same mtime. The second return reports a hit.
func (c *Cache) Load(path string, mtime time.Time) (*healthkit.Export, bool, error) {
	var cachedMtime int64
	var skipped int
	row := c.db.QueryRow("SELECT mtime, skipped FROM exports WHERE path = ?", path)
	if err := row.Scan(&cachedMtime, &skipped); err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("unable to read cache entry: %w", err)
	}

	if cachedMtime != mtime.UnixNano() {
		c.logger.Debug("cache entry stale",
			zap.String("path", path),
			zap.Int64("cachedMtime", cachedMtime),
			zap.Int64("mtime", mtime.UnixNano()),
		)
		return nil, false, nil
	}

	rows, err := c.db.Query(
		"SELECT kind, time, value, reason FROM records WHERE path = ? ORDER BY time",
		path,
	)
	if err != nil {
		return nil, false, fmt.Errorf("unable to read cached records: %w", err)
	}
	defer rows.Close()

	exp := &healthkit.Export{Skipped: skipped}
	for rows.Next() {
		var kind, reason string
		var ns int64
		var value float64
		if err := rows.Scan(&kind, &ns, &value, &reason); err != nil {
			return nil, false, fmt.Errorf("unable to scan cached record: %w", err)
		}

		t := time.Unix(0, ns)
		switch kind {
		case kindGlucose:
			exp.Glucose = append(exp.Glucose, defs.GlucoseReading{Time: t, Mmol: value})
		case kindInsulin:
			exp.Insulin = append(exp.Insulin, defs.Insulin{Time: t, Units: value, Reason: reason})
		case kindCarbs:
			exp.Carbs = append(exp.Carbs, defs.Carb{Time: t, Grams: value})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("unable to iterate cached records: %w", err)
	}

	return exp, true, nil
}

// Store replaces any previous cache entry for path.
func (c *Cache) Store(path string, mtime time.Time, exp *healthkit.Export) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("unable to begin cache tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM records WHERE path = ?", path); err != nil {
		return fmt.Errorf("unable to clear cached records: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO exports (path, mtime, skipped, stored_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime,
		 skipped = excluded.skipped, stored_at = excluded.stored_at`,
		path, mtime.UnixNano(), exp.Skipped, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("unable to upsert cache entry: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO records (path, kind, time, value, reason) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("unable to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, gr := range exp.Glucose {
		if _, err := stmt.Exec(path, kindGlucose, gr.Time.UnixNano(), gr.Mmol, ""); err != nil {
			return fmt.Errorf("unable to cache glucose: %w", err)
		}
	}
	for _, in := range exp.Insulin {
		if _, err := stmt.Exec(path, kindInsulin, in.Time.UnixNano(), in.Units, in.Reason); err != nil {
			return fmt.Errorf("unable to cache insulin: %w", err)
		}
	}
	for _, cb := range exp.Carbs {
		if _, err := stmt.Exec(path, kindCarbs, cb.Time.UnixNano(), cb.Grams, ""); err != nil {
			return fmt.Errorf("unable to cache carbs: %w", err)
		}
	}

	c.logger.Debug("stored export in cache",
		zap.String("path", path),
		zap.Int("glucose", len(exp.Glucose)),
		zap.Int("insulin", len(exp.Insulin)),
		zap.Int("carbs", len(exp.Carbs)),
	)

	return tx.Commit()
}
