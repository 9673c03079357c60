package repos

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// OpenDB opens the SQLite store at dsn and ensures the schema exists.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
-- Watches
CREATE TABLE IF NOT EXISTS watches(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  url TEXT NOT NULL,
  last_checked INTEGER NOT NULL DEFAULT 0,
  targets_json TEXT NOT NULL DEFAULT '[]',
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_watches_url ON watches(url);

-- Advertisements (id comes from the listing source, keyed per watch;
-- rows are never deleted on disappearance, only flipped inactive)
CREATE TABLE IF NOT EXISTS advertisements(
  id TEXT NOT NULL,
  watch_id INTEGER NOT NULL,
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  price INTEGER NOT NULL DEFAULT 0,
  location TEXT NOT NULL DEFAULT '',
  posted_at TEXT NOT NULL DEFAULT '',
  pinned INTEGER NOT NULL DEFAULT 0,
  seller_name TEXT NOT NULL DEFAULT '',
  seller_url TEXT NOT NULL DEFAULT '',
  seller_rating TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT '',
  active INTEGER NOT NULL DEFAULT 1,
  prev_prices_json TEXT NOT NULL DEFAULT '[]',
  price_alert INTEGER NOT NULL DEFAULT 0,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT,
  PRIMARY KEY (watch_id, id)
);
CREATE INDEX IF NOT EXISTS idx_ads_watch  ON advertisements(watch_id);
CREATE INDEX IF NOT EXISTS idx_ads_active ON advertisements(watch_id, active);
`
	_, err := db.Exec(schema)
	return err
}
