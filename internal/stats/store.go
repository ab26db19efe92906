package stats

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	appLog "readcal/internal/log"
)

// pageRowsQuery joins every page-timing record with its book title.
const pageRowsQuery = `
	SELECT book.title, page_stat_data.start_time, page_stat_data.duration
	FROM page_stat_data
	JOIN book ON page_stat_data.id_book = book.id
	ORDER BY page_stat_data.start_time ASC
`

// RawRow is one row of the page-statistics join. Any column may be NULL.
type RawRow struct {
	Title     sql.NullString
	StartTime sql.NullFloat64 // Unix epoch seconds, UTC
	Duration  sql.NullFloat64 // seconds
}

// Store is a read-only handle on a reader statistics database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the SQLite statistics database at path read-only and verifies
// the connection. A missing file is an error; it is never created.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("stats: database path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	db, err := sql.Open("sqlite3", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("stats: open %s: %w", path, err)
	}
	// Ping alone succeeds on any file; reading the schema version catches
	// files that are not SQLite databases.
	var schemaVersion int
	if err := db.QueryRow("PRAGMA schema_version").Scan(&schemaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: open %s: %w", path, err)
	}

	appLog.Debug("stats database opened", "path", path)
	return &Store{db: db, path: path}, nil
}

// readOnlyDSN builds a SQLite URI for path. The path is percent-escaped so
// '#', '?' and '%' in file names reach SQLite literally.
func readOnlyDSN(path string) string {
	u := url.URL{
		Scheme:   "file",
		OmitHost: true,
		Path:     filepath.ToSlash(path),
		RawQuery: "mode=ro",
	}
	return u.String()
}

// PageRows runs the page/book join and returns every row ordered by start time.
func (s *Store) PageRows(ctx context.Context) ([]RawRow, error) {
	rows, err := s.db.QueryContext(ctx, pageRowsQuery)
	if err != nil {
		return nil, fmt.Errorf("stats: query page rows: %w", err)
	}
	defer rows.Close()

	var out []RawRow
	for rows.Next() {
		var r RawRow
		if err := rows.Scan(&r.Title, &r.StartTime, &r.Duration); err != nil {
			return nil, fmt.Errorf("stats: scan page row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: iterate page rows: %w", err)
	}

	appLog.Debug("stats rows loaded", "path", s.path, "rows", len(out))
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
