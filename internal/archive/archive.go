// Package archive persists reconstructed sessions to a local SQLite file so
// a run's raw sessions can be queried after the fact, not just the printed
// totals.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fablab-tools/laserstat/pkg/laserlog"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    user_name TEXT,
    started_at DATETIME NOT NULL,
    ended_at DATETIME NOT NULL,
    duration_seconds INTEGER NOT NULL,
    energy REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`

// Archive is a session store backed by a single SQLite file.
type Archive struct {
	path string
	conn *sql.DB
}

// Open creates or opens the archive at path and ensures the schema exists.
func Open(path string) (*Archive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("archive path is required")
	}

	clean := filepath.Clean(path)
	if dir := filepath.Dir(clean); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", clean)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}

	return &Archive{path: clean, conn: conn}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	if a == nil || a.conn == nil {
		return nil
	}
	return a.conn.Close()
}

// Store writes one completed session under a fresh row id.
func (a *Archive) Store(ctx context.Context, s laserlog.Session) error {
	_, err := a.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, user_name, started_at, ended_at, duration_seconds, energy)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		s.UserID,
		s.UserName,
		s.Start.UTC().Format(time.RFC3339),
		s.End.UTC().Format(time.RFC3339),
		int64(s.Duration().Seconds()),
		s.Energy,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Count reports how many sessions the archive holds.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}
