// Package journal is an optional SQLite-backed event sink: when enabled, it
// subscribes to the event bus and records every published event for
// post-mortem debugging. Disabled by default (empty path).
package journal

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/srosecker/resonance-slimproto/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at TEXT NOT NULL,
	kind TEXT NOT NULL,
	player_id TEXT NOT NULL,
	detail TEXT NOT NULL
);
`

// Journal is a SQLite-backed append-only log of published events.
type Journal struct {
	db *sql.DB
}

// Open creates (if needed) the database at path and ensures the schema
// exists. path is passed through filepath.Clean first; ".." elements that
// lead outside the working directory are kept, not rejected.
func Open(path string) (*Journal, error) {
	path = filepath.Clean(path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Subscribe registers the journal as an events.Subscriber so every future
// published event is recorded. Write failures are swallowed (the journal is
// diagnostic history, not a transaction log the server depends on).
func (j *Journal) Subscribe(bus *events.Bus) {
	bus.Subscribe(j.record)
}

func (j *Journal) record(evt events.Event) {
	kind, detail := describe(evt)
	_, _ = j.db.Exec(
		`INSERT INTO events (recorded_at, kind, player_id, detail) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), kind, string(evt.PlayerID), detail,
	)
}

func describe(evt events.Event) (kind, detail string) {
	switch evt.Kind {
	case events.KindPlayerConnected:
		return "player_connected", fmt.Sprintf("name=%s model=%s", evt.Name, evt.Model)
	case events.KindPlayerDisconnected:
		return "player_disconnected", ""
	case events.KindPlayerStatus:
		return "player_status", fmt.Sprintf("state=%s volume=%d muted=%v elapsed_s=%d elapsed_ms=%d",
			evt.State, evt.Volume, evt.Muted, evt.ElapsedSeconds, evt.ElapsedMilliseconds)
	case events.KindPlayerTrackFinished:
		if evt.StreamGeneration != nil {
			return "player_track_finished", fmt.Sprintf("generation=%d", *evt.StreamGeneration)
		}
		return "player_track_finished", "generation=none"
	default:
		return "unknown", ""
	}
}
