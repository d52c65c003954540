package store

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	id             SERIAL PRIMARY KEY,
	yt_id          VARCHAR(11) UNIQUE NOT NULL,
	title          TEXT,
	upload_date    DATE,
	channel_name   TEXT,
	duration       INTEGER,
	description    TEXT,
	thumbnail      TEXT,
	status         INTEGER NOT NULL DEFAULT 0,
	processed_date TIMESTAMP
);

CREATE TABLE IF NOT EXISTS segments (
	id         SERIAL PRIMARY KEY,
	video_id   VARCHAR(11) NOT NULL REFERENCES videos(yt_id),
	start_time INTEGER,
	end_time   INTEGER,
	text       TEXT
);

CREATE TABLE IF NOT EXISTS queries (
	id      SERIAL PRIMARY KEY,
	strict  BOOLEAN NOT NULL DEFAULT FALSE,
	content TEXT NOT NULL,
	ts      TIMESTAMP NOT NULL
);
`

// EnsureSchema creates the tables when they do not exist yet. Postgres DDL;
// the sqlite test fixture carries its own equivalent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
