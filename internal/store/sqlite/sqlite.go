// Package sqlite provides the default durable local store.Store backend,
// generalizing a file-per-record JSON layout into tables of JSON blobs
// keyed by ID, via modernc.org/sqlite's pure-Go driver (no cgo, so the CLI
// ships as a single static binary).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/agentx/agentx/internal/store"
	"github.com/agentx/agentx/pkg/apitypes"
)

const schema = `
CREATE TABLE IF NOT EXISTS definitions (
	name TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS images (
	image_id TEXT PRIMARY KEY,
	definition_name TEXT NOT NULL,
	container_id TEXT NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_images_definition ON images(definition_name);
CREATE INDEX IF NOT EXISTS idx_images_container ON images(container_id);

CREATE TABLE IF NOT EXISTS containers (
	container_id TEXT PRIMARY KEY,
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	image_id TEXT NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_image ON sessions(image_id);

CREATE TABLE IF NOT EXISTS messages (
	message_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
`

// Open opens (creating if necessary) a sqlite-backed store.Store at path.
// path may be "file::memory:?cache=shared" for an in-process, non-durable
// instance that still exercises the real SQL code path in tests.
func Open(path string) (*store.Store, func() error, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid lock contention

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: migrate schema: %w", err)
	}

	s := &store.Store{
		Definitions: &definitions{db: db},
		Images:      &images{db: db},
		Containers:  &containers{db: db},
		Sessions:    &sessions{db: db},
		Messages:    &messages{db: db},
	}
	return s, db.Close, nil
}

type definitions struct{ db *sql.DB }

func (d *definitions) Get(ctx context.Context, name string) (apitypes.Definition, error) {
	var raw string
	err := d.db.QueryRowContext(ctx, `SELECT data FROM definitions WHERE name = ?`, name).Scan(&raw)
	if err == sql.ErrNoRows {
		return apitypes.Definition{}, store.ErrNotFound
	}
	if err != nil {
		return apitypes.Definition{}, err
	}
	var def apitypes.Definition
	return def, json.Unmarshal([]byte(raw), &def)
}

func (d *definitions) Put(ctx context.Context, def apitypes.Definition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO definitions(name, data) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data`,
		def.Name, string(raw))
	return err
}

func (d *definitions) Delete(ctx context.Context, name string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM definitions WHERE name = ?`, name)
	return err
}

func (d *definitions) List(ctx context.Context) ([]apitypes.Definition, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT data FROM definitions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []apitypes.Definition
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var def apitypes.Definition
		if err := json.Unmarshal([]byte(raw), &def); err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

type images struct{ db *sql.DB }

func (im *images) Get(ctx context.Context, imageID string) (apitypes.Image, error) {
	var raw string
	err := im.db.QueryRowContext(ctx, `SELECT data FROM images WHERE image_id = ?`, imageID).Scan(&raw)
	if err == sql.ErrNoRows {
		return apitypes.Image{}, store.ErrNotFound
	}
	if err != nil {
		return apitypes.Image{}, err
	}
	var img apitypes.Image
	return img, json.Unmarshal([]byte(raw), &img)
}

func (im *images) Put(ctx context.Context, img apitypes.Image) error {
	raw, err := json.Marshal(img)
	if err != nil {
		return err
	}
	_, err = im.db.ExecContext(ctx,
		`INSERT INTO images(image_id, definition_name, container_id, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(image_id) DO UPDATE SET definition_name = excluded.definition_name,
		   container_id = excluded.container_id, data = excluded.data`,
		img.ImageID, img.DefinitionName, img.ContainerID, string(raw))
	return err
}

func (im *images) Delete(ctx context.Context, imageID string) error {
	_, err := im.db.ExecContext(ctx, `DELETE FROM images WHERE image_id = ?`, imageID)
	return err
}

func (im *images) ListByDefinition(ctx context.Context, definitionName string) ([]apitypes.Image, error) {
	return im.queryImages(ctx, `SELECT data FROM images WHERE definition_name = ?`, definitionName)
}

func (im *images) ListByContainer(ctx context.Context, containerID string) ([]apitypes.Image, error) {
	return im.queryImages(ctx, `SELECT data FROM images WHERE container_id = ?`, containerID)
}

func (im *images) queryImages(ctx context.Context, query string, arg string) ([]apitypes.Image, error) {
	rows, err := im.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []apitypes.Image
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var img apitypes.Image
		if err := json.Unmarshal([]byte(raw), &img); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

type containers struct{ db *sql.DB }

func (c *containers) Get(ctx context.Context, containerID string) (apitypes.Container, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, `SELECT data FROM containers WHERE container_id = ?`, containerID).Scan(&raw)
	if err == sql.ErrNoRows {
		return apitypes.Container{}, store.ErrNotFound
	}
	if err != nil {
		return apitypes.Container{}, err
	}
	var v apitypes.Container
	return v, json.Unmarshal([]byte(raw), &v)
}

func (c *containers) Put(ctx context.Context, v apitypes.Container) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO containers(container_id, data) VALUES (?, ?)
		 ON CONFLICT(container_id) DO UPDATE SET data = excluded.data`,
		v.ContainerID, string(raw))
	return err
}

func (c *containers) Delete(ctx context.Context, containerID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM containers WHERE container_id = ?`, containerID)
	return err
}

func (c *containers) List(ctx context.Context) ([]apitypes.Container, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT data FROM containers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []apitypes.Container
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v apitypes.Container
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type sessions struct{ db *sql.DB }

func (s *sessions) Get(ctx context.Context, sessionID string) (apitypes.Session, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE session_id = ?`, sessionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return apitypes.Session{}, store.ErrNotFound
	}
	if err != nil {
		return apitypes.Session{}, err
	}
	var v apitypes.Session
	return v, json.Unmarshal([]byte(raw), &v)
}

func (s *sessions) Put(ctx context.Context, v apitypes.Session) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, image_id, data) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET image_id = excluded.image_id, data = excluded.data`,
		v.SessionID, v.ImageID, string(raw))
	return err
}

func (s *sessions) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	return err
}

func (s *sessions) ListByImage(ctx context.Context, imageID string) ([]apitypes.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM sessions WHERE image_id = ?`, imageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []apitypes.Session
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v apitypes.Session
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type messages struct{ db *sql.DB }

func (m *messages) Append(ctx context.Context, msg apitypes.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var seq int64
	err = m.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?`, msg.SessionID).Scan(&seq)
	if err != nil {
		return err
	}
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO messages(message_id, session_id, seq, data) VALUES (?, ?, ?, ?)`,
		msg.MessageID, msg.SessionID, seq, string(raw))
	return err
}

func (m *messages) ListBySession(ctx context.Context, sessionID string) ([]apitypes.Message, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT data FROM messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []apitypes.Message
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var msg apitypes.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (m *messages) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	return err
}
