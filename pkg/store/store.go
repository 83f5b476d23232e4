// Package store persists conversational turns, long-term memories, and
// activity-log entries for browsing sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id            TEXT PRIMARY KEY,
	role          TEXT NOT NULL,
	content       TEXT NOT NULL,
	metadata_json TEXT,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	content     TEXT NOT NULL,
	importance  REAL NOT NULL DEFAULT 0.5,
	embedding   BLOB,
	privacy     TEXT NOT NULL DEFAULT 'private',
	source_id   TEXT,
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	title       TEXT NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
CREATE INDEX IF NOT EXISTS idx_memories_kind ON memories(kind);
CREATE INDEX IF NOT EXISTS idx_activities_status ON activities(status);
`

// Activity statuses.
const (
	ActivityActive    = "active"
	ActivityCompleted = "completed"
	ActivityFailed    = "failed"
)

// Memory is one long-term memory record.
type Memory struct {
	Kind       string
	Content    string
	Importance float64
	Embedding  []float32
	Privacy    string
	SourceID   string
}

// Store wraps the SQLite database behind the persistence interface the
// orchestrator consumes.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite serializes writes; one connection avoids lock churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateMessage persists a conversational turn and returns its id.
func (s *Store) CreateMessage(ctx context.Context, role, content string, metadata map[string]interface{}) (string, error) {
	id := uuid.New().String()

	var metaJSON []byte
	if len(metadata) > 0 {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, role, content, metadata_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, role, content, string(metaJSON), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	return id, nil
}

// CreateMemory persists a long-term memory record and returns its id.
func (s *Store) CreateMemory(ctx context.Context, m Memory) (string, error) {
	id := uuid.New().String()

	if m.Privacy == "" {
		m.Privacy = "private"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, kind, content, importance, embedding, privacy, source_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, m.Kind, m.Content, m.Importance, encodeEmbedding(m.Embedding), m.Privacy, m.SourceID, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert memory: %w", err)
	}
	return id, nil
}

// LogActivity opens an activity-log entry and returns its id.
func (s *Store) LogActivity(ctx context.Context, kind, title string) (string, error) {
	id := uuid.New().String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, kind, title, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, kind, title, ActivityActive, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert activity: %w", err)
	}
	return id, nil
}

// CompleteActivity marks an activity as completed with a closing detail.
func (s *Store) CompleteActivity(ctx context.Context, id, detail string) error {
	return s.finishActivity(ctx, id, ActivityCompleted, detail)
}

// FailActivity marks an activity as failed with a failure detail.
func (s *Store) FailActivity(ctx context.Context, id, detail string) error {
	return s.finishActivity(ctx, id, ActivityFailed, detail)
}

func (s *Store) finishActivity(ctx context.Context, id, status, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE activities SET status = ?, detail = ?, finished_at = ? WHERE id = ?`,
		status, detail, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("activity %q not found", id)
	}
	return nil
}

// GetMemory reads back a memory record by id.
func (s *Store) GetMemory(ctx context.Context, id string) (*Memory, error) {
	var m Memory
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, content, importance, embedding, privacy, source_id FROM memories WHERE id = ?`,
		id).Scan(&m.Kind, &m.Content, &m.Importance, &blob, &m.Privacy, &m.SourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory: %w", err)
	}
	m.Embedding = decodeEmbedding(blob)
	return &m, nil
}

// ActivityStatus returns the current status of an activity.
func (s *Store) ActivityStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM activities WHERE id = ?`, id).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("failed to read activity: %w", err)
	}
	return status, nil
}

// encodeEmbedding packs an embedding into a little-endian float32 blob.
// Nil and empty embeddings are stored as NULL.
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks a little-endian float32 blob.
func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
