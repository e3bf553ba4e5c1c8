// Package history persists completed conversation turns.
//
// store.go - SQLite-backed turn storage
//
// The store sits off the hot path: the decision functions never touch
// it. Turns are stored as JSON payloads keyed by conversation and
// sequence so a conversation can be reloaded in order on resume.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parleyhq/parley/internal/chat"
)

var ErrNotFound = errors.New("conversation not found")

// Store handles conversation persistence.
type Store struct {
	db *sql.DB
}

// Open creates a history store backed by SQLite under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		conversation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		turn_id TEXT NOT NULL,
		role TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (conversation_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTurn upserts one turn at its position in the conversation.
func (s *Store) SaveTurn(conversationID string, seq int, turn chat.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode turn: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO turns (conversation_id, seq, turn_id, role, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id, seq) DO UPDATE SET
		   turn_id = excluded.turn_id,
		   role = excluded.role,
		   payload = excluded.payload`,
		conversationID, seq, turn.ID, string(turn.Role), string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

// LoadConversation returns the stored turns for a conversation in
// order.
func (s *Store) LoadConversation(conversationID string) (chat.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM turns WHERE conversation_id = ? ORDER BY seq`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var conv chat.Conversation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		var turn chat.Turn
		if err := json.Unmarshal([]byte(payload), &turn); err != nil {
			return nil, fmt.Errorf("failed to decode turn: %w", err)
		}
		conv = append(conv, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(conv) == 0 {
		return nil, ErrNotFound
	}
	return conv, nil
}

// Prune deletes turns older than the retention window. Returns the
// number of rows removed.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.Exec(`DELETE FROM turns WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune turns: %w", err)
	}
	return res.RowsAffected()
}
