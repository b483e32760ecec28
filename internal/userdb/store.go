// Package userdb persists per-user conversation history, prescriptions and
// tool usage counters in SQLite.
package userdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Prescription statuses.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusExpired = "expired"
)

// activeStatuses are the statuses an "active only" prescription listing
// includes.
var activeStatuses = []string{StatusPending, StatusReady}

type Prescription struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	MedID     string    `json:"med_id"`
	Dosage    string    `json:"dosage"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type StoredMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ToolCalls []string  `json:"tool_calls,omitempty"`
	Tokens    int64     `json:"tokens"`
	CreatedAt time.Time `json:"timestamp"`
}

// Store wraps the user database. Safe for concurrent use within one
// process; Open takes an exclusive file lock so a second process fails fast
// with ErrDatabaseLocked instead of corrupting state.
type Store struct {
	db   *sql.DB
	lock *fileLock
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("missing db path")
	}
	p := filepath.Clean(strings.TrimSpace(path))
	lock, err := acquireLock(p)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		_ = lock.release()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		_ = lock.release()
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &Store{db: db, lock: lock}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if relErr := s.lock.release(); err == nil {
		err = relErr
	}
	return err
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT 'en',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);`,
		`CREATE TABLE IF NOT EXISTS prescriptions (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			med_id TEXT NOT NULL,
			dosage TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_prescriptions_patient ON prescriptions(patient_id);`,
		`CREATE TABLE IF NOT EXISTS tool_usage (
			user_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			calls INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, tool_name)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init userdb schema: %w", err)
		}
	}
	return nil
}

// CreateConversation opens a new conversation for a user and returns its id.
func (s *Store) CreateConversation(ctx context.Context, userID, language string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("missing user id")
	}
	id := "CONV_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, language) VALUES (?, ?, ?)`,
		id, userID, language)
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return id, nil
}

// AddMessage appends one message to a conversation's history.
func (s *Store) AddMessage(ctx context.Context, conversationID, role, content string, toolCalls []string, tokens int64) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("missing conversation id")
	}
	var toolCallsJSON any
	if len(toolCalls) > 0 {
		b, err := json.Marshal(toolCalls)
		if err != nil {
			return err
		}
		toolCallsJSON = string(b)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, tool_calls, tokens_used) VALUES (?, ?, ?, ?, ?)`,
		conversationID, role, content, toolCallsJSON, tokens); err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		conversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return tx.Commit()
}

// ConversationHistory returns a conversation's messages in insertion order.
func (s *Store) ConversationHistory(ctx context.Context, conversationID string) ([]StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_calls, tokens_used, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY id`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var msg StoredMessage
		var toolCalls sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &toolCalls, &msg.Tokens, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if toolCalls.Valid && toolCalls.String != "" {
			_ = json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// RecordToolCall bumps the per-user counter for a tool. Satisfies the
// orchestrator's usage sink contract.
func (s *Store) RecordToolCall(ctx context.Context, userID, toolName string) error {
	userID = strings.TrimSpace(userID)
	toolName = strings.TrimSpace(toolName)
	if userID == "" || toolName == "" {
		return errors.New("missing user id or tool name")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_usage (user_id, tool_name, calls) VALUES (?, ?, 1)
		 ON CONFLICT(user_id, tool_name) DO UPDATE SET calls = calls + 1`,
		userID, toolName)
	return err
}

// ToolUsage returns a user's per-tool call counts.
func (s *Store) ToolUsage(ctx context.Context, userID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool_name, calls FROM tool_usage WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var calls int64
		if err := rows.Scan(&name, &calls); err != nil {
			return nil, err
		}
		out[name] = calls
	}
	return out, rows.Err()
}

// AddPrescription inserts a prescription record. Used by seeding and tests.
func (s *Store) AddPrescription(ctx context.Context, p Prescription) error {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = "RX_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prescriptions (id, patient_id, med_id, dosage, status) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.PatientID, p.MedID, p.Dosage, p.Status)
	return err
}

// ListPrescriptions returns a user's prescriptions; activeOnly keeps pending
// and ready ones.
func (s *Store) ListPrescriptions(ctx context.Context, userID string, activeOnly bool) ([]Prescription, error) {
	query := `SELECT id, patient_id, med_id, dosage, status, created_at FROM prescriptions WHERE patient_id = ?`
	args := []any{userID}
	if activeOnly {
		placeholders := make([]string, len(activeStatuses))
		for i, status := range activeStatuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.PatientID, &p.MedID, &p.Dosage, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
