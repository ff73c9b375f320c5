package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/docchat/internal/source"
	"github.com/google/uuid"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is one conversation.
type Session struct {
	ID           string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one stored turn. Assistant content is kept as the raw reply
// text; callers parse it again when they need structure.
type Message struct {
	ID        int64      `json:"id"`
	SessionID string     `json:"session_id"`
	Sequence  int        `json:"sequence"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Sources   source.Set `json:"sources"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateSession starts a new session for the user.
func (s *Store) CreateSession(ctx context.Context, userID, title string) (Session, error) {
	now := time.Now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

const sessionColumns = `
	s.id, s.user_id, s.title, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)`

// GetSession returns one of the user's sessions.
func (s *Store) GetSession(ctx context.Context, userID, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ? AND s.user_id = ?`, id, userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// ListSessions returns the user's sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.user_id = ?
		ORDER BY s.updated_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its messages.
func (s *Store) DeleteSession(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessages adds messages to the end of a session atomically and bumps
// its activity time. Sequence numbers are assigned here.
func (s *Store) AppendMessages(ctx context.Context, sessionID string, msgs ...Message) ([]Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM messages WHERE session_id = ?`, sessionID).Scan(&maxSeq); err != nil {
		return nil, fmt.Errorf("get max sequence: %w", err)
	}
	next := int(maxSeq.Int64) + 1

	now := time.Now().UTC()
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		m.SessionID = sessionID
		m.Sequence = next
		next++
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.Sources == nil {
			m.Sources = source.Set{}
		}
		srcJSON, err := json.Marshal(m.Sources)
		if err != nil {
			return nil, fmt.Errorf("encode sources: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, sequence, role, content, sources, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, m.Sequence, string(m.Role), m.Content, string(srcJSON), m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		m.ID, _ = res.LastInsertId()
		out = append(out, m)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// Messages returns a session's messages in order. With last > 0 only the
// final last messages are returned.
func (s *Store) Messages(ctx context.Context, sessionID string, last int) ([]Message, error) {
	query := `
		SELECT id, session_id, sequence, role, content, sources, created_at
		FROM messages WHERE session_id = ? ORDER BY sequence`
	args := []any{sessionID}
	if last > 0 {
		query = `SELECT * FROM (
			SELECT id, session_id, sequence, role, content, sources, created_at
			FROM messages WHERE session_id = ? ORDER BY sequence DESC LIMIT ?
		) ORDER BY sequence`
		args = append(args, last)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var (
			m       Message
			role    string
			srcJSON string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sequence, &role, &m.Content, &srcJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = Role(role)
		if err := json.Unmarshal([]byte(srcJSON), &m.Sources); err != nil {
			return nil, fmt.Errorf("decode sources for message %d: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	return sess, err
}
