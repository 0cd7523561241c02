package repo

import (
	"context"
	"database/sql"

	"tasktalk/internal/domain"
)

func (r Repo) InsertConversation(ctx context.Context, tx *sql.Tx, c domain.Conversation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO conversations(id,user_id,created_at,updated_at) VALUES (?,?,?,?)`,
		c.ID, c.UserID, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetConversation(ctx context.Context, ownerID, id string) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.DB.QueryRowContext(ctx, `SELECT id,user_id,created_at,updated_at FROM conversations WHERE id=? AND user_id=?`, id, ownerID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,created_at,updated_at FROM conversations WHERE user_id=? ORDER BY updated_at DESC, rowid DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertMessage(ctx context.Context, tx *sql.Tx, m domain.Message) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO messages(id,conversation_id,user_id,role,content,tool_calls_json,created_at) VALUES (?,?,?,?,?,?,?)`,
		m.ID, m.ConversationID, m.UserID, m.Role, m.Content, nullableStringPtr(m.ToolCallsJSON), m.CreatedAt)
	return err
}

// TouchConversation bumps updated_at; called in the same transaction that
// appends a message.
func (r Repo) TouchConversation(ctx context.Context, tx *sql.Tx, id, ts string) error {
	res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at=? WHERE id=?`, ts, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentMessages returns the newest messages of a conversation, reordered
// oldest first. Insertion order is the rowid; created_at alone cannot break
// ties between writes in the same instant.
func (r Repo) RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,conversation_id,user_id,role,content,tool_calls_json,created_at
FROM messages WHERE conversation_id=? ORDER BY rowid DESC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Message
	for rows.Next() {
		var m domain.Message
		var toolCalls sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &toolCalls, &m.CreatedAt); err != nil {
			return nil, err
		}
		if toolCalls.Valid {
			m.ToolCallsJSON = &toolCalls.String
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}
