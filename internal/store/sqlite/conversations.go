package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/chat"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

const conversationColumns = `id, match_id, user_low, user_high, unread_low, unread_high, last_message_at, created_at`

func scanConversation(row rowScanner) (*chat.Conversation, error) {
	var (
		c       chat.Conversation
		last    sql.NullInt64
		created int64
	)
	if err := row.Scan(&c.ID, &c.MatchID, &c.Pair.Low, &c.Pair.High, &c.UnreadLow, &c.UnreadHigh,
		&last, &created); err != nil {
		return nil, err
	}
	c.LastMessageAt = fromNullMillis(last)
	c.CreatedAt = fromMillis(created)
	return &c, nil
}

func loadConversation(ctx context.Context, q querier, where string, args ...any) (*chat.Conversation, error) {
	c, err := scanConversation(q.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, matching.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return c, nil
}

// EnsureConversation creates c unless its match already has a conversation.
func (s *Store) EnsureConversation(ctx context.Context, c *chat.Conversation) (*chat.Conversation, bool, error) {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES (?, ?, ?, ?, 0, 0, NULL, ?)`,
		c.ID, c.MatchID, c.Pair.Low, c.Pair.High, toMillis(c.CreatedAt))
	created := true
	if err != nil {
		if !isUniqueViolation(err) {
			return nil, false, fmt.Errorf("insert conversation: %w", err)
		}
		created = false
	}
	stored, err := loadConversation(ctx, s.sqlDB, "match_id = ?", c.MatchID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	return loadConversation(ctx, s.sqlDB, "id = ?", id)
}

// GetConversationByMatch returns the conversation a match unlocked.
func (s *Store) GetConversationByMatch(ctx context.Context, matchID string) (*chat.Conversation, error) {
	return loadConversation(ctx, s.sqlDB, "match_id = ?", matchID)
}

// AppendMessage stores msg and bumps the recipient's unread counter.
func (s *Store) AppendMessage(ctx context.Context, msg *chat.Message) (*chat.Message, error) {
	out := *msg
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE conversations
			SET last_message_at = ?,
			    unread_low  = unread_low  + CASE WHEN user_high = ? THEN 1 ELSE 0 END,
			    unread_high = unread_high + CASE WHEN user_low  = ? THEN 1 ELSE 0 END
			WHERE id = ? AND (user_low = ? OR user_high = ?)`,
			toMillis(msg.CreatedAt), msg.SenderID, msg.SenderID, msg.ConversationID, msg.SenderID, msg.SenderID)
		if err != nil {
			return fmt.Errorf("bump conversation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return matching.ErrNotFound
		}
		res, err = tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, sender_id, body, created_at) VALUES (?, ?, ?, ?)`,
			msg.ConversationID, msg.SenderID, msg.Body, toMillis(msg.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		out.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead zeroes userID's unread counter.
func (s *Store) MarkRead(ctx context.Context, conversationID, userID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `
		UPDATE conversations
		SET unread_low  = CASE WHEN user_low  = ? THEN 0 ELSE unread_low END,
		    unread_high = CASE WHEN user_high = ? THEN 0 ELSE unread_high END
		WHERE id = ? AND (user_low = ? OR user_high = ?)`,
		userID, userID, conversationID, userID, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return matching.ErrNotFound
	}
	return nil
}

// ListConversations returns the user's conversations, latest activity first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]*chat.Conversation, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE user_low = ? OR user_high = ?
		ORDER BY COALESCE(last_message_at, created_at) DESC, id`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()
	var out []*chat.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListMessages returns up to limit messages older than beforeID, newest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string, beforeID int64, limit int) ([]*chat.Message, error) {
	query := `SELECT id, conversation_id, sender_id, body, deleted, created_at FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if beforeID > 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []*chat.Message
	for rows.Next() {
		var (
			m       chat.Message
			deleted int
			at      int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &deleted, &at); err != nil {
			return nil, err
		}
		m.CreatedAt = fromMillis(at)
		if deleted == 1 {
			m.Deleted, m.Body = true, ""
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// DeleteMessage marks a message of senderID as deleted. Messages of other
// senders read as not found.
func (s *Store) DeleteMessage(ctx context.Context, conversationID string, messageID int64, senderID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `
		UPDATE messages SET deleted = 1
		WHERE id = ? AND conversation_id = ? AND sender_id = ?`,
		messageID, conversationID, senderID)
	if err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return matching.ErrNotFound
	}
	return nil
}
