package postgres

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
		c    chat.Conversation
		last sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.MatchID, &c.Pair.Low, &c.Pair.High, &c.UnreadLow, &c.UnreadHigh,
		&last, &c.CreatedAt); err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time.UTC()
		c.LastMessageAt = &t
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) loadConversation(ctx context.Context, query string, args ...any) (*chat.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx, query, args...))
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
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES ($1, $2, $3, $4, 0, 0, NULL, $5)
		ON CONFLICT DO NOTHING`,
		c.ID, c.MatchID, c.Pair.Low, c.Pair.High, c.CreatedAt.UTC())
	if err != nil {
		return nil, false, fmt.Errorf("insert conversation: %w", err)
	}
	n, _ := res.RowsAffected()
	stored, err := s.GetConversationByMatch(ctx, c.MatchID)
	if err != nil {
		return nil, false, err
	}
	return stored, n == 1, nil
}

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	return s.loadConversation(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
}

// GetConversationByMatch returns the conversation a match unlocked.
func (s *Store) GetConversationByMatch(ctx context.Context, matchID string) (*chat.Conversation, error) {
	return s.loadConversation(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE match_id = $1`, matchID)
}

// AppendMessage stores msg and bumps the recipient's unread counter.
func (s *Store) AppendMessage(ctx context.Context, msg *chat.Message) (*chat.Message, error) {
	out := *msg
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE conversations
			SET last_message_at = $1,
			    unread_low  = unread_low  + CASE WHEN user_high = $2 THEN 1 ELSE 0 END,
			    unread_high = unread_high + CASE WHEN user_low  = $2 THEN 1 ELSE 0 END
			WHERE id = $3 AND (user_low = $2 OR user_high = $2)`,
			msg.CreatedAt.UTC(), msg.SenderID, msg.ConversationID)
		if err != nil {
			return fmt.Errorf("bump conversation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return matching.ErrNotFound
		}
		return tx.QueryRowContext(ctx, `
			INSERT INTO messages (conversation_id, sender_id, body, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			msg.ConversationID, msg.SenderID, msg.Body, msg.CreatedAt.UTC()).Scan(&out.ID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead zeroes userID's unread counter.
func (s *Store) MarkRead(ctx context.Context, conversationID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET unread_low  = CASE WHEN user_low  = $2 THEN 0 ELSE unread_low END,
		    unread_high = CASE WHEN user_high = $2 THEN 0 ELSE unread_high END
		WHERE id = $1 AND (user_low = $2 OR user_high = $2)`,
		conversationID, userID)
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE user_low = $1 OR user_high = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC, id`, userID)
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, body, deleted, created_at FROM messages
		WHERE conversation_id = $1 AND ($2::bigint = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3`, conversationID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []*chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.Deleted, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		if m.Deleted {
			m.Body = ""
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// DeleteMessage marks a message of senderID as deleted. Messages of other
// senders read as not found.
func (s *Store) DeleteMessage(ctx context.Context, conversationID string, messageID int64, senderID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET deleted = TRUE
		WHERE id = $1 AND conversation_id = $2 AND sender_id = $3`,
		messageID, conversationID, senderID)
	if err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return matching.ErrNotFound
	}
	return nil
}
