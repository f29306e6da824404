package chat

import (
	"context"
	"errors"
	"time"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

var (
	// ErrNotMatched is returned when a pair tries to talk without an active match.
	ErrNotMatched = errors.New("chat: pair is not matched")
	// ErrEmptyMessage is returned for a blank message body.
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrMessageTooLong is returned for a body over MaxMessageLength characters.
	ErrMessageTooLong = errors.New("chat: message too long")
)

// Conversation is the one-to-one thread a match unlocks. Unread counters are
// kept per participant on the record itself.
type Conversation struct {
	ID            string        `json:"id"`
	MatchID       string        `json:"match_id"`
	Pair          matching.Pair `json:"pair"`
	UnreadLow     int           `json:"-"`
	UnreadHigh    int           `json:"-"`
	LastMessageAt *time.Time    `json:"last_message_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// UnreadFor returns how many messages user hasn't read yet.
func (c *Conversation) UnreadFor(user string) int {
	switch user {
	case c.Pair.Low:
		return c.UnreadLow
	case c.Pair.High:
		return c.UnreadHigh
	}
	return 0
}

// Message is a single chat line.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	Deleted        bool      `json:"deleted,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists conversations and messages. Not-found lookups return
// matching.ErrNotFound.
type Store interface {
	// EnsureConversation creates c unless the match already has one, and
	// returns the stored conversation plus whether it was created.
	EnsureConversation(ctx context.Context, c *Conversation) (*Conversation, bool, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationByMatch(ctx context.Context, matchID string) (*Conversation, error)

	// AppendMessage inserts msg and bumps the other participant's unread
	// counter and the conversation's last message time in one transaction.
	AppendMessage(ctx context.Context, msg *Message) (*Message, error)
	// MarkRead zeroes user's unread counter.
	MarkRead(ctx context.Context, conversationID, userID string) error

	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)
	// ListMessages returns up to limit messages older than beforeID (0 = newest),
	// newest first. Deleted messages come back flagged and without a body.
	ListMessages(ctx context.Context, conversationID string, beforeID int64, limit int) ([]*Message, error)
	// DeleteMessage flags a message as deleted. It returns
	// matching.ErrNotFound unless senderID sent it in that conversation.
	DeleteMessage(ctx context.Context, conversationID string, messageID int64, senderID string) error
}
