// Package chat is the messaging collaborator a match unlocks: one
// conversation per matched pair, usable only while the match is active.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

// MaxMessageLength caps a message body, in characters.
const MaxMessageLength = 2000

// MatchReader is the read access chat needs to the match state.
// matching.Engine satisfies it.
type MatchReader interface {
	Get(ctx context.Context, requester, matchID string) (*matching.Match, error)
}

// Notifier pushes a payload to a connected user. realtime.Hub satisfies it.
type Notifier interface {
	SendToUser(userID string, payload any) int
}

// Summary is a conversation as listed for one participant.
type Summary struct {
	*Conversation
	PeerID string `json:"peer_id"`
	Unread int    `json:"unread"`
}

// MessageEvent is pushed to the recipient of a new message.
type MessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

// DeletedEvent is pushed to the peer when a message is deleted.
type DeletedEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	MessageID      int64  `json:"message_id"`
}

// TypingEvent is pushed to the peer while a participant types.
type TypingEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// Service runs the chat rules on top of a Store.
type Service struct {
	store    Store
	matches  MatchReader
	notifier Notifier
	log      *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires a chat service. notifier may be nil.
func NewService(store Store, matches MatchReader, notifier Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		matches:  matches,
		notifier: notifier,
		log:      log.Named("chat"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// OnMatchFormed opens the conversation for a newly formed match. The match is
// re-read first so a stale or forged event opens nothing.
func (s *Service) OnMatchFormed(ctx context.Context, evt matching.MatchFormed) {
	c, err := s.open(ctx, evt.Pair.Low, evt.MatchID)
	if err != nil {
		s.log.Warn("open conversation", zap.String("match_id", evt.MatchID), zap.Error(err))
		return
	}
	s.log.Debug("conversation ready", zap.String("conversation_id", c.ID), zap.String("match_id", evt.MatchID))
}

// Open returns the conversation of matchID, creating it if the event that
// should have opened it was missed.
func (s *Service) Open(ctx context.Context, user, matchID string) (*Conversation, error) {
	return s.open(ctx, user, matchID)
}

func (s *Service) open(ctx context.Context, user, matchID string) (*Conversation, error) {
	m, err := s.activeMatch(ctx, user, matchID)
	if err != nil {
		return nil, err
	}
	c, _, err := s.store.EnsureConversation(ctx, &Conversation{
		ID:        s.newID(),
		MatchID:   m.ID,
		Pair:      m.Pair,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}
	return c, nil
}

// activeMatch returns the match if user takes part in it and it is matched
// and active.
func (s *Service) activeMatch(ctx context.Context, user, matchID string) (*matching.Match, error) {
	m, err := s.matches.Get(ctx, user, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != matching.StatusMatched || !m.IsActive {
		return nil, ErrNotMatched
	}
	return m, nil
}

// participantConversation loads a conversation and hides it from outsiders.
func (s *Service) participantConversation(ctx context.Context, user, conversationID string) (*Conversation, error) {
	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.Pair.Has(user) {
		return nil, matching.ErrNotFound
	}
	return c, nil
}

// Send appends a message from sender. The match behind the conversation must
// still be active.
func (s *Service) Send(ctx context.Context, sender, conversationID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	c, err := s.participantConversation(ctx, sender, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.activeMatch(ctx, sender, c.MatchID); err != nil {
		return nil, err
	}

	msg, err := s.store.AppendMessage(ctx, &Message{
		ConversationID: c.ID,
		SenderID:       sender,
		Body:           body,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if s.notifier != nil {
		s.notifier.SendToUser(c.Pair.Other(sender), MessageEvent{Type: "message", Message: msg})
	}
	return msg, nil
}

// MarkRead clears user's unread counter on the conversation.
func (s *Service) MarkRead(ctx context.Context, user, conversationID string) error {
	if _, err := s.participantConversation(ctx, user, conversationID); err != nil {
		return err
	}
	return s.store.MarkRead(ctx, conversationID, user)
}

// ListConversations returns user's conversations, latest activity first.
func (s *Service) ListConversations(ctx context.Context, user string) ([]Summary, error) {
	convs, err := s.store.ListConversations(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(convs))
	for _, c := range convs {
		out = append(out, Summary{Conversation: c, PeerID: c.Pair.Other(user), Unread: c.UnreadFor(user)})
	}
	return out, nil
}

// Messages returns a page of a conversation's history, newest first.
func (s *Service) Messages(ctx context.Context, user, conversationID string, beforeID int64, limit int) ([]*Message, error) {
	if _, err := s.participantConversation(ctx, user, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	msgs, err := s.store.ListMessages(ctx, conversationID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return msgs, nil
}

// DeleteMessage soft-deletes one of sender's own messages and tells the peer.
func (s *Service) DeleteMessage(ctx context.Context, sender, conversationID string, messageID int64) error {
	c, err := s.participantConversation(ctx, sender, conversationID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMessage(ctx, c.ID, messageID, sender); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.SendToUser(c.Pair.Other(sender), DeletedEvent{
			Type: "message_deleted", ConversationID: c.ID, MessageID: messageID,
		})
	}
	return nil
}

// Typing relays user's typing state to the peer. Nothing is stored.
func (s *Service) Typing(ctx context.Context, user, conversationID string, typing bool) error {
	c, err := s.participantConversation(ctx, user, conversationID)
	if err != nil {
		return err
	}
	if _, err := s.activeMatch(ctx, user, c.MatchID); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.SendToUser(c.Pair.Other(user), TypingEvent{
			Type: "typing", ConversationID: c.ID, UserID: user, IsTyping: typing,
		})
	}
	return nil
}
