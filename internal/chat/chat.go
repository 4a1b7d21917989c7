// Package chat implements one-to-one conversations between users.
package chat

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pliu/engihub/internal/apperr"
	"github.com/pliu/engihub/internal/dispatch"
	"github.com/pliu/engihub/internal/models"
	"github.com/pliu/engihub/internal/store"
	"go.uber.org/zap"
)

// EventSendMessage is the client frame that sends a chat message.
const EventSendMessage = "sendMessage"

// ClearMode selects who loses the history when a chat is cleared.
type ClearMode string

const (
	ClearForMe       ClearMode = "for_me"
	ClearForEveryone ClearMode = "for_everyone"
)

type SendInput struct {
	RecipientID string             `json:"recipientId"`
	Content     string             `json:"content"`
	Type        models.MessageType `json:"type"`
}

// ClearedEvent is pushed to the other participant after a clear for everyone.
type ClearedEvent struct {
	ConversationID string `json:"conversationId"`
}

type Service struct {
	store      store.Store
	dispatcher dispatch.Dispatcher
	log        *zap.Logger
}

func NewService(st store.Store, d dispatch.Dispatcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, dispatcher: d, log: log.Named("chat")}
}

// Send stores a message from senderID, creating the conversation on first
// contact, and pushes it to the recipient.
func (s *Service) Send(ctx context.Context, senderID string, in SendInput) (*models.Message, error) {
	if in.RecipientID == "" {
		return nil, apperr.InvalidInput("recipientId is required")
	}
	if in.RecipientID == senderID {
		return nil, apperr.InvalidInput("cannot message yourself")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.InvalidInput("content is required")
	}
	if in.Type == "" {
		in.Type = models.MessageText
	}
	if !in.Type.Valid() {
		return nil, apperr.InvalidInput("unknown message type %q", in.Type)
	}

	msg := &models.Message{SenderID: senderID, Content: in.Content, Type: in.Type}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, in.RecipientID); err != nil {
			return err
		}
		conv, err := tx.FindOrCreateConversation(ctx, senderID, in.RecipientID)
		if err != nil {
			return err
		}
		msg.ConversationID = conv.ID
		return tx.SaveMessage(ctx, msg)
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(in.RecipientID, dispatch.EventNewMessage, msg)
	return msg, nil
}

func (s *Service) Conversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// History returns the messages of a conversation that userID has not hidden.
func (s *Service) History(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	if _, err := s.participant(ctx, s.store, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID, userID)
}

// Clear removes the history of a conversation. ClearForMe hides it from
// userID only; ClearForEveryone deletes it and tells the other participant.
func (s *Service) Clear(ctx context.Context, userID, conversationID string, mode ClearMode) (int64, error) {
	switch mode {
	case ClearForMe:
		if _, err := s.participant(ctx, s.store, userID, conversationID); err != nil {
			return 0, err
		}
		return s.store.HideMessages(ctx, conversationID, userID)

	case ClearForEveryone:
		var conv *models.Conversation
		var n int64
		err := s.store.InTx(ctx, func(tx store.Tx) error {
			var err error
			conv, err = s.participant(ctx, tx, userID, conversationID)
			if err != nil {
				return err
			}
			n, err = tx.ClearConversation(ctx, conversationID)
			return err
		})
		if err != nil {
			return 0, err
		}
		s.log.Info("conversation cleared", zap.String("conversation", conversationID), zap.String("by", userID), zap.Int64("messages", n))
		s.dispatcher.Dispatch(conv.Other(userID), dispatch.EventChatCleared, ClearedEvent{ConversationID: conversationID})
		return n, nil

	default:
		return 0, apperr.InvalidInput("unknown clear mode %q", mode)
	}
}

// HandleFrame serves frames sent over a live connection.
func (s *Service) HandleFrame(ctx context.Context, userID string, event string, data json.RawMessage) error {
	switch event {
	case EventSendMessage:
		var in SendInput
		if err := json.Unmarshal(data, &in); err != nil {
			return apperr.InvalidInput("malformed %s payload", event)
		}
		_, err := s.Send(ctx, userID, in)
		return err
	default:
		return apperr.InvalidInput("unknown event %q", event)
	}
}

func (s *Service) participant(ctx context.Context, tx store.Tx, userID, conversationID string) (*models.Conversation, error) {
	conv, err := tx.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.Unauthorized("not a participant of conversation %s", conversationID)
	}
	return conv, nil
}
