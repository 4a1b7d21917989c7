package sqlstore

import (
	"context"
	"fmt"

	"github.com/pliu/engihub/internal/models"
)

const conversationColumns = "id, participant_a, participant_b, last_message, last_message_at, created_at"

func scanConversation(row interface{ Scan(...any) error }, c *models.Conversation) error {
	return row.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessage, &c.LastMessageAt, &c.CreatedAt)
}

// FindOrCreateConversation returns the single conversation for the unordered
// pair (a, b), creating it on first use.
func (c *conn) FindOrCreateConversation(ctx context.Context, a, b string) (*models.Conversation, error) {
	a, b = orderedPair(a, b)
	t := now()
	_, err := c.exec(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES (?, ?, ?, '', ?, ?)
		ON CONFLICT (participant_a, participant_b) DO NOTHING`,
		newID(), a, b, t, t)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	var conv models.Conversation
	err = scanConversation(c.queryRow(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE participant_a = ? AND participant_b = ?", a, b), &conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *conn) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := scanConversation(c.queryRow(ctx, "SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id), &conv)
	if err != nil {
		return nil, notFound(err, "conversation", id)
	}
	return &conv, nil
}

func (s *SQLStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = ? OR participant_b = ?
		ORDER BY last_message_at DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := scanConversation(rows, &conv); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// SaveMessage inserts msg and moves the conversation summary to it.
func (c *conn) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	if msg.Type == "" {
		msg.Type = models.MessageText
	}

	_, err := c.exec(ctx, "INSERT INTO messages (id, conversation_id, sender_id, content, type, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Type, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = c.exec(ctx, "UPDATE conversations SET last_message = ?, last_message_at = ? WHERE id = ?",
		preview(msg), msg.CreatedAt, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("update conversation summary: %w", err)
	}
	return nil
}

func preview(msg *models.Message) string {
	switch msg.Type {
	case models.MessageImage:
		return "[image]"
	case models.MessageDocument:
		return "[document]"
	}
	if r := []rune(msg.Content); len(r) > 100 {
		return string(r[:100])
	}
	return msg.Content
}

// ListMessages returns the history of a conversation as seen by viewerID:
// messages the viewer soft-deleted are left out.
func (s *SQLStore) ListMessages(ctx context.Context, conversationID, viewerID string) ([]models.Message, error) {
	rows, err := s.query(ctx, `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.type, m.created_at
		FROM messages m
		WHERE m.conversation_id = ?
		AND NOT EXISTS (
			SELECT 1 FROM message_deletions d WHERE d.message_id = m.id AND d.user_id = ?
		)
		ORDER BY m.created_at ASC, m.id ASC`, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// HideMessages soft-deletes every current message of the conversation for
// viewerID only.
func (s *SQLStore) HideMessages(ctx context.Context, conversationID, viewerID string) (int64, error) {
	return s.execAffected(ctx, `
		INSERT INTO message_deletions (message_id, user_id)
		SELECT id, CAST(? AS TEXT) FROM messages WHERE conversation_id = ?
		ON CONFLICT (message_id, user_id) DO NOTHING`, viewerID, conversationID)
}

// ClearConversation hard-deletes every message of the conversation and
// resets its summary.
func (c *conn) ClearConversation(ctx context.Context, conversationID string) (int64, error) {
	n, err := c.execAffected(ctx, "DELETE FROM messages WHERE conversation_id = ?", conversationID)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	_, err = c.exec(ctx, "UPDATE conversations SET last_message = '' WHERE id = ?", conversationID)
	if err != nil {
		return 0, fmt.Errorf("reset conversation summary: %w", err)
	}
	return n, nil
}
