package sqlstore

import (
	"context"
	"fmt"

	"github.com/pliu/engihub/internal/apperr"
	"github.com/pliu/engihub/internal/models"
)

const notificationColumns = "id, recipient_id, sender_id, type, title, message, link, is_read, created_at"

func (c *conn) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	_, err := c.exec(ctx, "INSERT INTO notifications ("+notificationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		n.ID, n.RecipientID, n.SenderID, n.Type, n.Title, n.Message, n.Link, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *SQLStore) ListNotifications(ctx context.Context, recipientID string) ([]models.Notification, error) {
	rows, err := s.query(ctx, "SELECT "+notificationColumns+" FROM notifications WHERE recipient_id = ? ORDER BY created_at DESC, id DESC", recipientID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.Type, &n.Title, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// ownNotification reports NOT_FOUND for a missing id and UNAUTHORIZED when
// the notification belongs to someone else.
func (s *SQLStore) ownNotification(ctx context.Context, id, recipientID string) error {
	var owner string
	err := s.queryRow(ctx, "SELECT recipient_id FROM notifications WHERE id = ?", id).Scan(&owner)
	if err != nil {
		return notFound(err, "notification", id)
	}
	if owner != recipientID {
		return apperr.Unauthorized("notification %s belongs to another user", id)
	}
	return nil
}

func (s *SQLStore) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	if err := s.ownNotification(ctx, id, recipientID); err != nil {
		return err
	}
	_, err := s.exec(ctx, "UPDATE notifications SET is_read = ? WHERE id = ? AND recipient_id = ?", true, id, recipientID)
	return err
}

func (s *SQLStore) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	return s.execAffected(ctx, "UPDATE notifications SET is_read = ? WHERE recipient_id = ? AND is_read = ?", true, recipientID, false)
}

func (s *SQLStore) DeleteNotification(ctx context.Context, id, recipientID string) error {
	if err := s.ownNotification(ctx, id, recipientID); err != nil {
		return err
	}
	_, err := s.exec(ctx, "DELETE FROM notifications WHERE id = ? AND recipient_id = ?", id, recipientID)
	return err
}

func (s *SQLStore) DeleteAllNotifications(ctx context.Context, recipientID string) (int64, error) {
	return s.execAffected(ctx, "DELETE FROM notifications WHERE recipient_id = ?", recipientID)
}
