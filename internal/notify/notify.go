// Package notify persists notifications and pushes them to online recipients.
package notify

import (
	"context"
	"fmt"

	"github.com/pliu/engihub/internal/dispatch"
	"github.com/pliu/engihub/internal/models"
	"github.com/pliu/engihub/internal/store"
	"go.uber.org/zap"
)

type Service struct {
	store      store.Store
	dispatcher dispatch.Dispatcher
	log        *zap.Logger
}

func NewService(st store.Store, d dispatch.Dispatcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, dispatcher: d, log: log.Named("notify")}
}

// Notify stores n and then attempts a live push to its recipient. The push is
// skipped if storing fails.
func (s *Service) Notify(ctx context.Context, n *models.Notification) error {
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	s.dispatcher.Dispatch(n.RecipientID, dispatch.EventNewNotification, n)
	return nil
}

// BroadcastTaskCreated writes a new_task notification for every user except
// the owner and alerts everyone online.
//
// This touches every user row on each new task. It is fine for a campus
// sized user base; a larger one needs batched or subscription based fan-out.
func (s *Service) BroadcastTaskCreated(ctx context.Context, task *models.Task) error {
	var count int
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		ids, err := tx.ListUserIDsExcept(ctx, task.OwnerID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			n := &models.Notification{
				RecipientID: id,
				SenderID:    task.OwnerID,
				Type:        models.NotifyNewTask,
				Title:       "New task posted",
				Message:     fmt.Sprintf("%s (%d coins)", task.Title, task.Bounty),
				Link:        taskLink(task.ID),
			}
			if err := tx.CreateNotification(ctx, n); err != nil {
				return err
			}
		}
		count = len(ids)
		return nil
	})
	if err != nil {
		return fmt.Errorf("fan out task %s: %w", task.ID, err)
	}

	s.log.Debug("task fan-out", zap.String("task", task.ID), zap.Int("recipients", count))
	s.dispatcher.Broadcast(dispatch.EventNewTaskAlert, task)
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.store.ListNotifications(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.store.MarkNotificationRead(ctx, id, userID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteNotification(ctx, id, userID)
}

func (s *Service) DeleteAll(ctx context.Context, userID string) (int64, error) {
	return s.store.DeleteAllNotifications(ctx, userID)
}

func taskLink(taskID string) string {
	return "/tasks/" + taskID
}
