// Package friends handles friend requests between users.
package friends

import (
	"context"
	"fmt"

	"github.com/pliu/engihub/internal/apperr"
	"github.com/pliu/engihub/internal/models"
	"github.com/pliu/engihub/internal/store"
	"go.uber.org/zap"
)

// Notifier persists and pushes a notification.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

type Service struct {
	store    store.Store
	notifier Notifier
	log      *zap.Logger
}

func NewService(st store.Store, notifier Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, notifier: notifier, log: log.Named("friends")}
}

// SendRequest asks toID to become fromID's friend. A pair can have only one
// request, in either direction.
func (s *Service) SendRequest(ctx context.Context, fromID, toID string) (*models.FriendRequest, error) {
	if fromID == toID {
		return nil, apperr.InvalidInput("cannot befriend yourself")
	}

	var from *models.User
	req := &models.FriendRequest{FromID: fromID, ToID: toID, Status: models.FriendRequestPending}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if from, err = tx.GetUser(ctx, fromID); err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, toID); err != nil {
			return err
		}
		existing, err := tx.FindFriendRequest(ctx, fromID, toID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == models.FriendRequestAccepted {
				return apperr.Conflict("already friends")
			}
			return apperr.Conflict("a friend request is already pending")
		}
		return tx.CreateFriendRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, &models.Notification{
		RecipientID: toID,
		SenderID:    fromID,
		Type:        models.NotifyFriendRequest,
		Title:       "Friend request",
		Message:     fmt.Sprintf("%s wants to be your friend", from.Username),
		Link:        "/friends",
	})
	return req, nil
}

// Accept completes a pending request addressed to userID.
func (s *Service) Accept(ctx context.Context, userID, requestID string) error {
	var me *models.User
	var req *models.FriendRequest
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if req, err = tx.GetFriendRequest(ctx, requestID); err != nil {
			return err
		}
		if req.ToID != userID {
			return apperr.Unauthorized("friend request %s is not addressed to you", requestID)
		}
		if err := tx.AcceptFriendRequest(ctx, requestID); err != nil {
			return err
		}
		if err := tx.AddFriendship(ctx, req.FromID, req.ToID); err != nil {
			return err
		}
		me, err = tx.GetUser(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.notify(ctx, &models.Notification{
		RecipientID: req.FromID,
		SenderID:    userID,
		Type:        models.NotifyFriendAccept,
		Title:       "Friend request accepted",
		Message:     fmt.Sprintf("%s accepted your friend request", me.Username),
		Link:        "/friends",
	})
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]models.User, error) {
	return s.store.ListFriends(ctx, userID)
}

func (s *Service) notify(ctx context.Context, n *models.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Error("notification failed", zap.String("recipient", n.RecipientID), zap.Error(err))
	}
}
