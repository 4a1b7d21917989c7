package friends

import (
	"context"
	"testing"

	"github.com/pliu/engihub/internal/apperr"
	"github.com/pliu/engihub/internal/dispatch"
	"github.com/pliu/engihub/internal/dispatch/dispatchtest"
	"github.com/pliu/engihub/internal/models"
	"github.com/pliu/engihub/internal/notify"
	"github.com/pliu/engihub/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRequestFlow(t *testing.T) {
	st := storetest.New(t)
	rec := &dispatchtest.Recorder{}
	svc := NewService(st, notify.NewService(st, rec, nil), nil)
	ctx := context.Background()

	alice := storetest.User(t, st, "alice", 0)
	bob := storetest.User(t, st, "bob", 0)

	req, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	calls := rec.To(bob.ID, dispatch.EventNewNotification)
	require.Len(t, calls, 1)
	n := calls[0].Payload.(*models.Notification)
	assert.Equal(t, models.NotifyFriendRequest, n.Type)
	assert.Equal(t, "alice wants to be your friend", n.Message)

	assert.ErrorIs(t, svc.Accept(ctx, alice.ID, req.ID), apperr.ErrUnauthorized)
	require.NoError(t, svc.Accept(ctx, bob.ID, req.ID))
	assert.ErrorIs(t, svc.Accept(ctx, bob.ID, req.ID), apperr.ErrInvalidState)

	accepts := rec.To(alice.ID, dispatch.EventNewNotification)
	require.Len(t, accepts, 1)
	assert.Equal(t, models.NotifyFriendAccept, accepts[0].Payload.(*models.Notification).Type)

	for _, pair := range [][2]*models.User{{alice, bob}, {bob, alice}} {
		list, err := svc.List(ctx, pair[0].ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, pair[1].ID, list[0].ID)
	}
}

func TestSendRequestRules(t *testing.T) {
	st := storetest.New(t)
	svc := NewService(st, notify.NewService(st, &dispatchtest.Recorder{}, nil), nil)
	ctx := context.Background()

	alice := storetest.User(t, st, "alice", 0)
	bob := storetest.User(t, st, "bob", 0)

	_, err := svc.SendRequest(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = svc.SendRequest(ctx, alice.ID, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	req, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.SendRequest(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, svc.Accept(ctx, bob.ID, req.ID))
	_, err = svc.SendRequest(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	assert.ErrorIs(t, svc.Accept(ctx, bob.ID, "missing"), apperr.ErrNotFound)
}
