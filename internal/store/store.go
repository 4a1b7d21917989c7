package store

import (
	"context"
	"time"

	"github.com/pliu/engihub/internal/models"
)

// Tx holds the operations that may run inside a transaction. The top-level
// Store implements it too, in which case each call is its own statement.
//
// Conditional writes (AdjustBalance, AssignTask, CompleteTask, UpdateOpenTask,
// DeleteOpenTask, SetOfferStatus, AcceptFriendRequest) only apply when the row
// is still in the expected state and report apperr.ErrInvalidState,
// apperr.ErrConflict or apperr.ErrInsufficientFunds otherwise, so concurrent
// callers cannot both observe the same precondition. Inside InTx, GetTask
// also locks the task row until the transaction ends.
type Tx interface {
	// User operations
	GetUser(ctx context.Context, id string) (*models.User, error)
	AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error)
	ListUserIDsExcept(ctx context.Context, userID string) ([]string, error)

	// Task operations
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateOpenTask(ctx context.Context, id, title, description string, heldBounty, bounty int64) error
	AssignTask(ctx context.Context, id, assignee string) error
	SetTaskConversation(ctx context.Context, id, conversationID string) error
	CompleteTask(ctx context.Context, id string, at time.Time) error
	DeleteOpenTask(ctx context.Context, id string, heldBounty int64) error

	// Offer operations
	CreateOffer(ctx context.Context, offer *models.Offer) error
	GetOffer(ctx context.Context, id string) (*models.Offer, error)
	ListOffers(ctx context.Context, taskID string) ([]models.Offer, error)
	HasPendingOffer(ctx context.Context, taskID, proposerID string) (bool, error)
	SetOfferStatus(ctx context.Context, id string, from, to models.OfferStatus) error
	RejectOtherOffers(ctx context.Context, taskID, acceptedID string) (int64, error)

	// Conversation operations
	FindOrCreateConversation(ctx context.Context, a, b string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	SaveMessage(ctx context.Context, msg *models.Message) error
	ClearConversation(ctx context.Context, conversationID string) (int64, error)

	// Notification operations
	CreateNotification(ctx context.Context, n *models.Notification) error

	// Friend operations
	CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error
	GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error)
	FindFriendRequest(ctx context.Context, a, b string) (*models.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, id string) error
	AddFriendship(ctx context.Context, a, b string) error
}

type Store interface {
	Tx

	// InTx runs fn inside one transaction. Any error from fn rolls back every
	// write fn made through its Tx argument.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SearchUsers(ctx context.Context, query string) ([]models.User, error)

	// Task operations
	ListTasks(ctx context.Context, status models.TaskStatus) ([]models.Task, error)
	ListTasksByOwner(ctx context.Context, ownerID string) ([]models.Task, error)

	// Conversation operations
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID, viewerID string) ([]models.Message, error)
	HideMessages(ctx context.Context, conversationID, viewerID string) (int64, error)

	// Notification operations
	ListNotifications(ctx context.Context, recipientID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error)
	DeleteNotification(ctx context.Context, id, recipientID string) error
	DeleteAllNotifications(ctx context.Context, recipientID string) (int64, error)

	// Friend operations
	ListFriends(ctx context.Context, userID string) ([]models.User, error)
}
