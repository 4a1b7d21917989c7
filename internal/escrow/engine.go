// Package escrow runs the task bounty lifecycle.
//
// A bounty leaves the owner's balance when the task is created and is held
// until the task is either completed (paid to the assignee) or deleted while
// still open (refunded to the owner). The task state machine makes those two
// exits mutually exclusive:
//
//	open -> in_progress -> completed
//	open -> deleted (refund)
//
// Every operation that touches more than one row runs in a single store
// transaction. Notifications are written after the transaction commits.
package escrow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pliu/engihub/internal/apperr"
	"github.com/pliu/engihub/internal/models"
	"github.com/pliu/engihub/internal/store"
	"go.uber.org/zap"
)

// Notifier receives the events the engine produces for other users.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
	BroadcastTaskCreated(ctx context.Context, task *models.Task) error
}

type Engine struct {
	store    store.Store
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewEngine(st store.Store, notifier Notifier, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    st,
		notifier: notifier,
		log:      log.Named("escrow"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Bounty      int64  `json:"bounty"`
}

// UpdateTaskInput changes an open task. A nil field is left as is.
type UpdateTaskInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Bounty      *int64  `json:"bounty"`
}

// CreateTask debits the bounty from the owner and opens the task.
func (e *Engine) CreateTask(ctx context.Context, ownerID string, in CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.InvalidInput("title is required")
	}
	if in.Bounty <= 0 {
		return nil, apperr.InvalidInput("bounty must be positive")
	}

	task := &models.Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: in.Description,
		Bounty:      in.Bounty,
		Status:      models.TaskOpen,
	}
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.AdjustBalance(ctx, ownerID, -in.Bounty); err != nil {
			return err
		}
		return tx.CreateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("task created", zap.String("task", task.ID), zap.String("owner", ownerID), zap.Int64("bounty", task.Bounty))
	if err := e.notifier.BroadcastTaskCreated(ctx, task); err != nil {
		e.log.Error("task fan-out failed", zap.String("task", task.ID), zap.Error(err))
	}
	return task, nil
}

// SubmitOffer records a pending offer from proposerID on an open task.
func (e *Engine) SubmitOffer(ctx context.Context, taskID, proposerID, message string) (*models.Offer, error) {
	var task *models.Task
	offer := &models.Offer{
		TaskID:     taskID,
		ProposerID: proposerID,
		Message:    message,
		Status:     models.OfferPending,
	}
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		task, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task.Status != models.TaskOpen {
			return apperr.InvalidState("task %s is %s", taskID, task.Status)
		}
		if task.OwnerID == proposerID {
			return apperr.Unauthorized("cannot make an offer on your own task")
		}
		pending, err := tx.HasPendingOffer(ctx, taskID, proposerID)
		if err != nil {
			return err
		}
		if pending {
			return apperr.Conflict("an offer on task %s is already pending", taskID)
		}
		return tx.CreateOffer(ctx, offer)
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, &models.Notification{
		RecipientID: task.OwnerID,
		SenderID:    proposerID,
		Type:        models.NotifyOfferReceived,
		Title:       "New offer",
		Message:     fmt.Sprintf("You received an offer on %q", task.Title),
		Link:        taskLink(task.ID),
	})
	return offer, nil
}

// RejectOffer turns down one pending offer. Only the task owner may do it.
func (e *Engine) RejectOffer(ctx context.Context, taskID, offerID, ownerID string) (*models.Offer, error) {
	var task *models.Task
	var offer *models.Offer
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		task, offer, err = loadOffer(ctx, tx, taskID, offerID, ownerID)
		if err != nil {
			return err
		}
		if err := tx.SetOfferStatus(ctx, offerID, models.OfferPending, models.OfferRejected); err != nil {
			return err
		}
		offer.Status = models.OfferRejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, &models.Notification{
		RecipientID: offer.ProposerID,
		SenderID:    ownerID,
		Type:        models.NotifyOfferRejected,
		Title:       "Offer declined",
		Message:     fmt.Sprintf("Your offer on %q was declined", task.Title),
		Link:        taskLink(task.ID),
	})
	return offer, nil
}

// AcceptOffer assigns the task to the offer's proposer, rejects every other
// pending offer and links the pair's conversation to the task, all in one
// transaction. Of two concurrent accepts on the same task exactly one
// succeeds; the other fails with INVALID_STATE.
func (e *Engine) AcceptOffer(ctx context.Context, taskID, offerID, ownerID string) (*models.Task, error) {
	var task *models.Task
	var offer *models.Offer
	var rejected []models.Offer
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		task, offer, err = loadOffer(ctx, tx, taskID, offerID, ownerID)
		if err != nil {
			return err
		}
		if task.Status != models.TaskOpen {
			return apperr.InvalidState("task %s is %s", taskID, task.Status)
		}
		if offer.Status != models.OfferPending {
			return apperr.InvalidState("offer %s is %s", offerID, offer.Status)
		}

		if err := tx.AssignTask(ctx, taskID, offer.ProposerID); err != nil {
			return err
		}
		if err := tx.SetOfferStatus(ctx, offerID, models.OfferPending, models.OfferAccepted); err != nil {
			return err
		}

		siblings, err := tx.ListOffers(ctx, taskID)
		if err != nil {
			return err
		}
		for _, o := range siblings {
			if o.ID != offerID && o.Status == models.OfferPending {
				rejected = append(rejected, o)
			}
		}
		if _, err := tx.RejectOtherOffers(ctx, taskID, offerID); err != nil {
			return err
		}

		conv, err := tx.FindOrCreateConversation(ctx, task.OwnerID, offer.ProposerID)
		if err != nil {
			return err
		}
		if err := tx.SetTaskConversation(ctx, taskID, conv.ID); err != nil {
			return err
		}

		task, err = tx.GetTask(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("offer accepted", zap.String("task", taskID), zap.String("offer", offerID),
		zap.String("assignee", offer.ProposerID), zap.Int("rejected", len(rejected)))
	e.notify(ctx, &models.Notification{
		RecipientID: offer.ProposerID,
		SenderID:    ownerID,
		Type:        models.NotifyOfferAccepted,
		Title:       "Offer accepted",
		Message:     fmt.Sprintf("Your offer on %q was accepted", task.Title),
		Link:        taskLink(task.ID),
	})
	for _, o := range rejected {
		e.notify(ctx, &models.Notification{
			RecipientID: o.ProposerID,
			SenderID:    ownerID,
			Type:        models.NotifyOfferRejected,
			Title:       "Offer declined",
			Message:     fmt.Sprintf("%q was assigned to someone else", task.Title),
			Link:        taskLink(task.ID),
		})
	}
	return task, nil
}

// CompleteTask pays the bounty to the assignee and closes the task.
func (e *Engine) CompleteTask(ctx context.Context, taskID, ownerID string) (*models.Task, error) {
	var task *models.Task
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		task, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task.OwnerID != ownerID {
			return apperr.Unauthorized("only the owner can complete task %s", taskID)
		}
		if task.Status != models.TaskInProgress {
			return apperr.InvalidState("task %s is %s", taskID, task.Status)
		}

		// The status change is conditional, so a second completion racing
		// this one fails here before any credit is committed.
		if err := tx.CompleteTask(ctx, taskID, e.now()); err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, task.AssignedTo, task.Bounty); err != nil {
			return err
		}

		task, err = tx.GetTask(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("task completed", zap.String("task", taskID), zap.String("assignee", task.AssignedTo), zap.Int64("bounty", task.Bounty))
	e.notify(ctx, &models.Notification{
		RecipientID: task.AssignedTo,
		SenderID:    ownerID,
		Type:        models.NotifyTaskCompleted,
		Title:       "Task completed",
		Message:     fmt.Sprintf("You earned %d coins for %q", task.Bounty, task.Title),
		Link:        taskLink(task.ID),
	})
	return task, nil
}

// DeleteTask refunds the bounty and removes an open task with its offers.
func (e *Engine) DeleteTask(ctx context.Context, taskID, ownerID string) error {
	var task *models.Task
	var pending []models.Offer
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		task, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task.OwnerID != ownerID {
			return apperr.Unauthorized("only the owner can delete task %s", taskID)
		}
		if task.Status != models.TaskOpen {
			return apperr.InvalidState("task %s is %s", taskID, task.Status)
		}

		offers, err := tx.ListOffers(ctx, taskID)
		if err != nil {
			return err
		}
		for _, o := range offers {
			if o.Status == models.OfferPending {
				pending = append(pending, o)
			}
		}

		if err := tx.DeleteOpenTask(ctx, taskID, task.Bounty); err != nil {
			return err
		}
		_, err = tx.AdjustBalance(ctx, ownerID, task.Bounty)
		return err
	})
	if err != nil {
		return err
	}

	e.log.Info("task deleted", zap.String("task", taskID), zap.Int64("refund", task.Bounty))
	for _, o := range pending {
		e.notify(ctx, &models.Notification{
			RecipientID: o.ProposerID,
			SenderID:    ownerID,
			Type:        models.NotifyTaskCancelled,
			Title:       "Task cancelled",
			Message:     fmt.Sprintf("%q was removed by its owner", task.Title),
		})
	}
	return nil
}

// UpdateTask edits an open task. A bounty change debits or credits the owner
// by the difference so the held amount always equals the bounty.
func (e *Engine) UpdateTask(ctx context.Context, taskID, ownerID string, in UpdateTaskInput) (*models.Task, error) {
	if in.Bounty != nil && *in.Bounty <= 0 {
		return nil, apperr.InvalidInput("bounty must be positive")
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, apperr.InvalidInput("title is required")
	}

	var task *models.Task
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		task, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task.OwnerID != ownerID {
			return apperr.Unauthorized("only the owner can edit task %s", taskID)
		}
		if task.Status != models.TaskOpen {
			return apperr.InvalidState("task %s is %s", taskID, task.Status)
		}

		title, description, bounty := task.Title, task.Description, task.Bounty
		if in.Title != nil {
			title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			description = *in.Description
		}
		if in.Bounty != nil {
			bounty = *in.Bounty
		}

		if diff := bounty - task.Bounty; diff != 0 {
			if _, err := tx.AdjustBalance(ctx, ownerID, -diff); err != nil {
				return err
			}
		}
		if err := tx.UpdateOpenTask(ctx, taskID, title, description, task.Bounty, bounty); err != nil {
			return err
		}

		task, err = tx.GetTask(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateBounty is UpdateTask restricted to the bounty.
func (e *Engine) UpdateBounty(ctx context.Context, taskID, ownerID string, bounty int64) (*models.Task, error) {
	return e.UpdateTask(ctx, taskID, ownerID, UpdateTaskInput{Bounty: &bounty})
}

// TaskDetail is a task together with its offers.
type TaskDetail struct {
	*models.Task
	Offers []models.Offer `json:"offers"`
}

func (e *Engine) GetTask(ctx context.Context, taskID string) (*TaskDetail, error) {
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	offers, err := e.store.ListOffers(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &TaskDetail{Task: task, Offers: offers}, nil
}

func (e *Engine) ListOpenTasks(ctx context.Context) ([]models.Task, error) {
	return e.store.ListTasks(ctx, models.TaskOpen)
}

func (e *Engine) ListOwnTasks(ctx context.Context, ownerID string) ([]models.Task, error) {
	return e.store.ListTasksByOwner(ctx, ownerID)
}

// loadOffer fetches a task and one of its offers and checks that ownerID owns
// the task.
func loadOffer(ctx context.Context, tx store.Tx, taskID, offerID, ownerID string) (*models.Task, *models.Offer, error) {
	task, err := tx.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	if task.OwnerID != ownerID {
		return nil, nil, apperr.Unauthorized("only the owner can answer offers on task %s", taskID)
	}
	offer, err := tx.GetOffer(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	if offer.TaskID != taskID {
		return nil, nil, apperr.NotFound("offer %s not found on task %s", offerID, taskID)
	}
	return task, offer, nil
}

// notify runs after a committed operation, so a failure here is logged and
// not returned.
func (e *Engine) notify(ctx context.Context, n *models.Notification) {
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.log.Error("notification failed",
			zap.String("recipient", n.RecipientID), zap.String("type", string(n.Type)), zap.Error(err))
	}
}

func taskLink(taskID string) string {
	return "/tasks/" + taskID
}
