package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pliu/engihub/internal/apperr"
	"github.com/pliu/engihub/internal/models"
)

const taskColumns = "id, owner_id, title, description, bounty, status, assigned_to, conversation_id, created_at, completed_at"

func scanTask(row interface{ Scan(...any) error }, t *models.Task) error {
	var assignedTo, conversationID sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Bounty, &t.Status,
		&assignedTo, &conversationID, &t.CreatedAt, &completedAt)
	if err != nil {
		return err
	}
	t.AssignedTo = assignedTo.String
	t.ConversationID = conversationID.String
	if completedAt.Valid {
		at := completedAt.Time
		t.CompletedAt = &at
	}
	return nil
}

func (c *conn) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = newID()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now()
	}
	if task.Status == "" {
		task.Status = models.TaskOpen
	}
	_, err := c.exec(ctx, "INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		task.ID, task.OwnerID, task.Title, task.Description, task.Bounty, task.Status,
		nullString(task.AssignedTo), nullString(task.ConversationID), task.CreatedAt, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (c *conn) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := scanTask(c.queryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?"+c.forUpdate(), id), &task); err != nil {
		return nil, notFound(err, "task", id)
	}
	return &task, nil
}

func (c *conn) listTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tasks []models.Task
	for rows.Next() {
		var task models.Task
		if err := scanTask(rows, &task); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *SQLStore) ListTasks(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	return s.listTasks(ctx, "SELECT "+taskColumns+" FROM tasks WHERE status = ? ORDER BY created_at DESC, id DESC", status)
}

func (s *SQLStore) ListTasksByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	return s.listTasks(ctx, "SELECT "+taskColumns+" FROM tasks WHERE owner_id = ? ORDER BY created_at DESC, id DESC", ownerID)
}

// transition applies a conditional task update and maps "no row matched" to
// NOT_FOUND or INVALID_STATE depending on whether the task exists.
func (c *conn) transition(ctx context.Context, id string, query string, args ...any) error {
	n, err := c.execAffected(ctx, query, args...)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	task, err := c.GetTask(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidState("task %s is %s", id, task.Status)
}

// openTaskChanged maps "no row matched" for a write conditional on an open
// task holding heldBounty.
func (c *conn) openTaskChanged(ctx context.Context, id string, heldBounty int64) error {
	task, err := c.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Status != models.TaskOpen {
		return apperr.InvalidState("task %s is %s", id, task.Status)
	}
	return apperr.Conflict("task %s bounty changed from %d to %d", id, heldBounty, task.Bounty)
}

// UpdateOpenTask applies only while the task is open and its bounty is still
// heldBounty, the amount the caller settled the balance difference against.
func (c *conn) UpdateOpenTask(ctx context.Context, id, title, description string, heldBounty, bounty int64) error {
	n, err := c.execAffected(ctx,
		"UPDATE tasks SET title = ?, description = ?, bounty = ? WHERE id = ? AND status = ? AND bounty = ?",
		title, description, bounty, id, models.TaskOpen, heldBounty)
	if err != nil {
		return err
	}
	if n == 0 {
		return c.openTaskChanged(ctx, id, heldBounty)
	}
	return nil
}

func (c *conn) AssignTask(ctx context.Context, id, assignee string) error {
	return c.transition(ctx, id,
		"UPDATE tasks SET status = ?, assigned_to = ? WHERE id = ? AND status = ?",
		models.TaskInProgress, assignee, id, models.TaskOpen)
}

func (c *conn) SetTaskConversation(ctx context.Context, id, conversationID string) error {
	return c.transition(ctx, id,
		"UPDATE tasks SET conversation_id = ? WHERE id = ? AND status = ?",
		conversationID, id, models.TaskInProgress)
}

func (c *conn) CompleteTask(ctx context.Context, id string, at time.Time) error {
	return c.transition(ctx, id,
		"UPDATE tasks SET status = ?, completed_at = ? WHERE id = ? AND status = ?",
		models.TaskCompleted, at, id, models.TaskInProgress)
}

// DeleteOpenTask removes an open task whose bounty is still heldBounty, the
// amount the caller refunds, together with its offers.
func (c *conn) DeleteOpenTask(ctx context.Context, id string, heldBounty int64) error {
	n, err := c.execAffected(ctx, "DELETE FROM tasks WHERE id = ? AND status = ? AND bounty = ?",
		id, models.TaskOpen, heldBounty)
	if err != nil {
		return err
	}
	if n == 0 {
		return c.openTaskChanged(ctx, id, heldBounty)
	}
	if _, err := c.exec(ctx, "DELETE FROM offers WHERE task_id = ?", id); err != nil {
		return fmt.Errorf("delete offers: %w", err)
	}
	return nil
}

const offerColumns = "id, task_id, proposer_id, message, status, created_at"

func scanOffer(row interface{ Scan(...any) error }, o *models.Offer) error {
	return row.Scan(&o.ID, &o.TaskID, &o.ProposerID, &o.Message, &o.Status, &o.CreatedAt)
}

func (c *conn) CreateOffer(ctx context.Context, offer *models.Offer) error {
	if offer.ID == "" {
		offer.ID = newID()
	}
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = now()
	}
	if offer.Status == "" {
		offer.Status = models.OfferPending
	}
	_, err := c.exec(ctx, "INSERT INTO offers ("+offerColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		offer.ID, offer.TaskID, offer.ProposerID, offer.Message, offer.Status, offer.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("an offer on task %s is already pending", offer.TaskID)
	}
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

func (c *conn) GetOffer(ctx context.Context, id string) (*models.Offer, error) {
	var offer models.Offer
	if err := scanOffer(c.queryRow(ctx, "SELECT "+offerColumns+" FROM offers WHERE id = ?", id), &offer); err != nil {
		return nil, notFound(err, "offer", id)
	}
	return &offer, nil
}

func (c *conn) ListOffers(ctx context.Context, taskID string) ([]models.Offer, error) {
	rows, err := c.query(ctx, "SELECT "+offerColumns+" FROM offers WHERE task_id = ? ORDER BY created_at, id", taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var offers []models.Offer
	for rows.Next() {
		var offer models.Offer
		if err := scanOffer(rows, &offer); err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

func (c *conn) HasPendingOffer(ctx context.Context, taskID, proposerID string) (bool, error) {
	return c.exists(ctx, "SELECT 1 FROM offers WHERE task_id = ? AND proposer_id = ? AND status = ?",
		taskID, proposerID, models.OfferPending)
}

func (c *conn) SetOfferStatus(ctx context.Context, id string, from, to models.OfferStatus) error {
	n, err := c.execAffected(ctx, "UPDATE offers SET status = ? WHERE id = ? AND status = ?", to, id, from)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	if n > 0 {
		return nil
	}
	offer, err := c.GetOffer(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidState("offer %s is %s", id, offer.Status)
}

func (c *conn) RejectOtherOffers(ctx context.Context, taskID, acceptedID string) (int64, error) {
	return c.execAffected(ctx, "UPDATE offers SET status = ? WHERE task_id = ? AND id <> ? AND status = ?",
		models.OfferRejected, taskID, acceptedID, models.OfferPending)
}
