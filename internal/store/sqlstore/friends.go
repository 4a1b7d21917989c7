package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pliu/engihub/internal/apperr"
	"github.com/pliu/engihub/internal/models"
)

const friendRequestColumns = "id, from_id, to_id, status, created_at"

func scanFriendRequest(row interface{ Scan(...any) error }, r *models.FriendRequest) error {
	return row.Scan(&r.ID, &r.FromID, &r.ToID, &r.Status, &r.CreatedAt)
}

func (c *conn) CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	if req.ID == "" {
		req.ID = newID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now()
	}
	if req.Status == "" {
		req.Status = models.FriendRequestPending
	}
	_, err := c.exec(ctx, "INSERT INTO friend_requests ("+friendRequestColumns+") VALUES (?, ?, ?, ?, ?)",
		req.ID, req.FromID, req.ToID, req.Status, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert friend request: %w", err)
	}
	return nil
}

func (c *conn) GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := scanFriendRequest(c.queryRow(ctx, "SELECT "+friendRequestColumns+" FROM friend_requests WHERE id = ?", id), &req)
	if err != nil {
		return nil, notFound(err, "friend request", id)
	}
	return &req, nil
}

// FindFriendRequest returns a request between a and b in either direction, or
// nil if there is none.
func (c *conn) FindFriendRequest(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := scanFriendRequest(c.queryRow(ctx, `
		SELECT `+friendRequestColumns+` FROM friend_requests
		WHERE (from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)`, a, b, b, a), &req)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *conn) AcceptFriendRequest(ctx context.Context, id string) error {
	n, err := c.execAffected(ctx, "UPDATE friend_requests SET status = ? WHERE id = ? AND status = ?",
		models.FriendRequestAccepted, id, models.FriendRequestPending)
	if err != nil {
		return err
	}
	if n == 0 {
		req, err := c.GetFriendRequest(ctx, id)
		if err != nil {
			return err
		}
		return apperr.InvalidState("friend request %s is %s", id, req.Status)
	}
	return nil
}

// AddFriendship records the friendship in both directions.
func (c *conn) AddFriendship(ctx context.Context, a, b string) error {
	t := now()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		_, err := c.exec(ctx, `
			INSERT INTO friendships (user_id, friend_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id, friend_id) DO NOTHING`, pair[0], pair[1], t)
		if err != nil {
			return fmt.Errorf("insert friendship: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) ListFriends(ctx context.Context, userID string) ([]models.User, error) {
	rows, err := s.query(ctx, `
		SELECT u.id, u.username, u.email, u.password, u.balance, u.created_at
		FROM users u
		JOIN friendships f ON u.id = f.friend_id
		WHERE f.user_id = ?
		ORDER BY u.username`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		u.Email = maskEmail(u.Email)
		users = append(users, u)
	}
	return users, rows.Err()
}
