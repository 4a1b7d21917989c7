package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/pliu/engihub/internal/apperr"
	"github.com/pliu/engihub/internal/models"
)

const userColumns = "id, username, email, password, balance, created_at"

func scanUser(row interface{ Scan(...any) error }, u *models.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Balance, &u.CreatedAt)
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}
	if user.Balance < 0 {
		return apperr.InvalidInput("balance must be non-negative")
	}

	exists, err := s.exists(ctx, "SELECT 1 FROM users WHERE username = ?", user.Username)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("username %q already exists", user.Username)
	}

	_, err = s.exec(ctx, "INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Username, user.Email, user.Password, user.Balance, user.CreatedAt)
	if isUniqueViolation(err) {
		// Lost a race with another signup for the same name.
		return apperr.Conflict("username %q already exists", user.Username)
	}
	return err
}

func (c *conn) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := scanUser(c.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id), &user)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := scanUser(s.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username), &user)
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return &user, nil
}

func (s *SQLStore) SearchUsers(ctx context.Context, queryStr string) ([]models.User, error) {
	rows, err := s.query(ctx, "SELECT "+userColumns+" FROM users WHERE username LIKE ? ORDER BY username LIMIT 10", "%"+queryStr+"%")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		user.Email = maskEmail(user.Email)
		users = append(users, user)
	}
	return users, rows.Err()
}

// AdjustBalance adds delta to the user's balance and returns the new value.
// The update is conditional on the result staying non-negative, so a debit
// racing another debit can never overdraw.
func (c *conn) AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	n, err := c.execAffected(ctx,
		"UPDATE users SET balance = balance + ? WHERE id = ? AND balance + ? >= 0",
		delta, userID, delta)
	if err != nil {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}
	if n == 0 {
		user, err := c.GetUser(ctx, userID)
		if err != nil {
			return 0, err
		}
		return 0, apperr.InsufficientFunds("balance %d is below required %d", user.Balance, -delta)
	}

	var balance int64
	if err := c.queryRow(ctx, "SELECT balance FROM users WHERE id = ?", userID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (c *conn) ListUserIDsExcept(ctx context.Context, userID string) ([]string, error) {
	rows, err := c.query(ctx, "SELECT id FROM users WHERE id <> ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func maskEmail(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}
	local, domain := parts[0], parts[1]
	length := len(local)
	if length == 0 {
		return email
	}
	visible := 1
	if length > 2 {
		visible = min(length/2, 3)
	}

	return local[:visible] + strings.Repeat("*", length-visible) + "@" + domain
}
