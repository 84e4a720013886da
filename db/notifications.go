package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateNotification stores a broadcast (empty userID) or direct message
func CreateNotification(ctx context.Context, title, body, userID, sentBy string) (*Notification, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	n := &Notification{
		ID:     uuid.NewString(),
		Title:  strings.TrimSpace(title),
		Body:   strings.TrimSpace(body),
		UserID: strings.TrimSpace(userID),
		SentBy: sentBy,
	}
	if n.Title == "" || n.Body == "" {
		return nil, fmt.Errorf("%w: title and body are required", ErrInvalid)
	}

	var target *string
	if n.UserID != "" {
		target = &n.UserID
	}

	err := PostgresPool.QueryRow(ctx, `
		INSERT INTO notifications (id, title, body, user_id, sent_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, n.ID, n.Title, n.Body, target, n.SentBy).Scan(&n.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}
	return n, nil
}

// MarkNotificationPushed records that the push went out
func MarkNotificationPushed(ctx context.Context, id string) error {
	if PostgresPool == nil {
		return ErrNotInitialized
	}
	if _, err := PostgresPool.Exec(ctx, `UPDATE notifications SET pushed = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to mark notification pushed: %w", err)
	}
	return nil
}

// ListNotifications returns newest first. A userID returns broadcasts
// plus that user's direct messages; an empty userID returns everything.
func ListNotifications(ctx context.Context, userID string, limit, offset int) ([]Notification, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	limit, offset = pageArgs(limit, offset)
	rows, err := PostgresPool.Query(ctx, `
		SELECT id, title, body, COALESCE(user_id, ''), sent_by, pushed, created_at
		FROM notifications
		WHERE $1 = '' OR user_id IS NULL OR user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.UserID, &n.SentBy, &n.Pushed, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}
