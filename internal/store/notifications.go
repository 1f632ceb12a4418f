package store

import (
	"context"
	"time"
)

// Notification kinds.
const (
	NotifyAppointment = "appointment"
	NotifyRecord      = "record"
	NotifySystem      = "system"
)

type Notification struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Kind           string    `json:"kind"`
	IsRead         bool      `json:"is_read"`
	ReferenceID    string    `json:"reference_id,omitempty"`
	ReferenceType  string    `json:"reference_type,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Store) CreateNotification(ctx context.Context, n Notification) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO notifications(notification_id,user_id,title,message,kind,reference_id,reference_type)
VALUES($1,$2,$3,$4,$5,$6,$7)
`, n.NotificationID, n.UserID, n.Title, n.Message, n.Kind, nullable(n.ReferenceID), nullable(n.ReferenceType))
	return err
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	sql := `
SELECT notification_id,user_id,title,message,kind,is_read,COALESCE(reference_id,''),COALESCE(reference_type,''),created_at
FROM notifications
WHERE user_id=$1
ORDER BY created_at DESC
LIMIT $2`
	if unreadOnly {
		sql = `
SELECT notification_id,user_id,title,message,kind,is_read,COALESCE(reference_id,''),COALESCE(reference_type,''),created_at
FROM notifications
WHERE user_id=$1 AND NOT is_read
ORDER BY created_at DESC
LIMIT $2`
	}
	rows, err := s.DB.Query(ctx, sql, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.NotificationID, &n.UserID, &n.Title, &n.Message, &n.Kind,
			&n.IsRead, &n.ReferenceID, &n.ReferenceType, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flips one notification, scoped to its owner.
func (s *Store) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	tag, err := s.DB.Exec(ctx, `
UPDATE notifications SET is_read=true
WHERE notification_id=$1 AND user_id=$2
`, notificationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	tag, err := s.DB.Exec(ctx, `UPDATE notifications SET is_read=true WHERE user_id=$1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}
