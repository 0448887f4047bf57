// internal/store/notifications.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"association-backend/internal/models"
)

// CreateNotification persists one notification together with its full
// recipient set in a single transaction.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification tx: %w", err)
	}
	defer tx.Rollback()

	var senderID interface{}
	if n.SenderID != "" {
		senderID = n.SenderID
	}
	var media interface{}
	if n.Media != "" {
		media = n.Media
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO notifications (id, subject, content, media, channel, sender_kind, sender_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		n.ID, n.Subject, n.Content, media, n.Channel, n.SenderKind, senderID,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO notification_recipients (notification_id, member_id, read) VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("prepare recipients: %w", err)
	}
	defer stmt.Close()

	for _, r := range n.Recipients {
		if _, err := stmt.ExecContext(ctx, n.ID, r.MemberID, r.Read); err != nil {
			return fmt.Errorf("insert recipient %s: %w", r.MemberID, err)
		}
	}

	return tx.Commit()
}

// UnreadForMember fetches up to limit of the most recent notifications the
// member has not read yet, newest first.
func (s *Store) UnreadForMember(ctx context.Context, memberID string, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.id, n.subject, n.content, n.media, n.channel, n.sender_kind, n.sender_id, n.created_at
		   FROM notifications n
		   JOIN notification_recipients r ON r.notification_id = n.id
		  WHERE r.member_id = $1 AND r.read = FALSE
		  ORDER BY n.created_at DESC
		  LIMIT $2`,
		memberID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("unread for member: %w", err)
	}
	return collectNotifications(rows)
}

// MarkRecipientsRead flips the member's read flag on the given notifications.
// The read = FALSE filter is re-applied so a notification created between the
// fetch and this update is left untouched for the next call.
func (s *Store) MarkRecipientsRead(ctx context.Context, memberID string, notificationIDs []string) (int64, error) {
	if len(notificationIDs) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE notification_recipients
		    SET read = TRUE
		  WHERE member_id = $1 AND notification_id = ANY($2) AND read = FALSE`,
		memberID, pq.Array(notificationIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("mark recipients read: %w", err)
	}
	return res.RowsAffected()
}

// ListNotifications pages over all notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, page, limit int) ([]models.Notification, error) {
	if page < 1 {
		page = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject, content, media, channel, sender_kind, sender_id, created_at
		   FROM notifications
		  ORDER BY created_at DESC
		  LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return collectNotifications(rows)
}

func collectNotifications(rows *sql.Rows) ([]models.Notification, error) {
	defer rows.Close()
	var out []models.Notification
	for rows.Next() {
		var (
			n        models.Notification
			media    sql.NullString
			senderID sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Subject, &n.Content, &media, &n.Channel,
			&n.SenderKind, &senderID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Media = media.String
		n.SenderID = senderID.String
		out = append(out, n)
	}
	return out, rows.Err()
}
