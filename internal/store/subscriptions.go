// internal/store/subscriptions.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/models"
)

const subscriptionColumns = `id, member_id, status, expiry_date, created_at, updated_at`

// SubscriptionByMember loads the member's current subscription record.
func (s *Store) SubscriptionByMember(ctx context.Context, memberID string) (*models.MembershipSubscription, error) {
	var sub models.MembershipSubscription
	err := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM membership_subscriptions WHERE member_id = $1`,
		memberID,
	).Scan(&sub.ID, &sub.MemberID, &sub.Status, &sub.ExpiryDate, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewNotFoundError("subscription", memberID)
	}
	if err != nil {
		return nil, fmt.Errorf("subscription by member: %w", err)
	}
	return &sub, nil
}

// UpsertSubscription creates or refreshes the member's subscription record
// back to active with a new expiry date. One record per member per track.
func (s *Store) UpsertSubscription(ctx context.Context, id, memberID string, expiry time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO membership_subscriptions (id, member_id, status, expiry_date)
		 VALUES ($1, $2, 'active', $3)
		 ON CONFLICT (member_id)
		 DO UPDATE SET status = 'active', expiry_date = EXCLUDED.expiry_date, updated_at = now()`,
		id, memberID, expiry,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// SubscriptionsExpiringBy is the time-threshold query for the subscription
// track: records in any of the given statuses expiring at or before cutoff.
func (s *Store) SubscriptionsExpiringBy(ctx context.Context, cutoff time.Time, statuses []models.SubscriptionStatus) ([]models.MembershipSubscription, error) {
	strs := make([]string, len(statuses))
	for i, st := range statuses {
		strs[i] = string(st)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM membership_subscriptions
		  WHERE status = ANY($1) AND expiry_date <= $2`,
		pq.Array(strs), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("subscriptions expiring: %w", err)
	}
	defer rows.Close()

	var subs []models.MembershipSubscription
	for rows.Next() {
		var sub models.MembershipSubscription
		if err := rows.Scan(&sub.ID, &sub.MemberID, &sub.Status, &sub.ExpiryDate,
			&sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SetSubscriptionStatus updates the subscription state machine value.
func (s *Store) SetSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE membership_subscriptions SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("set subscription status: %w", err)
	}
	return requireOneRow(res, "subscription", id)
}
