// Package promotion maintains the ranked promotion lists. Each promotion
// type holds a dense priority sequence 1..N with no gaps and no collisions;
// inserts shift, moves swap. Both mutations run in one transaction holding
// row locks, and the (type, priority) uniqueness check is deferred to commit
// so intermediate shift states are legal.
package promotion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/common/logger"
	"association-backend/internal/models"
)

const slotColumns = `id, type, title, description, media, link, start_date, end_date, priority, status`

// RankedList mutates and reads the ranked slot lists.
type RankedList struct {
	db  *sql.DB
	log logger.Logger
}

// New creates a RankedList over an open connection pool.
func New(db *sql.DB, log logger.Logger) *RankedList {
	return &RankedList{db: db, log: log}
}

// InsertAt inserts a new slot at the desired priority, shifting every slot at
// or above it up by one. desired must lie in 1..N+1 for the slot's type.
func (r *RankedList) InsertAt(ctx context.Context, slot *models.PromotionSlot, desired int) error {
	if !models.ValidPromotionType(slot.Type) {
		return stderrors.NewValidationError("unknown promotion type")
	}
	if slot.ID == "" {
		slot.ID = uuid.New().String()
	}
	if slot.Status == "" {
		slot.Status = models.PromotionActive
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback()

	count, err := lockedCount(ctx, tx, slot.Type)
	if err != nil {
		return err
	}
	if desired < 1 || desired > count+1 {
		return stderrors.NewInvariantViolationError(
			fmt.Sprintf("priority %d outside 1..%d", desired, count+1))
	}

	// Shift ascending so each row moves into a spot the previous iteration
	// just vacated at commit time.
	if _, err := tx.ExecContext(ctx,
		`UPDATE promotion_slots SET priority = priority + 1
		  WHERE type = $1 AND priority >= $2`,
		slot.Type, desired,
	); err != nil {
		return fmt.Errorf("shift priorities: %w", err)
	}

	slot.Priority = desired
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO promotion_slots
		   (id, type, title, description, media, link, start_date, end_date, priority, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		slot.ID, slot.Type, slot.Title, slot.Description, slot.Media, slot.Link,
		slot.StartDate, slot.EndDate, slot.Priority, slot.Status,
	); err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	r.log.Info("promotion slot inserted", map[string]interface{}{
		"slot_id":  slot.ID,
		"type":     string(slot.Type),
		"priority": desired,
	})
	return nil
}

// MoveTo reassigns a slot's priority. When another slot holds the desired
// priority the two swap; when it is free the slot takes it directly; moving
// to the current priority is a no-op. desired must lie in 1..N.
func (r *RankedList) MoveTo(ctx context.Context, slotID string, typ models.PromotionType, desired int) error {
	if !models.ValidPromotionType(typ) {
		return stderrors.NewValidationError("unknown promotion type")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move tx: %w", err)
	}
	defer tx.Rollback()

	count, err := lockedCount(ctx, tx, typ)
	if err != nil {
		return err
	}
	if desired < 1 || desired > count {
		return stderrors.NewInvariantViolationError(
			fmt.Sprintf("priority %d outside 1..%d", desired, count))
	}

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT priority FROM promotion_slots WHERE id = $1 AND type = $2`,
		slotID, typ,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return stderrors.NewNotFoundError("promotion slot", slotID)
	}
	if err != nil {
		return fmt.Errorf("load slot priority: %w", err)
	}
	if current == desired {
		return tx.Commit()
	}

	// Swap with the current holder when the spot is taken; the update is a
	// no-op when it is free.
	if _, err := tx.ExecContext(ctx,
		`UPDATE promotion_slots SET priority = $3
		  WHERE type = $1 AND priority = $2 AND id <> $4`,
		typ, desired, current, slotID,
	); err != nil {
		return fmt.Errorf("swap holder: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE promotion_slots SET priority = $2 WHERE id = $1`,
		slotID, desired,
	); err != nil {
		return fmt.Errorf("move slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit move: %w", err)
	}
	r.log.Info("promotion slot moved", map[string]interface{}{
		"slot_id": slotID,
		"type":    string(typ),
		"from":    current,
		"to":      desired,
	})
	return nil
}

// ListByType returns a type's slots ordered by priority.
func (r *RankedList) ListByType(ctx context.Context, typ models.PromotionType) ([]models.PromotionSlot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM promotion_slots WHERE type = $1 ORDER BY priority`,
		typ,
	)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []models.PromotionSlot
	for rows.Next() {
		var (
			s           models.PromotionSlot
			title       sql.NullString
			description sql.NullString
			media       sql.NullString
			link        sql.NullString
			start       sql.NullTime
			end         sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Type, &title, &description, &media, &link,
			&start, &end, &s.Priority, &s.Status); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		s.Title = title.String
		s.Description = description.String
		s.Media = media.String
		s.Link = link.String
		if start.Valid {
			s.StartDate = &start.Time
		}
		if end.Valid {
			s.EndDate = &end.Time
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// SetStatus flips a slot's display state without touching its priority.
func (r *RankedList) SetStatus(ctx context.Context, slotID string, status models.PromotionStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE promotion_slots SET status = $2 WHERE id = $1`,
		slotID, status,
	)
	if err != nil {
		return fmt.Errorf("set slot status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return stderrors.NewNotFoundError("promotion slot", slotID)
	}
	return nil
}

// lockedCount locks the type's rows for the transaction and returns how many
// slots the list holds.
func lockedCount(ctx context.Context, tx *sql.Tx, typ models.PromotionType) (int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM promotion_slots WHERE type = $1 FOR UPDATE`, typ)
	if err != nil {
		return 0, fmt.Errorf("lock slots: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan locked slot: %w", err)
		}
		count++
	}
	return count, rows.Err()
}
