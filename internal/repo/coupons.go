package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ticketflow/internal/model"
)

func (r *repository) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var (
		c           model.Coupon
		eventID     sql.NullString
		maxUses     sql.NullInt64
		from, until sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, event_id, discount_type, discount_value, max_uses, used_count,
		       valid_from, valid_until, active
		FROM coupons
		WHERE UPPER(code) = UPPER($1)
	`, code).Scan(
		&c.ID, &c.Code, &eventID, &c.DiscountType, &c.DiscountValue, &maxUses, &c.UsedCount,
		&from, &until, &c.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	c.EventID = eventID.String
	c.MaxUses = intFromNull(maxUses)
	if from.Valid {
		c.ValidFrom = &from.Time
	}
	if until.Valid {
		c.ValidUntil = &until.Time
	}
	return &c, nil
}

func (r *repository) HasCouponUsage(ctx context.Context, couponID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2)`,
		couponID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check coupon usage: %w", err)
	}
	return exists, nil
}

// RecordCouponUsage writes the usage row and bumps used_count in one
// transaction. The (coupon_id, user_id) unique key rejects a second use.
func (r *repository) RecordCouponUsage(ctx context.Context, usage *model.CouponUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO coupon_usages (id, coupon_id, user_id, registration_id, discount_applied)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, usage.ID, usage.CouponID, usage.UserID, usage.RegistrationID, usage.DiscountApplied).Scan(&usage.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return model.ErrCouponAlreadyUsed
			}
			return fmt.Errorf("failed to record coupon usage: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE coupons
			SET used_count = used_count + 1
			WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
		`, usage.CouponID)
		if err != nil {
			return fmt.Errorf("failed to increment coupon usage: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return model.ErrCouponInvalid
		}
		return nil
	})
}

// DeleteCouponUsage undoes RecordCouponUsage for one registration. It is a
// no-op when the usage belongs to another registration or is already gone.
func (r *repository) DeleteCouponUsage(ctx context.Context, couponID, userID, registrationID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM coupon_usages
			WHERE coupon_id = $1 AND user_id = $2 AND registration_id = $3
		`, couponID, userID, registrationID)
		if err != nil {
			return fmt.Errorf("failed to delete coupon usage: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE coupons
			SET used_count = GREATEST(used_count - 1, 0)
			WHERE id = $1
		`, couponID); err != nil {
			return fmt.Errorf("failed to decrement coupon usage: %w", err)
		}
		return nil
	})
}
