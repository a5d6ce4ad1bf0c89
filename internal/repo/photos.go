package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ticketflow/internal/model"
)

const photoOrderColumns = `
	id, user_id, event_id, status, payment_status, quantity, package_id, total_amount,
	payment_session_id, payment_transaction_id, created_at, updated_at`

func scanPhotoOrder(row rowScanner) (*model.PhotoOrder, error) {
	var (
		o                   model.PhotoOrder
		pkg, session, txnID sql.NullString
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &o.EventID, &o.Status, &o.PaymentStatus, &o.Quantity, &pkg, &o.TotalAmount,
		&session, &txnID, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPhotoOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan photo order: %w", err)
	}
	o.PackageID = pkg.String
	o.PaymentSessionID = session.String
	o.PaymentTransactionID = txnID.String
	return &o, nil
}

func (r *repository) GetPhotos(ctx context.Context, eventID string, ids []string) ([]model.Photo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, url
		FROM photos
		WHERE event_id = $1 AND id = ANY($2)
	`, eventID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get photos: %w", err)
	}
	defer rows.Close()

	var photos []model.Photo
	for rows.Next() {
		var p model.Photo
		if err := rows.Scan(&p.ID, &p.EventID, &p.URL); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (r *repository) GetPriceTiers(ctx context.Context, eventID string) ([]model.PriceTier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT min_quantity, price_per_unit, display_order
		FROM photo_price_tiers
		WHERE event_id = $1
		ORDER BY min_quantity ASC, display_order ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get price tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.PriceTier
	for rows.Next() {
		var t model.PriceTier
		if err := rows.Scan(&t.MinQuantity, &t.PricePerUnit, &t.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan price tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

func (r *repository) GetPhotoPackages(ctx context.Context, eventID string) ([]model.PhotoPackage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, quantity, price, display_order
		FROM photo_packages
		WHERE event_id = $1
		ORDER BY display_order ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get photo packages: %w", err)
	}
	defer rows.Close()

	var packages []model.PhotoPackage
	for rows.Next() {
		var p model.PhotoPackage
		if err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &p.Price, &p.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan photo package: %w", err)
		}
		packages = append(packages, p)
	}
	return packages, rows.Err()
}

func (r *repository) CreatePhotoOrder(ctx context.Context, o *model.PhotoOrder) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO photo_orders (id, user_id, event_id, status, payment_status, quantity, package_id, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, o.ID, o.UserID, o.EventID, o.Status, o.PaymentStatus, o.Quantity, nullString(o.PackageID), o.TotalAmount,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo order: %w", err)
	}
	return nil
}

func (r *repository) CreatePhotoOrderItems(ctx context.Context, items []model.PhotoOrderItem) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for i := range items {
			if items[i].ID == "" {
				items[i].ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO photo_order_items (id, order_id, photo_id, unit_price)
				VALUES ($1, $2, $3, $4)
			`, items[i].ID, items[i].OrderID, items[i].PhotoID, items[i].UnitPrice); err != nil {
				return fmt.Errorf("failed to create photo order item: %w", err)
			}
		}
		return nil
	})
}

func (r *repository) DeletePhotoOrder(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM photo_orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete photo order: %w", err)
	}
	return nil
}

func (r *repository) LinkPhotoOrderSession(ctx context.Context, id, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE photo_orders
		SET payment_session_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, sessionID)
	if err != nil {
		return fmt.Errorf("failed to link photo order session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return model.ErrPhotoOrderNotFound
	}
	return nil
}

func (r *repository) GetPhotoOrder(ctx context.Context, id string) (*model.PhotoOrder, error) {
	return scanPhotoOrder(r.db.QueryRowContext(ctx,
		`SELECT `+photoOrderColumns+` FROM photo_orders WHERE id = $1`, id))
}

func (r *repository) GetPhotoOrderBySession(ctx context.Context, sessionID string) (*model.PhotoOrder, error) {
	return scanPhotoOrder(r.db.QueryRowContext(ctx,
		`SELECT `+photoOrderColumns+` FROM photo_orders WHERE payment_session_id = $1`, sessionID))
}

// UpdatePhotoOrderStatus follows the registration rules: already in target
// state or already paid means no change.
func (r *repository) UpdatePhotoOrderStatus(ctx context.Context, id string, upd model.StatusUpdate) (*model.PhotoOrder, bool, error) {
	var (
		out     *model.PhotoOrder
		changed bool
	)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := scanPhotoOrder(tx.QueryRowContext(ctx,
			`SELECT `+photoOrderColumns+` FROM photo_orders WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if (cur.Status == upd.Status && cur.PaymentStatus == upd.PaymentStatus) || cur.IsConfirmedPaid() {
			out = cur
			return nil
		}
		out, err = scanPhotoOrder(tx.QueryRowContext(ctx, `
			UPDATE photo_orders
			SET status = $2, payment_status = $3,
			    payment_transaction_id = COALESCE($4, payment_transaction_id), updated_at = NOW()
			WHERE id = $1
			RETURNING `+photoOrderColumns,
			id, upd.Status, upd.PaymentStatus, nullString(upd.TransactionID),
		))
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}
