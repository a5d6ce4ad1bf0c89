package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ticketflow/internal/model"
	"ticketflow/pkg/validator"
)

const registrationColumns = `
	id, event_id, category_id, user_id, status, payment_status, amount_paid,
	payment_session_id, payment_transaction_id, ticket_code, qr_code,
	shirt_size, shirt_gender, partner_name, is_partner_registration,
	capacity_units, registration_data, created_at, updated_at`

// errConcurrentInsert marks a lost race on the active-triple unique index.
var errConcurrentInsert = errors.New("concurrent registration insert")

func scanRegistration(row rowScanner) (*model.Registration, error) {
	var (
		reg                                model.Registration
		session, txn, code, qr, gender, pn sql.NullString
		data                               []byte
	)
	if err := row.Scan(
		&reg.ID, &reg.EventID, &reg.CategoryID, &reg.UserID, &reg.Status, &reg.PaymentStatus, &reg.AmountPaid,
		&session, &txn, &code, &qr,
		&reg.ShirtSize, &gender, &pn, &reg.IsPartnerRegistration,
		&reg.CapacityUnits, &data, &reg.CreatedAt, &reg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	reg.PaymentSessionID = session.String
	reg.PaymentTransactionID = txn.String
	reg.TicketCode = code.String
	reg.QRCode = qr.String
	reg.ShirtGender = gender.String
	reg.PartnerName = pn.String
	if len(data) > 0 {
		var rd model.RegistrationData
		if err := json.Unmarshal(data, &rd); err != nil {
			return nil, fmt.Errorf("failed to decode registration_data: %w", err)
		}
		reg.RegistrationData = &rd
	}
	return &reg, nil
}

func (r *repository) getRegistrationBy(ctx context.Context, where string, arg any) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE `+where, arg)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *repository) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return r.getRegistrationBy(ctx, `id = $1`, id)
}

func (r *repository) GetRegistrationBySession(ctx context.Context, sessionID string) (*model.Registration, error) {
	return r.getRegistrationBy(ctx, `payment_session_id = $1 ORDER BY updated_at DESC LIMIT 1`, sessionID)
}

func (r *repository) GetRegistrationByTransaction(ctx context.Context, transactionID string) (*model.Registration, error) {
	return r.getRegistrationBy(ctx, `payment_transaction_id = $1 ORDER BY updated_at DESC LIMIT 1`, transactionID)
}

func (r *repository) FindActiveRegistration(ctx context.Context, userID, eventID, categoryID string) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE user_id = $1 AND event_id = $2 AND category_id = $3 AND status <> 'cancelled'
	`, userID, eventID, categoryID)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to find active registration: %w", err)
	}
	return reg, nil
}

// CreateOrReuse creates a pending registration or refreshes the caller's
// active one. A lost insert race is retried once, which turns it into a reuse.
func (r *repository) CreateOrReuse(ctx context.Context, in model.ReservationInput) (*model.Registration, error) {
	reg, err := r.createOrReuseOnce(ctx, in)
	if errors.Is(err, errConcurrentInsert) {
		r.log.Debug().Str("user_id", in.UserID).Str("category_id", in.CategoryID).Msg("retrying registration after concurrent insert")
		reg, err = r.createOrReuseOnce(ctx, in)
	}
	if errors.Is(err, errConcurrentInsert) {
		return nil, model.ErrConflictingState
	}
	return reg, err
}

func (r *repository) createOrReuseOnce(ctx context.Context, in model.ReservationInput) (*model.Registration, error) {
	data, err := json.Marshal(model.RegistrationData{Participant: in.Participant, Partner: in.Partner})
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration_data: %w", err)
	}
	var partnerName string
	if in.Partner != nil {
		partnerName = in.Partner.Name
	}

	var out *model.Registration
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanRegistration(tx.QueryRowContext(ctx, `
			SELECT `+registrationColumns+`
			FROM registrations
			WHERE user_id = $1 AND event_id = $2 AND category_id = $3 AND status <> 'cancelled'
			FOR UPDATE
		`, in.UserID, in.EventID, in.CategoryID))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to lock active registration: %w", err)
		}

		if existing != nil {
			if existing.IsConfirmedPaid() {
				out = existing
				return nil
			}
			if existing.Status != model.StatusPending {
				return model.ErrConflictingState
			}
			if err := adjustCapacity(ctx, tx, in.EventID, in.CategoryID, in.Units()-existing.CapacityUnits); err != nil {
				return err
			}
			out, err = scanRegistration(tx.QueryRowContext(ctx, `
				UPDATE registrations
				SET status = 'pending', payment_status = 'pending', amount_paid = $2,
				    shirt_size = $3, shirt_gender = $4, partner_name = $5,
				    is_partner_registration = $6, capacity_units = $7, registration_data = $8,
				    payment_session_id = COALESCE($9, payment_session_id), updated_at = NOW()
				WHERE id = $1
				RETURNING `+registrationColumns,
				existing.ID, in.Amount, in.ShirtSize, nullString(in.ShirtGender), nullString(partnerName),
				in.Partner != nil, in.Units(), data, nullString(in.SessionID),
			))
			if err != nil {
				return fmt.Errorf("failed to refresh registration: %w", err)
			}
		} else {
			if err := adjustCapacity(ctx, tx, in.EventID, in.CategoryID, in.Units()); err != nil {
				return err
			}
			out, err = scanRegistration(tx.QueryRowContext(ctx, `
				INSERT INTO registrations (
					id, event_id, category_id, user_id, status, payment_status, amount_paid,
					payment_session_id, shirt_size, shirt_gender, partner_name,
					is_partner_registration, capacity_units, registration_data
				)
				VALUES ($1, $2, $3, $4, 'pending', 'pending', $5, $6, $7, $8, $9, $10, $11, $12)
				RETURNING `+registrationColumns,
				uuid.NewString(), in.EventID, in.CategoryID, in.UserID, in.Amount,
				nullString(in.SessionID), in.ShirtSize, nullString(in.ShirtGender), nullString(partnerName),
				in.Partner != nil, in.Units(), data,
			))
			if err != nil {
				if isUniqueViolation(err) {
					return errConcurrentInsert
				}
				return fmt.Errorf("failed to create registration: %w", err)
			}
		}

		if in.Partner != nil {
			if err := upsertPartnerProfile(ctx, tx, *in.Partner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePaymentStatus moves a registration to the target state. It reports
// changed=false when the row was already there, and never moves a
// confirmed/paid registration. Entering cancelled releases the held slots;
// leaving cancelled takes them back under the same conditional increment.
func (r *repository) UpdatePaymentStatus(ctx context.Context, id string, upd model.StatusUpdate) (*model.Registration, bool, error) {
	var (
		out     *model.Registration
		changed bool
	)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := scanRegistration(tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.ErrRegistrationNotFound
			}
			return fmt.Errorf("failed to lock registration: %w", err)
		}

		if (cur.Status == upd.Status && cur.PaymentStatus == upd.PaymentStatus) || cur.IsConfirmedPaid() {
			out = cur
			return nil
		}

		switch {
		case upd.Status == model.StatusCancelled && cur.Status != model.StatusCancelled:
			err = adjustCapacity(ctx, tx, cur.EventID, cur.CategoryID, -cur.CapacityUnits)
		case cur.Status == model.StatusCancelled && upd.Status != model.StatusCancelled:
			err = adjustCapacity(ctx, tx, cur.EventID, cur.CategoryID, cur.CapacityUnits)
		}
		if err != nil {
			return err
		}

		out, err = scanRegistration(tx.QueryRowContext(ctx, `
			UPDATE registrations
			SET status = $2, payment_status = $3,
			    payment_transaction_id = COALESCE($4, payment_transaction_id), updated_at = NOW()
			WHERE id = $1
			RETURNING `+registrationColumns,
			id, upd.Status, upd.PaymentStatus, nullString(upd.TransactionID),
		))
		if err != nil {
			if isUniqueViolation(err) {
				return model.ErrConflictingState
			}
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

func (r *repository) LinkPaymentSession(ctx context.Context, id, sessionID string) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE registrations
		SET payment_session_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+registrationColumns, id, sessionID)
	reg, err := scanRegistration(row)
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to link payment session: %w", err)
	}
	if _, gerr := r.GetRegistration(ctx, id); gerr != nil {
		return nil, gerr
	}
	return nil, model.ErrConflictingState
}

// SetTicketArtifact stores the ticket only when none was issued before.
func (r *repository) SetTicketArtifact(ctx context.Context, id, code, artifact string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE registrations
		SET ticket_code = $2, qr_code = $3, updated_at = NOW()
		WHERE id = $1 AND qr_code IS NULL
	`, id, code, artifact)
	if err != nil {
		return false, fmt.Errorf("failed to set ticket artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// upsertPartnerProfile keys partner identities by normalised e-mail. Existing
// values win; a stored CPF is never replaced.
func upsertPartnerProfile(ctx context.Context, tx *sql.Tx, p model.ParticipantData) error {
	email := validator.NormalizeEmail(p.Email)
	if email == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, cpf, phone, is_shadow)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (email) DO UPDATE
		SET full_name  = CASE WHEN users.full_name = '' THEN EXCLUDED.full_name ELSE users.full_name END,
		    cpf        = COALESCE(users.cpf, EXCLUDED.cpf),
		    phone      = COALESCE(users.phone, EXCLUDED.phone),
		    updated_at = NOW()
	`, uuid.NewString(), email, p.Name, nullString(validator.OnlyDigits(p.CPF)), nullString(validator.OnlyDigits(p.Phone)))
	if err != nil {
		return fmt.Errorf("failed to upsert partner profile: %w", err)
	}
	return nil
}
