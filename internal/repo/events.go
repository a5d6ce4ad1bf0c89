package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ticketflow/internal/model"
)

func (r *repository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	query := `
		SELECT id, slug, name, location, event_date, registration_start, registration_end,
		       max_participants, current_participants, allows_pair_registration, created_at, updated_at
		FROM events WHERE id = $1
	`
	var (
		e          model.Event
		start, end sql.NullTime
		limit      sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Slug, &e.Name, &e.Location, &e.EventDate, &start, &end,
		&limit, &e.CurrentParticipants, &e.AllowsPairRegistration, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if start.Valid {
		e.RegistrationStart = &start.Time
	}
	if end.Valid {
		e.RegistrationEnd = &end.Time
	}
	e.MaxParticipants = intFromNull(limit)
	return &e, nil
}

func (r *repository) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	query := `
		SELECT id, event_id, name, price, max_participants, current_participants,
		       allows_pair_registration, created_at
		FROM categories WHERE id = $1
	`
	var (
		c     model.Category
		limit sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.EventID, &c.Name, &c.Price, &limit, &c.CurrentParticipants,
		&c.AllowsPairRegistration, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	c.MaxParticipants = intFromNull(limit)
	return &c, nil
}

// capacityTable describes one level of counters; both levels share the same
// conditional increment.
type capacityTable struct {
	name     string
	full     *model.RegistrationError
	notFound *model.RegistrationError
}

var (
	categoryCapacity = capacityTable{name: "categories", full: model.ErrCategoryFull, notFound: model.ErrCategoryNotFound}
	eventCapacity    = capacityTable{name: "events", full: model.ErrEventFull, notFound: model.ErrEventNotFound}
)

// adjustCapacity moves the held-slot counters of a category and its event by
// delta. Increments only happen when the new value stays within the maximum,
// in a single UPDATE; the category row is always locked before the event row.
func adjustCapacity(ctx context.Context, tx *sql.Tx, eventID, categoryID string, delta int) error {
	switch {
	case delta > 0:
		if err := acquire(ctx, tx, categoryCapacity, categoryID, delta); err != nil {
			return err
		}
		return acquire(ctx, tx, eventCapacity, eventID, delta)
	case delta < 0:
		if err := release(ctx, tx, categoryCapacity, categoryID, -delta); err != nil {
			return err
		}
		return release(ctx, tx, eventCapacity, eventID, -delta)
	}
	return nil
}

func acquire(ctx context.Context, tx *sql.Tx, t capacityTable, id string, units int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE `+t.name+`
		SET current_participants = current_participants + $2
		WHERE id = $1
		  AND (max_participants IS NULL OR max_participants = 0
		       OR current_participants + $2 <= max_participants)
	`, id, units)
	if err != nil {
		return fmt.Errorf("failed to reserve %s capacity: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var (
		limit   sql.NullInt64
		current int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT max_participants, current_participants FROM `+t.name+` WHERE id = $1`, id,
	).Scan(&limit, &current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t.notFound
		}
		return fmt.Errorf("failed to read %s capacity: %w", t.name, err)
	}
	if cerr := model.CheckCapacity(intFromNull(limit), current, units, t.full); cerr != nil {
		return cerr
	}
	return t.full
}

func release(ctx context.Context, tx *sql.Tx, t capacityTable, id string, units int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE `+t.name+`
		SET current_participants = GREATEST(current_participants - $2, 0)
		WHERE id = $1
	`, id, units)
	if err != nil {
		return fmt.Errorf("failed to release %s capacity: %w", t.name, err)
	}
	return nil
}
