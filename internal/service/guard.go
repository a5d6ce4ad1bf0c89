package service

import (
	"context"
	"errors"
	"time"

	"ticketflow/internal/model"
	"ticketflow/internal/repo"
)

// Guard rejects registrations that cannot succeed before anything is
// written. It reads without locks, so the store repeats the capacity check
// atomically on write and remains the only correctness boundary.
type Guard struct {
	store repo.Repository
	now   func() time.Time
}

func NewGuard(store repo.Repository, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{store: store, now: now}
}

// ValidateRegistration returns nil or a *model.RegistrationError naming the
// first rule that failed.
func (g *Guard) ValidateRegistration(ctx context.Context, eventID, categoryID, userID string, isPair bool) error {
	event, category, err := loadEventCategory(ctx, g.store, eventID, categoryID)
	if err != nil {
		return err
	}
	return g.check(ctx, event, category, userID, isPair)
}

func (g *Guard) check(ctx context.Context, event *model.Event, category *model.Category, userID string, isPair bool) error {
	existing, err := g.store.FindActiveRegistration(ctx, userID, event.ID, category.ID)
	if err != nil && !errors.Is(err, model.ErrRegistrationNotFound) {
		return err
	}
	return evaluate(eligibility{
		event:    event,
		category: category,
		existing: existing,
		isPair:   isPair,
		now:      g.now(),
	})
}

type eligibility struct {
	event    *model.Event
	category *model.Category
	existing *model.Registration
	isPair   bool
	now      time.Time
}

// evaluate applies the rules in order: window, duplicate, pair, category
// capacity, event capacity.
func evaluate(in eligibility) error {
	if in.event.RegistrationStart != nil && in.now.Before(*in.event.RegistrationStart) {
		return model.ErrRegistrationNotOpen
	}
	if in.event.RegistrationEnd != nil && in.now.After(*in.event.RegistrationEnd) {
		return model.ErrRegistrationClosed
	}

	held := 0
	if in.existing != nil {
		if in.existing.Status == model.StatusConfirmed {
			return model.ErrAlreadyRegistered
		}
		// A pending attempt already holds its units; reuse only needs the difference.
		held = in.existing.CapacityUnits
	}

	if in.isPair && !in.event.AllowsPairRegistration && !in.category.AllowsPairRegistration {
		return model.ErrPairNotAllowed
	}

	units := 1
	if in.isPair {
		units = 2
	}
	needed := units - held
	if needed <= 0 {
		return nil
	}

	if err := model.CheckCapacity(in.category.MaxParticipants, in.category.CurrentParticipants, needed, model.ErrCategoryFull); err != nil {
		return err
	}
	return model.CheckCapacity(in.event.MaxParticipants, in.event.CurrentParticipants, needed, model.ErrEventFull)
}

func loadEventCategory(ctx context.Context, store repo.Repository, eventID, categoryID string) (*model.Event, *model.Category, error) {
	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	category, err := store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, nil, err
	}
	if category.EventID != event.ID {
		return nil, nil, model.ErrCategoryMismatch
	}
	return event, category, nil
}
