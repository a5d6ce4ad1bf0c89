package service

import (
	"context"
	"errors"

	"ticketflow/internal/dto"
	"ticketflow/internal/model"
)

// CreateFreeRegistration confirms a registration in a zero-price category
// without a payment session. Repeating it for a confirmed registration
// succeeds without side effects.
func (s *service) CreateFreeRegistration(ctx context.Context, user *model.AuthUser, req dto.FreeRegistrationRequest) (*dto.FreeRegistrationResponse, error) {
	if err := validate(ctx, req); err != nil {
		return nil, err
	}

	d, err := s.draft(ctx, user, &req.RegistrationRequest)
	if err != nil {
		return nil, err
	}
	if d.category.Price > 0 {
		return nil, model.ErrNotFree
	}

	existing, err := s.store.FindActiveRegistration(ctx, d.who.UserID, d.event.ID, d.category.ID)
	switch {
	case err == nil && existing.IsConfirmedPaid():
		return &dto.FreeRegistrationResponse{RegistrationID: existing.ID, Success: true}, nil
	case err != nil && !errors.Is(err, model.ErrRegistrationNotFound):
		return nil, err
	}

	if err := s.guard.check(ctx, d.event, d.category, d.who.UserID, req.IsPair()); err != nil {
		return nil, err
	}

	s.saveContactProfile(ctx, d.who, d.participant)

	reg, err := s.store.CreateOrReuse(ctx, d.reservation(&req.RegistrationRequest, 0))
	if err != nil {
		return nil, err
	}
	if reg.IsConfirmedPaid() {
		return &dto.FreeRegistrationResponse{RegistrationID: reg.ID, Success: true}, nil
	}

	confirmed, changed, err := s.store.UpdatePaymentStatus(ctx, reg.ID, model.StatusUpdate{
		Status:        model.StatusConfirmed,
		PaymentStatus: model.PaymentPaid,
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.Info().Str("registration_id", confirmed.ID).Msg("free registration confirmed")
		s.fulfilRegistration(ctx, confirmed, d.event, d.category)
	}

	return &dto.FreeRegistrationResponse{RegistrationID: confirmed.ID, Success: true}, nil
}
