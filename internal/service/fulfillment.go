package service

import (
	"context"

	"ticketflow/internal/model"
	"ticketflow/internal/ticket"
)

// fulfilRegistration runs after the single winning transition into
// confirmed/paid. Ticket issuance is conditional on an empty artifact, so
// replays cannot issue twice. Nothing here fails the caller.
func (s *service) fulfilRegistration(ctx context.Context, reg *model.Registration, event *model.Event, category *model.Category) {
	var err error
	if event == nil {
		if event, err = s.store.GetEvent(ctx, reg.EventID); err != nil {
			s.log.Error().Err(err).Str("registration_id", reg.ID).Msg("fulfilment: event lookup failed")
			return
		}
	}
	if category == nil {
		if category, err = s.store.GetCategory(ctx, reg.CategoryID); err != nil {
			s.log.Warn().Err(err).Str("registration_id", reg.ID).Msg("fulfilment: category lookup failed")
		}
	}

	code := ticket.Code(event.Slug, reg.ID)
	if reg.QRCode == "" {
		s.issueTicket(ctx, reg.ID, code)
	}

	c := model.Confirmation{
		Kind:        model.KindRegistration,
		ReferenceID: reg.ID,
		EventName:   event.Name,
		TicketCode:  code,
		Amount:      reg.AmountPaid,
	}
	if category != nil {
		c.CategoryName = category.Name
	}
	if reg.RegistrationData != nil && reg.RegistrationData.Participant != nil {
		c.To = reg.RegistrationData.Participant.Email
		c.Name = reg.RegistrationData.Participant.Name
	}
	if c.To == "" {
		if u, err := s.store.GetUser(ctx, reg.UserID); err == nil {
			c.To, c.Name = u.Email, u.FullName
		}
	}
	s.notify(ctx, c)
}

// reissueMissingTicket covers a success replay for a registration whose
// first ticket render failed. No confirmation is sent again.
func (s *service) reissueMissingTicket(ctx context.Context, reg *model.Registration) {
	if !reg.IsConfirmedPaid() || reg.QRCode != "" {
		return
	}
	event, err := s.store.GetEvent(ctx, reg.EventID)
	if err != nil {
		s.log.Error().Err(err).Str("registration_id", reg.ID).Msg("ticket retry: event lookup failed")
		return
	}
	s.issueTicket(ctx, reg.ID, ticket.Code(event.Slug, reg.ID))
}

func (s *service) issueTicket(ctx context.Context, registrationID, code string) {
	if s.tickets == nil {
		return
	}
	artifact, err := s.tickets.Issue(ctx, code)
	if err != nil {
		s.log.Warn().Err(err).Str("registration_id", registrationID).Msg("failed to render ticket")
		return
	}
	set, err := s.store.SetTicketArtifact(ctx, registrationID, code, artifact)
	if err != nil {
		s.log.Warn().Err(err).Str("registration_id", registrationID).Msg("failed to store ticket")
		return
	}
	if set {
		s.log.Info().Str("registration_id", registrationID).Str("ticket_code", code).Msg("ticket issued")
	}
}

// notify sends in the background, detached from the request context.
func (s *service) notify(ctx context.Context, c model.Confirmation) {
	if s.notifier == nil || c.To == "" {
		return
	}
	go func(ctx context.Context) {
		if err := s.notifier.SendConfirmation(ctx, c); err != nil {
			s.log.Warn().Err(err).Str("reference_id", c.ReferenceID).Str("kind", c.Kind).Msg("failed to send confirmation")
		}
	}(context.WithoutCancel(ctx))
}
