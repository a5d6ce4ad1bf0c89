package service

import (
	"context"
	"errors"
	"strings"

	"ticketflow/internal/auth"
	"ticketflow/internal/model"
	"ticketflow/pkg/validator"
)

type identity struct {
	UserID string
	Email  string
	Name   string
	// Verified is set only for bearer-token callers; anonymous buyers may
	// not rewrite an existing account.
	Verified bool
}

// resolveIdentity prefers the authenticated user over anything the client
// sent. Anonymous buyers are matched by e-mail or get a shadow account.
func (s *service) resolveIdentity(ctx context.Context, user *model.AuthUser, name, email string) (*identity, error) {
	if user != nil {
		id := &identity{UserID: user.ID, Email: validator.NormalizeEmail(user.Email), Name: user.Name, Verified: true}
		if id.Name == "" {
			id.Name = strings.TrimSpace(name)
		}
		return id, nil
	}

	email = validator.NormalizeEmail(email)
	if email == "" || !validator.IsValidEmail(email) {
		return nil, model.NewValidationError(validator.ErrFieldRequired + ": userEmail")
	}
	name = strings.TrimSpace(name)

	existing, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		if name == "" {
			name = existing.FullName
		}
		return &identity{UserID: existing.ID, Email: existing.Email, Name: name}, nil
	case !errors.Is(err, model.ErrUserNotFound):
		return nil, err
	}

	_, hash, err := auth.NewTemporaryCredential(s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateShadowUser(ctx, email, name, hash)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", created.ID).Msg("shadow account created for checkout")
	return &identity{UserID: created.ID, Email: created.Email, Name: name}, nil
}

// saveContactProfile copies participant details to the profile. Failures
// never fail the checkout.
func (s *service) saveContactProfile(ctx context.Context, who *identity, p *model.ParticipantData) {
	if p == nil {
		return
	}
	if err := s.store.UpdateContactProfile(ctx, who.UserID, *p, who.Verified); err != nil {
		s.log.Warn().Err(err).Str("user_id", who.UserID).Msg("failed to persist contact profile")
	}
}
