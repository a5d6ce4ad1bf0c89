package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ticketflow/internal/dto"
	"ticketflow/internal/model"
	"ticketflow/internal/payment"
	"ticketflow/pkg/pricing"
)

// registrationDraft is what both checkout paths know after identity and
// catalogue lookups.
type registrationDraft struct {
	who         *identity
	event       *model.Event
	category    *model.Category
	participant *model.ParticipantData
	partner     *model.ParticipantData
}

func (s *service) draft(ctx context.Context, user *model.AuthUser, req *dto.RegistrationRequest) (*registrationDraft, error) {
	email := req.UserEmail
	if email == "" {
		email = req.UserData.Email
	}
	name := req.UserName
	if name == "" {
		name = req.UserData.Name
	}
	who, err := s.resolveIdentity(ctx, user, name, email)
	if err != nil {
		return nil, err
	}

	event, category, err := loadEventCategory(ctx, s.store, req.EventID, req.CategoryID)
	if err != nil {
		return nil, err
	}

	d := &registrationDraft{
		who:         who,
		event:       event,
		category:    category,
		participant: req.UserData.ToModel(strings.ToUpper(req.ShirtSize), strings.ToLower(req.ShirtGender)),
		partner:     req.PartnerData.ToModel(),
	}
	if d.partner != nil && d.partner.Name == "" {
		d.partner.Name = req.PartnerName
	}
	return d, nil
}

func (d *registrationDraft) reservation(req *dto.RegistrationRequest, amount float64) model.ReservationInput {
	return model.ReservationInput{
		UserID:      d.who.UserID,
		EventID:     d.event.ID,
		CategoryID:  d.category.ID,
		ShirtSize:   strings.ToUpper(req.ShirtSize),
		ShirtGender: strings.ToLower(req.ShirtGender),
		Amount:      amount,
		Participant: d.participant,
		Partner:     d.partner,
	}
}

type quote struct {
	subtotal float64
	fee      float64
	total    float64
}

func checkClientAmounts(req dto.CheckoutRequest, q quote) error {
	if pricing.AmountsDiffer(req.Subtotal, q.subtotal) ||
		pricing.AmountsDiffer(req.ServiceFee, q.fee) ||
		pricing.AmountsDiffer(req.Total, q.total) {
		return model.ErrPriceMismatch
	}
	return nil
}

func (s *service) CreateCheckoutSession(ctx context.Context, user *model.AuthUser, req dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := validate(ctx, req); err != nil {
		return nil, err
	}

	d, err := s.draft(ctx, user, &req.RegistrationRequest)
	if err != nil {
		return nil, err
	}

	subtotal, coupon, err := s.applyCoupon(ctx, req.CouponCode, d.event.ID, d.who.UserID, d.category.Price)
	if err != nil {
		return nil, err
	}
	fee := pricing.ServiceFee(subtotal)
	q := quote{subtotal: subtotal, fee: fee, total: pricing.Total(subtotal, fee)}
	if err := checkClientAmounts(req, q); err != nil {
		s.log.Warn().
			Str("category_id", d.category.ID).
			Float64("client_total", req.Total).
			Float64("server_total", q.total).
			Msg("checkout price mismatch")
		return nil, err
	}
	if q.total <= 0 {
		return nil, model.NewValidationError("nothing to pay, use free registration")
	}

	if err := s.guard.check(ctx, d.event, d.category, d.who.UserID, req.IsPair()); err != nil {
		return nil, err
	}

	s.saveContactProfile(ctx, d.who, d.participant)

	reg, err := s.store.CreateOrReuse(ctx, d.reservation(&req.RegistrationRequest, q.total))
	if err != nil {
		return nil, err
	}
	if reg.IsConfirmedPaid() {
		return nil, model.ErrAlreadyRegistered
	}

	if err := s.recordCoupon(ctx, coupon, d.who.UserID, reg); err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateSession(ctx, payment.SessionParams{
		AmountCents:   pricing.Cents(q.total),
		Currency:      s.cfg.Currency,
		ProductName:   fmt.Sprintf("%s - %s", d.event.Name, d.category.Name),
		CustomerEmail: d.who.Email,
		Metadata: map[string]string{
			payment.MetadataKind:           model.KindRegistration,
			payment.MetadataRegistrationID: reg.ID,
			"event_id":                     d.event.ID,
			"category_id":                  d.category.ID,
			"user_id":                      d.who.UserID,
		},
	})
	if err != nil {
		s.log.Error().Err(err).Str("registration_id", reg.ID).Msg("failed to open payment session")
		s.releaseCoupon(ctx, coupon, d.who.UserID, reg.ID)
		return nil, fmt.Errorf("create payment session: %w", err)
	}
	if sess.URL == "" {
		s.releaseCoupon(ctx, coupon, d.who.UserID, reg.ID)
		return nil, fmt.Errorf("create payment session: %w: empty checkout url", payment.ErrProvider)
	}

	if _, err := s.store.LinkPaymentSession(ctx, reg.ID, sess.ID); err != nil {
		if errors.Is(err, model.ErrConflictingState) {
			s.releaseCoupon(ctx, coupon, d.who.UserID, reg.ID)
			return nil, err
		}
		// The session metadata still carries the registration id.
		s.log.Warn().Err(err).Str("registration_id", reg.ID).Str("session_id", sess.ID).Msg("failed to link payment session")
	}

	s.log.Info().
		Str("registration_id", reg.ID).
		Str("session_id", sess.ID).
		Float64("amount", q.total).
		Msg("checkout session created")

	return &dto.CheckoutResponse{SessionID: sess.ID, URL: sess.URL, RegistrationID: reg.ID}, nil
}
