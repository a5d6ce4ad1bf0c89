package service

import (
	"context"
	"errors"

	"ticketflow/internal/model"
	"ticketflow/internal/payment"
	"ticketflow/pkg/pricing"
)

// HandlePaymentEvent applies a verified provider event. It returns an error
// only for infrastructure failures, which the provider should retry; events
// that match nothing or are out of order are acknowledged.
func (s *service) HandlePaymentEvent(ctx context.Context, ev *payment.Event) error {
	o := classify(ev.Type)
	log := s.log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()

	if o == outcomeIgnored {
		log.Debug().Msg("payment event ignored")
		return nil
	}

	if ev.ID != "" {
		seen, err := s.dedup.Seen(ctx, ev.ID)
		if err != nil {
			log.Warn().Err(err).Msg("dedup lookup failed")
		}
		if seen {
			log.Info().Msg("payment event already processed")
			return nil
		}
	}

	var err error
	if ev.Data.Object.Metadata[payment.MetadataKind] == model.KindPhotoOrder {
		err = s.reconcilePhotoOrder(ctx, ev, o)
	} else {
		err = s.reconcileRegistration(ctx, ev, o)
	}
	if err != nil {
		return err
	}

	if ev.ID != "" {
		if err := s.dedup.Remember(ctx, ev.ID); err != nil {
			log.Warn().Err(err).Msg("failed to remember payment event")
		}
	}
	return nil
}

// transactionID is the payment intent behind an event object.
func transactionID(ev *payment.Event) string {
	if ev.IsSession() {
		return ev.Data.Object.PaymentIntent
	}
	return ev.Data.Object.ID
}

func (s *service) findRegistration(ctx context.Context, ev *payment.Event) (*model.Registration, error) {
	obj := ev.Data.Object
	var (
		reg *model.Registration
		err error
	)
	if ev.IsSession() {
		reg, err = s.store.GetRegistrationBySession(ctx, obj.ID)
	} else {
		reg, err = s.store.GetRegistrationByTransaction(ctx, obj.ID)
	}
	if err == nil || !errors.Is(err, model.ErrRegistrationNotFound) {
		return reg, err
	}

	id := obj.Metadata[payment.MetadataRegistrationID]
	if !isID(id) {
		return nil, model.ErrRegistrationNotFound
	}
	return s.store.GetRegistration(ctx, id)
}

func (s *service) reconcileRegistration(ctx context.Context, ev *payment.Event, o outcome) error {
	log := s.log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()
	obj := ev.Data.Object

	reg, err := s.findRegistration(ctx, ev)
	if err != nil {
		if errors.Is(err, model.ErrRegistrationNotFound) {
			log.Warn().Str("object_id", obj.ID).Msg("no registration for payment event")
			return nil
		}
		return err
	}
	log = log.With().Str("registration_id", reg.ID).Logger()

	if o == outcomeExpired && ev.IsSession() && reg.PaymentSessionID != "" && reg.PaymentSessionID != obj.ID {
		log.Info().Str("session_id", obj.ID).Msg("expiry for superseded session ignored")
		return nil
	}

	upd, act := nextState(reg.Status, reg.PaymentStatus, o)
	if !act {
		log.Debug().Str("status", string(reg.Status)).Msg("payment event needs no transition")
		if o == outcomeSucceeded {
			s.reissueMissingTicket(ctx, reg)
		}
		return nil
	}

	if o == outcomeSucceeded {
		if charged, ok := obj.ChargedAmount(); ok && charged != pricing.Cents(reg.AmountPaid) {
			log.Error().
				Int64("charged_cents", charged).
				Int64("expected_cents", pricing.Cents(reg.AmountPaid)).
				Msg("fraud alert: charged amount differs from registration amount")
			return nil
		}
		upd.TransactionID = transactionID(ev)
	}

	updated, changed, err := s.store.UpdatePaymentStatus(ctx, reg.ID, upd)
	if err != nil {
		if isCapacityLoss(err) {
			log.Error().Err(err).Msg("payment received but registration cannot be restored, refund required")
			return nil
		}
		return err
	}
	if !changed {
		if o == outcomeSucceeded && updated != nil {
			s.reissueMissingTicket(ctx, updated)
		}
		return nil
	}

	log.Info().
		Str("status", string(updated.Status)).
		Str("payment_status", string(updated.PaymentStatus)).
		Str("outcome", o.String()).
		Msg("registration reconciled")

	if o == outcomeSucceeded {
		s.fulfilRegistration(ctx, updated, nil, nil)
	}
	return nil
}

func isCapacityLoss(err error) bool {
	return errors.Is(err, model.ErrCategoryFull) ||
		errors.Is(err, model.ErrEventFull) ||
		errors.Is(err, model.ErrInsufficientPairSlots) ||
		errors.Is(err, model.ErrConflictingState)
}

func (s *service) reconcilePhotoOrder(ctx context.Context, ev *payment.Event, o outcome) error {
	log := s.log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()
	obj := ev.Data.Object

	var (
		order *model.PhotoOrder
		err   error
	)
	if ev.IsSession() {
		order, err = s.store.GetPhotoOrderBySession(ctx, obj.ID)
	} else {
		err = model.ErrPhotoOrderNotFound
	}
	if errors.Is(err, model.ErrPhotoOrderNotFound) {
		if id := obj.Metadata[payment.MetadataPhotoOrderID]; isID(id) {
			order, err = s.store.GetPhotoOrder(ctx, id)
		}
	}
	if err != nil {
		if errors.Is(err, model.ErrPhotoOrderNotFound) {
			log.Warn().Str("object_id", obj.ID).Msg("no photo order for payment event")
			return nil
		}
		return err
	}
	log = log.With().Str("photo_order_id", order.ID).Logger()

	if o == outcomeExpired && ev.IsSession() && order.PaymentSessionID != "" && order.PaymentSessionID != obj.ID {
		log.Info().Msg("expiry for superseded session ignored")
		return nil
	}

	upd, act := nextState(order.Status, order.PaymentStatus, o)
	if !act {
		return nil
	}
	if o == outcomeSucceeded {
		if charged, ok := obj.ChargedAmount(); ok && charged != pricing.Cents(order.TotalAmount) {
			log.Error().
				Int64("charged_cents", charged).
				Int64("expected_cents", pricing.Cents(order.TotalAmount)).
				Msg("fraud alert: charged amount differs from photo order total")
			return nil
		}
		upd.TransactionID = transactionID(ev)
	}

	updated, changed, err := s.store.UpdatePhotoOrderStatus(ctx, order.ID, upd)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	log.Info().Str("status", string(updated.Status)).Str("outcome", o.String()).Msg("photo order reconciled")

	if o == outcomeSucceeded {
		s.notifyPhotoOrder(ctx, updated)
	}
	return nil
}

func (s *service) notifyPhotoOrder(ctx context.Context, order *model.PhotoOrder) {
	c := model.Confirmation{
		Kind:          model.KindPhotoOrder,
		ReferenceID:   order.ID,
		Amount:        order.TotalAmount,
		PhotoQuantity: order.Quantity,
	}
	if u, err := s.store.GetUser(ctx, order.UserID); err == nil {
		c.To, c.Name = u.Email, u.FullName
	} else {
		s.log.Warn().Err(err).Str("photo_order_id", order.ID).Msg("photo order buyer lookup failed")
	}
	if e, err := s.store.GetEvent(ctx, order.EventID); err == nil {
		c.EventName = e.Name
	}
	s.notify(ctx, c)
}
