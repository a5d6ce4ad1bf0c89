package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ticketflow/internal/model"
	"ticketflow/pkg/pricing"
)

type appliedCoupon struct {
	coupon   *model.Coupon
	discount float64
}

// applyCoupon validates code for the user and event and returns the
// discounted price. An empty code leaves the price untouched.
func (s *service) applyCoupon(ctx context.Context, code, eventID, userID string, price float64) (float64, *appliedCoupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return price, nil, nil
	}

	c, err := s.store.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, model.ErrCouponNotFound) {
			return 0, nil, model.ErrCouponInvalid
		}
		return 0, nil, err
	}
	if !couponUsable(c, eventID, s.now()) {
		return 0, nil, model.ErrCouponInvalid
	}

	used, err := s.store.HasCouponUsage(ctx, c.ID, userID)
	if err != nil {
		return 0, nil, err
	}
	if used {
		return 0, nil, model.ErrCouponAlreadyUsed
	}

	discounted := pricing.ApplyDiscount(price, c.DiscountType, c.DiscountValue)
	return discounted, &appliedCoupon{coupon: c, discount: pricing.Round(price - discounted)}, nil
}

func couponUsable(c *model.Coupon, eventID string, now time.Time) bool {
	switch {
	case !c.Active:
		return false
	case c.EventID != "" && c.EventID != eventID:
		return false
	case c.ValidFrom != nil && now.Before(*c.ValidFrom):
		return false
	case c.ValidUntil != nil && now.After(*c.ValidUntil):
		return false
	case c.MaxUses != nil && c.UsedCount >= *c.MaxUses:
		return false
	}
	return true
}

// recordCoupon stores the usage once the registration exists. Losing the
// race to another checkout cancels the registration just created.
func (s *service) recordCoupon(ctx context.Context, applied *appliedCoupon, userID string, reg *model.Registration) error {
	if applied == nil {
		return nil
	}
	err := s.store.RecordCouponUsage(ctx, &model.CouponUsage{
		CouponID:        applied.coupon.ID,
		UserID:          userID,
		RegistrationID:  reg.ID,
		DiscountApplied: applied.discount,
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, model.ErrCouponAlreadyUsed) || errors.Is(err, model.ErrCouponInvalid) {
		if _, _, cErr := s.store.UpdatePaymentStatus(ctx, reg.ID, model.StatusUpdate{
			Status:        model.StatusCancelled,
			PaymentStatus: model.PaymentFailed,
		}); cErr != nil {
			s.log.Error().Err(cErr).Str("registration_id", reg.ID).Msg("failed to cancel registration after coupon conflict")
		}
	}
	return err
}

// releaseCoupon gives the usage back when the checkout fails after it was
// recorded, so a retry can apply the same coupon.
func (s *service) releaseCoupon(ctx context.Context, applied *appliedCoupon, userID, registrationID string) {
	if applied == nil {
		return
	}
	if err := s.store.DeleteCouponUsage(context.WithoutCancel(ctx), applied.coupon.ID, userID, registrationID); err != nil {
		s.log.Error().Err(err).
			Str("coupon_id", applied.coupon.ID).
			Str("registration_id", registrationID).
			Msg("failed to release coupon usage")
	}
}
