package service

import (
	"context"
	"fmt"

	"ticketflow/internal/dto"
	"ticketflow/internal/model"
	"ticketflow/internal/payment"
	"ticketflow/pkg/pricing"
)

// CreatePhotoCheckout prices the selection server-side and opens a payment
// session. The order, its items and the session span an external call, so
// a failure after the order row exists deletes that row.
func (s *service) CreatePhotoCheckout(ctx context.Context, user *model.AuthUser, req dto.PhotoCheckoutRequest) (*dto.PhotoCheckoutResponse, error) {
	if err := validate(ctx, req); err != nil {
		return nil, err
	}

	who, err := s.resolveIdentity(ctx, user, req.UserName, req.UserEmail)
	if err != nil {
		return nil, err
	}
	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	ids := uniqueIDs(req.PhotoIDs)
	photos, err := s.store.GetPhotos(ctx, event.ID, ids)
	if err != nil {
		return nil, err
	}
	if len(photos) != len(ids) {
		return nil, model.NewValidationError("photoIds: unknown photo for this event")
	}

	tiers, err := s.store.GetPriceTiers(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	packages, err := s.store.GetPhotoPackages(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	q, ok := pricing.ResolvePhotoPrice(tiers, packages, len(photos))
	if !ok || q.Total <= 0 {
		return nil, model.ErrPhotoPricing
	}
	if pricing.AmountsDiffer(req.Total, q.Total) {
		s.log.Warn().Str("event_id", event.ID).Float64("client_total", req.Total).Float64("server_total", q.Total).Msg("photo price mismatch")
		return nil, model.ErrPriceMismatch
	}

	order := &model.PhotoOrder{
		UserID:        who.UserID,
		EventID:       event.ID,
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentPending,
		Quantity:      len(photos),
		TotalAmount:   q.Total,
	}
	if q.Package != nil {
		order.PackageID = q.Package.ID
	}
	if err := s.store.CreatePhotoOrder(ctx, order); err != nil {
		return nil, err
	}

	unit := pricing.Round(q.Total / float64(len(photos)))
	items := make([]model.PhotoOrderItem, 0, len(photos))
	for _, p := range photos {
		items = append(items, model.PhotoOrderItem{OrderID: order.ID, PhotoID: p.ID, UnitPrice: unit})
	}
	if err := s.store.CreatePhotoOrderItems(ctx, items); err != nil {
		s.dropPhotoOrder(ctx, order.ID)
		return nil, err
	}

	sess, err := s.gateway.CreateSession(ctx, payment.SessionParams{
		AmountCents:   pricing.Cents(q.Total),
		Currency:      s.cfg.Currency,
		ProductName:   fmt.Sprintf("%s - %d photo(s)", event.Name, len(photos)),
		CustomerEmail: who.Email,
		Metadata: map[string]string{
			payment.MetadataKind:         model.KindPhotoOrder,
			payment.MetadataPhotoOrderID: order.ID,
			"event_id":                   event.ID,
			"user_id":                    who.UserID,
		},
	})
	if err == nil && sess.URL == "" {
		err = fmt.Errorf("%w: empty checkout url", payment.ErrProvider)
	}
	if err != nil {
		s.log.Error().Err(err).Str("photo_order_id", order.ID).Msg("failed to open payment session for photo order")
		s.dropPhotoOrder(ctx, order.ID)
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	if err := s.store.LinkPhotoOrderSession(ctx, order.ID, sess.ID); err != nil {
		s.log.Error().Err(err).Str("photo_order_id", order.ID).Msg("failed to link photo order session")
		s.dropPhotoOrder(ctx, order.ID)
		return nil, err
	}

	s.log.Info().
		Str("photo_order_id", order.ID).
		Int("quantity", order.Quantity).
		Float64("total", q.Total).
		Msg("photo checkout session created")

	return &dto.PhotoCheckoutResponse{SessionID: sess.ID, URL: sess.URL, OrderID: order.ID, Total: q.Total}, nil
}

func (s *service) dropPhotoOrder(ctx context.Context, id string) {
	if err := s.store.DeletePhotoOrder(context.WithoutCancel(ctx), id); err != nil {
		s.log.Error().Err(err).Str("photo_order_id", id).Msg("compensating delete of photo order failed")
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
