package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"ticketflow/internal/auth"
	"ticketflow/internal/dto"
	"ticketflow/internal/model"
	"ticketflow/internal/payment"
)

const maxWebhookBody = 1 << 20

func (r *Routers) CreateCheckoutSession(c *ginext.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Debug().Err(err).Msg("failed to parse checkout request")
		dto.BadResponseError(c, dto.InvalidCode, dto.InvalidJSON)
		return
	}

	resp, err := r.Service.CreateCheckoutSession(c.Request.Context(), auth.UserFromContext(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	dto.SuccessResponse(c, resp)
}

func (r *Routers) CreateFreeRegistration(c *ginext.Context) {
	var req dto.FreeRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Debug().Err(err).Msg("failed to parse free registration request")
		dto.BadResponseError(c, dto.InvalidCode, dto.InvalidJSON)
		return
	}

	resp, err := r.Service.CreateFreeRegistration(c.Request.Context(), auth.UserFromContext(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	dto.SuccessResponse(c, resp)
}

func (r *Routers) CreatePhotoCheckout(c *ginext.Context) {
	var req dto.PhotoCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Debug().Err(err).Msg("failed to parse photo checkout request")
		dto.BadResponseError(c, dto.InvalidCode, dto.InvalidJSON)
		return
	}

	resp, err := r.Service.CreatePhotoCheckout(c.Request.Context(), auth.UserFromContext(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	dto.SuccessResponse(c, resp)
}

func (r *Routers) GetRegistration(c *ginext.Context) {
	reg, err := r.Service.GetRegistration(c.Request.Context(), auth.UserFromContext(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	dto.SuccessResponse(c, toRegistrationResponse(reg))
}

// PaymentWebhook answers 400 only when the payload cannot be trusted or
// parsed. Handled and ignored events get 200; store failures get 500 so
// the provider redelivers.
func (r *Routers) PaymentWebhook(c *ginext.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		dto.BadResponseError(c, "INVALID_PAYLOAD", "cannot read payload")
		return
	}

	ev, err := r.Webhooks.Verify(payload, c.GetHeader(payment.SignatureHeader))
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("rejected payment webhook")
		code := "INVALID_SIGNATURE"
		if errors.Is(err, payment.ErrMalformedPayload) {
			code = "INVALID_PAYLOAD"
		}
		dto.BadResponseError(c, code, err.Error())
		return
	}

	if err := r.Service.HandlePaymentEvent(c.Request.Context(), ev); err != nil {
		zlog.Logger.Error().Err(err).Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("payment webhook processing failed")
		dto.InternalServerError(c)
		return
	}
	dto.SuccessResponse(c, dto.WebhookResponse{Received: true})
}

func (r *Routers) Healthz(c *ginext.Context) {
	if err := r.Service.Ping(c.Request.Context()); err != nil {
		zlog.Logger.Error().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, ginext.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, ginext.H{"status": "ok"})
}

func toRegistrationResponse(reg *model.Registration) dto.RegistrationResponse {
	return dto.RegistrationResponse{
		ID:                    reg.ID,
		EventID:               reg.EventID,
		CategoryID:            reg.CategoryID,
		Status:                string(reg.Status),
		PaymentStatus:         string(reg.PaymentStatus),
		AmountPaid:            reg.AmountPaid,
		TicketCode:            reg.TicketCode,
		QRCode:                reg.QRCode,
		ShirtSize:             reg.ShirtSize,
		PartnerName:           reg.PartnerName,
		IsPartnerRegistration: reg.IsPartnerRegistration,
		CreatedAt:             reg.CreatedAt,
		UpdatedAt:             reg.UpdatedAt,
	}
}
