package dto

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
)

const (
	InternalError   = "Service is currently unavailable. Please try again later."
	InvalidJSON     = "Invalid JSON format"
	InvalidCode     = "VALIDATION_ERROR"
	UnavailableCode = "SERVICE_UNAVAILABLE"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type CheckoutResponse struct {
	SessionID      string `json:"sessionId"`
	URL            string `json:"url"`
	RegistrationID string `json:"registrationId"`
}

type FreeRegistrationResponse struct {
	RegistrationID string `json:"registrationId"`
	Success        bool   `json:"success"`
}

type PhotoCheckoutResponse struct {
	SessionID string  `json:"sessionId"`
	URL       string  `json:"url"`
	OrderID   string  `json:"orderId"`
	Total     float64 `json:"total"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

type RegistrationResponse struct {
	ID                    string    `json:"id"`
	EventID               string    `json:"eventId"`
	CategoryID            string    `json:"categoryId"`
	Status                string    `json:"status"`
	PaymentStatus         string    `json:"paymentStatus"`
	AmountPaid            float64   `json:"amountPaid"`
	TicketCode            string    `json:"ticketCode,omitempty"`
	QRCode                string    `json:"qrCode,omitempty"`
	ShirtSize             string    `json:"shirtSize,omitempty"`
	PartnerName           string    `json:"partnerName,omitempty"`
	IsPartnerRegistration bool      `json:"isPartnerRegistration"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func ErrorWithStatus(c *ginext.Context, status int, code, desc string) {
	c.JSON(status, ErrorResponse{Error: desc, Code: code})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorWithStatus(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *ginext.Context) {
	ErrorWithStatus(c, http.StatusInternalServerError, UnavailableCode, InternalError)
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, data)
}
