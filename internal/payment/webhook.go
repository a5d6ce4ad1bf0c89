package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

const SignatureHeader = "Stripe-Signature"

// Event types the reconciler reacts to.
const (
	EventSessionCompleted       = "checkout.session.completed"
	EventSessionAsyncSucceeded  = "checkout.session.async_payment_succeeded"
	EventSessionAsyncFailed     = "checkout.session.async_payment_failed"
	EventSessionExpired         = "checkout.session.expired"
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// Metadata keys set on every session.
const (
	MetadataKind           = "kind"
	MetadataRegistrationID = "registration_id"
	MetadataPhotoOrderID   = "photo_order_id"
)

const DefaultSignatureTolerance = webhook.DefaultTolerance

var (
	ErrMalformedHeader  = errors.New("malformed signature header")
	ErrInvalidSignature = errors.New("signature mismatch")
	ErrTimestampExpired = errors.New("signature timestamp outside tolerance")
	ErrMalformedPayload = errors.New("malformed event payload")
)

type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object Object `json:"object"`
	} `json:"data"`
}

// Object is the subset of a checkout session or payment intent the engine
// reads.
type Object struct {
	ID            string            `json:"id"`
	Object        string            `json:"object"`
	PaymentIntent string            `json:"payment_intent"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// ChargedAmount returns the amount in cents carried by the object, if any.
func (o Object) ChargedAmount() (int64, bool) {
	switch {
	case o.AmountTotal > 0:
		return o.AmountTotal, true
	case o.Amount > 0:
		return o.Amount, true
	}
	return 0, false
}

// IsSession reports whether the event describes a checkout session rather
// than a payment intent.
func (e *Event) IsSession() bool {
	return strings.HasPrefix(e.Type, "checkout.session.")
}

type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	return &WebhookVerifier{secret: secret, tolerance: tolerance}
}

// Verify authenticates payload against a "t=<unix>,v1=<hex>" header and
// decodes it. Nothing is decoded unless a v1 signature matches.
func (v *WebhookVerifier) Verify(payload []byte, header string) (*Event, error) {
	se, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	switch {
	case err == nil:
	case errors.Is(err, webhook.ErrNotSigned), errors.Is(err, webhook.ErrInvalidHeader):
		return nil, ErrMalformedHeader
	case errors.Is(err, webhook.ErrNoValidSignature):
		return nil, ErrInvalidSignature
	case errors.Is(err, webhook.ErrTooOld):
		return nil, ErrTimestampExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	ev := &Event{ID: se.ID, Type: string(se.Type), Created: se.Created}
	if se.Data != nil && len(se.Data.Raw) > 0 {
		if err := json.Unmarshal(se.Data.Raw, &ev.Data.Object); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedPayload)
	}
	return ev, nil
}

// Sign builds a signature header for payload, as the provider does.
func Sign(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
		Scheme:    "v1",
	}).Header
}
