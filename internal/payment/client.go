// Package payment talks to the hosted checkout provider: it opens payment
// sessions and authenticates the events the provider posts back.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

var ErrProvider = errors.New("payment provider error")

type Config struct {
	BaseURL    string
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

type SessionParams struct {
	AmountCents   int64
	Currency      string
	ProductName   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Client struct {
	cfg      Config
	sessions session.Client
	log      *zerolog.Logger
}

// NewClient builds a checkout client on its own backend, so tests can point
// BaseURL at a local server. Retries are left to the caller.
func NewClient(cfg Config, log *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	bc := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.BaseURL != "" {
		bc.URL = stripe.String(cfg.BaseURL)
	}
	return &Client{
		cfg: cfg,
		sessions: session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, bc),
			Key: cfg.SecretKey,
		},
		log: log,
	}
}

// Defaults fills currency and redirect URLs left empty by the caller.
func (c *Client) Defaults(p SessionParams) SessionParams {
	if p.Currency == "" {
		p.Currency = c.cfg.Currency
	}
	if p.SuccessURL == "" {
		p.SuccessURL = c.cfg.SuccessURL
	}
	if p.CancelURL == "" {
		p.CancelURL = c.cfg.CancelURL
	}
	return p
}

// CreateSession opens a hosted checkout session for a single line item. The
// metadata is attached to both the session and its payment intent so that
// payment intent events can be matched back as well.
func (c *Client) CreateSession(ctx context.Context, p SessionParams) (*Session, error) {
	p = c.Defaults(p)

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(p.Currency)),
				UnitAmount: stripe.Int64(p.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.ProductName),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: make(map[string]string, len(p.Metadata)),
		},
	}
	params.Context = ctx
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
		params.PaymentIntentData.Metadata[k] = v
	}

	s, err := c.sessions.New(params)
	if err != nil {
		var apiErr *stripe.Error
		if errors.As(err, &apiErr) {
			c.log.Error().
				Int("status", apiErr.HTTPStatusCode).
				Str("provider_message", apiErr.Msg).
				Msg("payment session creation rejected")
			return nil, fmt.Errorf("%w: status %d", ErrProvider, apiErr.HTTPStatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if s.ID == "" || s.URL == "" {
		return nil, fmt.Errorf("%w: session without id or url", ErrProvider)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}
