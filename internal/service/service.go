package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"ticketflow/internal/dto"
	"ticketflow/internal/idempotency"
	"ticketflow/internal/model"
	"ticketflow/internal/payment"
	"ticketflow/internal/repo"
	"ticketflow/pkg/validator"
)

// Service is the registration and payment engine exposed to the HTTP layer.
type Service interface {
	CreateCheckoutSession(ctx context.Context, user *model.AuthUser, req dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	CreateFreeRegistration(ctx context.Context, user *model.AuthUser, req dto.FreeRegistrationRequest) (*dto.FreeRegistrationResponse, error)
	CreatePhotoCheckout(ctx context.Context, user *model.AuthUser, req dto.PhotoCheckoutRequest) (*dto.PhotoCheckoutResponse, error)
	HandlePaymentEvent(ctx context.Context, ev *payment.Event) error
	GetRegistration(ctx context.Context, user *model.AuthUser, id string) (*model.Registration, error)
	Ping(ctx context.Context) error
}

//go:generate mockery --name=PaymentGateway --name=TicketIssuer --name=Notifier --output=mocks --with-expecter

type PaymentGateway interface {
	CreateSession(ctx context.Context, p payment.SessionParams) (*payment.Session, error)
}

type TicketIssuer interface {
	Issue(ctx context.Context, code string) (string, error)
}

// Notifier delivers confirmation messages. Calls are made off the request
// path and their errors are only logged.
type Notifier interface {
	SendConfirmation(ctx context.Context, c model.Confirmation) error
}

type Config struct {
	Currency   string
	BcryptCost int
}

type Deps struct {
	Store    repo.Repository
	Gateway  PaymentGateway
	Tickets  TicketIssuer
	Notifier Notifier
	Dedup    idempotency.Store
	Log      *zerolog.Logger
}

type service struct {
	store    repo.Repository
	gateway  PaymentGateway
	tickets  TicketIssuer
	notifier Notifier
	dedup    idempotency.Store
	guard    *Guard
	cfg      Config
	log      *zerolog.Logger
	now      func() time.Time
}

func NewService(d Deps, cfg Config) Service {
	return newService(d, cfg)
}

func newService(d Deps, cfg Config) *service {
	if cfg.Currency == "" {
		cfg.Currency = "brl"
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if d.Dedup == nil {
		d.Dedup = idempotency.Noop{}
	}
	if d.Log == nil {
		nop := zerolog.Nop()
		d.Log = &nop
	}
	s := &service{
		store:    d.Store,
		gateway:  d.Gateway,
		tickets:  d.Tickets,
		notifier: d.Notifier,
		dedup:    d.Dedup,
		cfg:      cfg,
		log:      d.Log,
		now:      time.Now,
	}
	s.guard = NewGuard(d.Store, func() time.Time { return s.now() })
	return s
}

func (s *service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *service) GetRegistration(ctx context.Context, user *model.AuthUser, id string) (*model.Registration, error) {
	if user == nil {
		return nil, model.ErrUnauthorized
	}
	if !isID(id) {
		return nil, model.ErrRegistrationNotFound
	}
	reg, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.UserID != user.ID {
		return nil, model.ErrRegistrationNotFound
	}
	return reg, nil
}

// isID reports whether id has the canonical UUID form used by every key.
func isID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// validate runs struct validation and turns the first failure into a
// user-facing validation error.
func validate(ctx context.Context, req any) error {
	err := validator.Validate(ctx, req)
	if err == nil {
		return nil
	}
	var fe *validator.FieldError
	if errors.As(err, &fe) {
		return model.NewValidationError(fe.Error())
	}
	return model.NewValidationError(err.Error())
}
