package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"ticketflow/cmd/middleware"
	"ticketflow/internal/auth"
	"ticketflow/internal/payment"
	"ticketflow/internal/service"
)

type Routers struct {
	Service  service.Service
	Webhooks *payment.WebhookVerifier
	Auth     *auth.Verifier
	// Limiter guards the endpoints that open reservations. Optional.
	Limiter ginext.HandlerFunc
	Mode    string
}

func NewRouters(r *Routers) *ginext.Engine {
	mode := r.Mode
	if mode == "" {
		mode = "release"
	}
	app := ginext.New(mode)

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
	}))

	app.GET("/healthz", r.Healthz)

	// The provider authenticates with a signature, not a bearer token.
	app.POST("/v1/webhooks/payment", r.PaymentWebhook)

	apiGroup := app.Group("/v1")
	if r.Auth != nil {
		apiGroup.Use(auth.OptionalAuth(r.Auth))
	}

	limited := []ginext.HandlerFunc{}
	if r.Limiter != nil {
		limited = append(limited, r.Limiter)
	}
	apiGroup.POST("/create-checkout-session", append(limited, r.CreateCheckoutSession)...)
	apiGroup.POST("/create-free-registration", append(limited, r.CreateFreeRegistration)...)
	apiGroup.POST("/create-photo-checkout", append(limited, r.CreatePhotoCheckout)...)
	apiGroup.GET("/registrations/:id", r.GetRegistration)

	return app
}
