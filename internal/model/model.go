package model

import (
	"time"

	"ticketflow/pkg/pricing"
)

type RegistrationStatus string

const (
	StatusPending   RegistrationStatus = "pending"
	StatusConfirmed RegistrationStatus = "confirmed"
	StatusCancelled RegistrationStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Kinds carried in payment session metadata.
const (
	KindRegistration = "registration"
	KindPhotoOrder   = "photo_order"
)

type (
	PriceTier    = pricing.Tier
	PhotoPackage = pricing.Package
)

// Event capacity is unlimited when MaxParticipants is nil or 0.
type Event struct {
	ID                     string     `db:"id" json:"id"`
	Slug                   string     `db:"slug" json:"slug"`
	Name                   string     `db:"name" json:"name"`
	Location               string     `db:"location" json:"location,omitempty"`
	EventDate              time.Time  `db:"event_date" json:"event_date"`
	RegistrationStart      *time.Time `db:"registration_start" json:"registration_start,omitempty"`
	RegistrationEnd        *time.Time `db:"registration_end" json:"registration_end,omitempty"`
	MaxParticipants        *int       `db:"max_participants" json:"max_participants,omitempty"`
	CurrentParticipants    int        `db:"current_participants" json:"current_participants"`
	AllowsPairRegistration bool       `db:"allows_pair_registration" json:"allows_pair_registration"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

type Category struct {
	ID                     string    `db:"id" json:"id"`
	EventID                string    `db:"event_id" json:"event_id"`
	Name                   string    `db:"name" json:"name"`
	Price                  float64   `db:"price" json:"price"`
	MaxParticipants        *int      `db:"max_participants" json:"max_participants,omitempty"`
	CurrentParticipants    int       `db:"current_participants" json:"current_participants"`
	AllowsPairRegistration bool      `db:"allows_pair_registration" json:"allows_pair_registration"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
}

// ParticipantData is the contact payload stored for the participant and the
// optional partner.
type ParticipantData struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	CPF         string `json:"cpf"`
	Phone       string `json:"phone"`
	ShirtSize   string `json:"shirt_size,omitempty"`
	ShirtGender string `json:"shirt_gender,omitempty"`
}

type RegistrationData struct {
	Participant *ParticipantData `json:"participant,omitempty"`
	Partner     *ParticipantData `json:"partner,omitempty"`
}

type Registration struct {
	ID                    string             `db:"id" json:"id"`
	EventID               string             `db:"event_id" json:"event_id"`
	CategoryID            string             `db:"category_id" json:"category_id"`
	UserID                string             `db:"user_id" json:"user_id"`
	Status                RegistrationStatus `db:"status" json:"status"`
	PaymentStatus         PaymentStatus      `db:"payment_status" json:"payment_status"`
	AmountPaid            float64            `db:"amount_paid" json:"amount_paid"`
	PaymentSessionID      string             `db:"payment_session_id" json:"payment_session_id,omitempty"`
	PaymentTransactionID  string             `db:"payment_transaction_id" json:"payment_transaction_id,omitempty"`
	TicketCode            string             `db:"ticket_code" json:"ticket_code,omitempty"`
	QRCode                string             `db:"qr_code" json:"qr_code,omitempty"`
	ShirtSize             string             `db:"shirt_size" json:"shirt_size"`
	ShirtGender           string             `db:"shirt_gender" json:"shirt_gender,omitempty"`
	PartnerName           string             `db:"partner_name" json:"partner_name,omitempty"`
	IsPartnerRegistration bool               `db:"is_partner_registration" json:"is_partner_registration"`
	CapacityUnits         int                `db:"capacity_units" json:"capacity_units"`
	RegistrationData      *RegistrationData  `db:"registration_data" json:"registration_data,omitempty"`
	CreatedAt             time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updated_at"`
}

func (r *Registration) IsConfirmedPaid() bool {
	return r.Status == StatusConfirmed && r.PaymentStatus == PaymentPaid
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	CPF          string    `db:"cpf" json:"cpf,omitempty"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsShadow     bool      `db:"is_shadow" json:"is_shadow"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// AuthUser is the verified identity taken from a bearer token.
type AuthUser struct {
	ID    string
	Email string
	Name  string
}

type Coupon struct {
	ID            string               `db:"id" json:"id"`
	Code          string               `db:"code" json:"code"`
	EventID       string               `db:"event_id" json:"event_id,omitempty"`
	DiscountType  pricing.DiscountType `db:"discount_type" json:"discount_type"`
	DiscountValue float64              `db:"discount_value" json:"discount_value"`
	MaxUses       *int                 `db:"max_uses" json:"max_uses,omitempty"`
	UsedCount     int                  `db:"used_count" json:"used_count"`
	ValidFrom     *time.Time           `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil    *time.Time           `db:"valid_until" json:"valid_until,omitempty"`
	Active        bool                 `db:"active" json:"active"`
}

type CouponUsage struct {
	ID              string    `db:"id" json:"id"`
	CouponID        string    `db:"coupon_id" json:"coupon_id"`
	UserID          string    `db:"user_id" json:"user_id"`
	RegistrationID  string    `db:"registration_id" json:"registration_id"`
	DiscountApplied float64   `db:"discount_applied" json:"discount_applied"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type Photo struct {
	ID      string `db:"id" json:"id"`
	EventID string `db:"event_id" json:"event_id"`
	URL     string `db:"url" json:"url"`
}

type PhotoOrder struct {
	ID                   string             `db:"id" json:"id"`
	UserID               string             `db:"user_id" json:"user_id"`
	EventID              string             `db:"event_id" json:"event_id"`
	Status               RegistrationStatus `db:"status" json:"status"`
	PaymentStatus        PaymentStatus      `db:"payment_status" json:"payment_status"`
	Quantity             int                `db:"quantity" json:"quantity"`
	PackageID            string             `db:"package_id" json:"package_id,omitempty"`
	TotalAmount          float64            `db:"total_amount" json:"total_amount"`
	PaymentSessionID     string             `db:"payment_session_id" json:"payment_session_id,omitempty"`
	PaymentTransactionID string             `db:"payment_transaction_id" json:"payment_transaction_id,omitempty"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

type PhotoOrderItem struct {
	ID        string  `db:"id" json:"id"`
	OrderID   string  `db:"order_id" json:"order_id"`
	PhotoID   string  `db:"photo_id" json:"photo_id"`
	UnitPrice float64 `db:"unit_price" json:"unit_price"`
}

// ReservationInput carries everything the store needs to create or refresh a
// pending registration.
type ReservationInput struct {
	UserID      string
	EventID     string
	CategoryID  string
	ShirtSize   string
	ShirtGender string
	Amount      float64
	SessionID   string
	Participant *ParticipantData
	Partner     *ParticipantData
}

// Units is the capacity a reservation holds: two for a pair.
func (in ReservationInput) Units() int {
	if in.Partner != nil {
		return 2
	}
	return 1
}

type StatusUpdate struct {
	Status        RegistrationStatus
	PaymentStatus PaymentStatus
	TransactionID string
}

// Confirmation is the message queued for the e-mail worker.
type Confirmation struct {
	Kind          string  `json:"kind"`
	ReferenceID   string  `json:"reference_id"`
	To            string  `json:"to"`
	Name          string  `json:"name"`
	EventName     string  `json:"event_name"`
	CategoryName  string  `json:"category_name,omitempty"`
	TicketCode    string  `json:"ticket_code,omitempty"`
	Amount        float64 `json:"amount"`
	PhotoQuantity int     `json:"photo_quantity,omitempty"`
	Attempt       int     `json:"attempt,omitempty"`
}

func (o *PhotoOrder) IsConfirmedPaid() bool {
	return o.Status == StatusConfirmed && o.PaymentStatus == PaymentPaid
}
