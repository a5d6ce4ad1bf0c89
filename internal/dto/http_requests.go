package dto

import "ticketflow/internal/model"

type ParticipantRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Email       string `json:"email" validate:"required,email_strict,max=255"`
	CPF         string `json:"cpf" validate:"required,cpf"`
	Phone       string `json:"phone" validate:"required,phone_br"`
	ShirtSize   string `json:"shirtSize,omitempty" validate:"omitempty,shirtsize"`
	ShirtGender string `json:"shirtGender,omitempty" validate:"omitempty,shirtgender"`
}

// PartnerRequest is looser than the participant: only the name is mandatory.
type PartnerRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Email       string `json:"email,omitempty" validate:"omitempty,email_strict,max=255"`
	CPF         string `json:"cpf,omitempty" validate:"omitempty,cpf"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,phone_br"`
	ShirtSize   string `json:"shirtSize,omitempty" validate:"omitempty,shirtsize"`
	ShirtGender string `json:"shirtGender,omitempty" validate:"omitempty,shirtgender"`
}

type RegistrationRequest struct {
	EventID     string             `json:"eventId" validate:"required,uuid"`
	CategoryID  string             `json:"categoryId" validate:"required,uuid"`
	ShirtSize   string             `json:"shirtSize" validate:"required,shirtsize"`
	ShirtGender string             `json:"shirtGender,omitempty" validate:"omitempty,shirtgender"`
	UserName    string             `json:"userName,omitempty" validate:"omitempty,min=2,max=255"`
	UserEmail   string             `json:"userEmail,omitempty" validate:"omitempty,email_strict,max=255"`
	UserData    ParticipantRequest `json:"userData"`
	PartnerName string             `json:"partnerName,omitempty" validate:"omitempty,max=255"`
	PartnerData *PartnerRequest    `json:"partnerData,omitempty"`
}

type CheckoutRequest struct {
	RegistrationRequest
	Subtotal   float64 `json:"subtotal" validate:"gte=0"`
	ServiceFee float64 `json:"serviceFee" validate:"gte=0"`
	Total      float64 `json:"total" validate:"gte=0"`
	CouponCode string  `json:"couponCode,omitempty" validate:"omitempty,max=64"`
}

type FreeRegistrationRequest struct {
	RegistrationRequest
}

type PhotoCheckoutRequest struct {
	EventID   string   `json:"eventId" validate:"required,uuid"`
	PhotoIDs  []string `json:"photoIds" validate:"required,min=1,max=500,dive,required,uuid"`
	UserName  string   `json:"userName,omitempty" validate:"omitempty,min=2,max=255"`
	UserEmail string   `json:"userEmail,omitempty" validate:"omitempty,email_strict,max=255"`
	Total     float64  `json:"total" validate:"gte=0"`
}

// IsPair reports whether the request books a second slot for a partner.
func (r *RegistrationRequest) IsPair() bool {
	return r.PartnerData != nil
}

func (p ParticipantRequest) ToModel(fallbackShirtSize, fallbackGender string) *model.ParticipantData {
	return &model.ParticipantData{
		Name:        p.Name,
		Email:       p.Email,
		CPF:         p.CPF,
		Phone:       p.Phone,
		ShirtSize:   firstNonEmpty(p.ShirtSize, fallbackShirtSize),
		ShirtGender: firstNonEmpty(p.ShirtGender, fallbackGender),
	}
}

func (p *PartnerRequest) ToModel() *model.ParticipantData {
	if p == nil {
		return nil
	}
	return &model.ParticipantData{
		Name:        p.Name,
		Email:       p.Email,
		CPF:         p.CPF,
		Phone:       p.Phone,
		ShirtSize:   p.ShirtSize,
		ShirtGender: p.ShirtGender,
	}
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
