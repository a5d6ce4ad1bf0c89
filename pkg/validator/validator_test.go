package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidCPF(t *testing.T) {
	tests := []struct {
		name string
		cpf  string
		want bool
	}{
		{name: "valid with mask", cpf: "529.982.247-25", want: true},
		{name: "valid digits only", cpf: "52998224725", want: true},
		{name: "repeated digits", cpf: "111.111.111-11", want: false},
		{name: "all zeros", cpf: "00000000000", want: false},
		{name: "wrong first check digit", cpf: "529.982.247-35", want: false},
		{name: "wrong second check digit", cpf: "529.982.247-24", want: false},
		{name: "too short", cpf: "5299822472", want: false},
		{name: "empty", cpf: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidCPF(tt.cpf))
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("(11) 98765-4321"))
	assert.True(t, IsValidPhone("1133334444"))
	assert.False(t, IsValidPhone("98765-4321"))
	assert.False(t, IsValidPhone("+55 11 98765-4321"))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("runner@example.com"))
	assert.True(t, IsValidEmail("  runner@example.com "))
	assert.False(t, IsValidEmail("runner@example"))
	assert.False(t, IsValidEmail("runner example@x.com"))
	assert.False(t, IsValidEmail(""))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "runner@example.com", NormalizeEmail("  Runner@Example.COM "))
}

type participant struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email_strict"`
	CPF   string `json:"cpf" validate:"required,cpf"`
	Phone string `json:"phone" validate:"required,phone_br"`
}

type signup struct {
	ShirtSize   string       `json:"shirtSize" validate:"required,shirtsize"`
	ShirtGender string       `json:"shirtGender,omitempty" validate:"omitempty,shirtgender"`
	User        participant  `json:"userData"`
	Partner     *participant `json:"partnerData,omitempty" validate:"omitempty"`
}

func validSignup() signup {
	return signup{
		ShirtSize:   "M",
		ShirtGender: "female",
		User: participant{
			Name:  "Ana",
			Email: "ana@example.com",
			CPF:   "529.982.247-25",
			Phone: "11987654321",
		},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, Validate(context.Background(), validSignup()))
}

func TestValidate_FieldSpecificMessages(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *signup)
		field   string
		message string
	}{
		{
			name:    "bad shirt size",
			mutate:  func(s *signup) { s.ShirtSize = "XXL" },
			field:   "shirtSize",
			message: ErrFieldNotAllowed,
		},
		{
			name:    "bad gender",
			mutate:  func(s *signup) { s.ShirtGender = "other" },
			field:   "shirtGender",
			message: ErrFieldNotAllowed,
		},
		{
			name:    "repeated cpf",
			mutate:  func(s *signup) { s.User.CPF = "111.111.111-11" },
			field:   "userData.cpf",
			message: ErrInvalidFormat,
		},
		{
			name:    "short phone",
			mutate:  func(s *signup) { s.User.Phone = "4321" },
			field:   "userData.phone",
			message: ErrInvalidFormat,
		},
		{
			name:    "missing name",
			mutate:  func(s *signup) { s.User.Name = "" },
			field:   "userData.name",
			message: ErrFieldRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSignup()
			tt.mutate(&s)

			err := Validate(context.Background(), s)
			require.Error(t, err)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
			assert.Equal(t, tt.message, fe.Message)
		})
	}
}

func TestValidate_PartnerOnlyWhenPresent(t *testing.T) {
	s := validSignup()
	s.Partner = &participant{Name: "Bia", Email: "bia@example.com", CPF: "123", Phone: "11987654321"}

	err := Validate(context.Background(), s)
	require.Error(t, err)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "partnerData.cpf", fe.Field)
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "userData.cpf", fieldPath("CheckoutRequest.RegistrationRequest.userData.cpf"))
	assert.Equal(t, "shirtSize", fieldPath("signup.shirtSize"))
	assert.Equal(t, "total", fieldPath("total"))
}
