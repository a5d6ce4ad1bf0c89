package validator

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator"
)

var global *validator.Validate

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrFieldNotAllowed    = "Field has a value that is not allowed"
	ErrUnknownValidation  = "Unknown validation error"
)

// ShirtSizes and ShirtGenders are the enumerations accepted on registrations.
var (
	ShirtSizes   = []string{"PP", "P", "M", "G", "GG", "XG", "XGG"}
	ShirtGenders = []string{"male", "female", "unisex"}
)

// FieldError names the first field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message + ": " + e.Field
}

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("cpf", validateCPF)
	_ = v.RegisterValidation("phone_br", validatePhone)
	_ = v.RegisterValidation("email_strict", validateEmail)
	_ = v.RegisterValidation("shirtsize", validateShirtSize)
	_ = v.RegisterValidation("shirtgender", validateShirtGender)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func validateCPF(fl validator.FieldLevel) bool {
	return IsValidCPF(fl.Field().String())
}

func validatePhone(fl validator.FieldLevel) bool {
	return IsValidPhone(fl.Field().String())
}

func validateEmail(fl validator.FieldLevel) bool {
	return IsValidEmail(fl.Field().String())
}

func validateShirtSize(fl validator.FieldLevel) bool {
	return oneOf(strings.ToUpper(strings.TrimSpace(fl.Field().String())), ShirtSizes)
}

func validateShirtGender(fl validator.FieldLevel) bool {
	return oneOf(strings.ToLower(strings.TrimSpace(fl.Field().String())), ShirtGenders)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrors) == 0 {
		return fmt.Errorf("validate: %w", err)
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "cpf", "phone_br", "email_strict", "email", "uuid":
		msg = ErrInvalidFormat
	case "required":
		msg = ErrFieldRequired
	case "max":
		msg = ErrFieldExceedsMaxLen
	case "min":
		msg = ErrFieldBelowMinLen
	case "lt", "lte":
		msg = ErrFieldExceedsMaxVal
	case "gt", "gte":
		msg = ErrFieldBelowMinVal
	case "shirtsize", "shirtgender", "oneof":
		msg = ErrFieldNotAllowed
	default:
		msg = ErrUnknownValidation
	}
	return &FieldError{Field: fieldPath(ve.Namespace()), Message: msg}
}

// fieldPath drops Go type names (the root struct and embedded structs) from
// a validator namespace, leaving the JSON path.
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) == 1 {
		return ns
	}
	parts = parts[1:]
	kept := make([]string, 0, len(parts))
	for i, p := range parts {
		if i == len(parts)-1 || p == "" || !unicode.IsUpper([]rune(p)[0]) {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}
