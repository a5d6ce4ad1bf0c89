package model

import "errors"

const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeRegistrationNotOpen     = "REGISTRATION_NOT_OPEN"
	CodeRegistrationClosed      = "REGISTRATION_CLOSED"
	CodeAlreadyRegistered       = "ALREADY_REGISTERED"
	CodePairNotAllowed          = "PAIR_NOT_ALLOWED"
	CodeCategoryFull            = "CATEGORY_FULL"
	CodeEventFull               = "EVENT_FULL"
	CodeInsufficientPairSlots   = "INSUFFICIENT_CAPACITY_FOR_PAIR"
	CodePriceMismatch           = "PRICE_MISMATCH"
	CodeCategoryMismatch        = "CATEGORY_EVENT_MISMATCH"
	CodeNotFree                 = "CATEGORY_NOT_FREE"
	CodeCouponInvalid           = "COUPON_INVALID"
	CodeCouponAlreadyUsed       = "COUPON_ALREADY_USED"
	CodePhotoPricingUnavailable = "PHOTO_PRICING_UNAVAILABLE"
	CodeConflictingState        = "CONFLICTING_REGISTRATION_STATE"
	CodeEventNotFound           = "EVENT_NOT_FOUND"
	CodeCategoryNotFound        = "CATEGORY_NOT_FOUND"
	CodeRegistrationNotFound    = "REGISTRATION_NOT_FOUND"
	CodePhotoOrderNotFound      = "PHOTO_ORDER_NOT_FOUND"
	CodeUnauthorized            = "UNAUTHORIZED"
)

// RegistrationError is a business-rule rejection with a machine-readable code.
// Two errors match under errors.Is when their codes are equal.
type RegistrationError struct {
	Code    string
	Message string
}

func (e *RegistrationError) Error() string {
	return e.Message
}

func (e *RegistrationError) Is(target error) bool {
	var t *RegistrationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func NewRegistrationError(code, msg string) *RegistrationError {
	return &RegistrationError{Code: code, Message: msg}
}

var (
	ErrRegistrationNotOpen   = NewRegistrationError(CodeRegistrationNotOpen, "registration has not opened yet")
	ErrRegistrationClosed    = NewRegistrationError(CodeRegistrationClosed, "registration is closed")
	ErrAlreadyRegistered     = NewRegistrationError(CodeAlreadyRegistered, "you are already registered in this category")
	ErrPairNotAllowed        = NewRegistrationError(CodePairNotAllowed, "pair registration is not allowed for this category")
	ErrCategoryFull          = NewRegistrationError(CodeCategoryFull, "category is full")
	ErrEventFull             = NewRegistrationError(CodeEventFull, "event is full")
	ErrInsufficientPairSlots = NewRegistrationError(CodeInsufficientPairSlots, "not enough capacity left for a pair registration")
	ErrPriceMismatch         = NewRegistrationError(CodePriceMismatch, "submitted price does not match the current price")
	ErrCategoryMismatch      = NewRegistrationError(CodeCategoryMismatch, "category does not belong to this event")
	ErrNotFree               = NewRegistrationError(CodeNotFree, "category is not free")
	ErrCouponInvalid         = NewRegistrationError(CodeCouponInvalid, "coupon is invalid or expired")
	ErrCouponAlreadyUsed     = NewRegistrationError(CodeCouponAlreadyUsed, "coupon was already used")
	ErrPhotoPricing          = NewRegistrationError(CodePhotoPricingUnavailable, "no price is configured for this quantity")
	ErrConflictingState      = NewRegistrationError(CodeConflictingState, "conflicting registration state")
	ErrEventNotFound         = NewRegistrationError(CodeEventNotFound, "event not found")
	ErrCategoryNotFound      = NewRegistrationError(CodeCategoryNotFound, "category not found")
	ErrRegistrationNotFound  = NewRegistrationError(CodeRegistrationNotFound, "registration not found")
	ErrPhotoOrderNotFound    = NewRegistrationError(CodePhotoOrderNotFound, "photo order not found")
	ErrUnauthorized          = NewRegistrationError(CodeUnauthorized, "invalid or expired credentials")

	ErrUserNotFound   = errors.New("user not found")
	ErrCouponNotFound = errors.New("coupon not found")
)

// NewValidationError reports a malformed request field.
func NewValidationError(msg string) *RegistrationError {
	return NewRegistrationError(CodeValidation, msg)
}

// CodeOf returns the business code carried by err, or "".
func CodeOf(err error) string {
	var re *RegistrationError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
