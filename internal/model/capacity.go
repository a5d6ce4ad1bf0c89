package model

// Unlimited reports whether a capacity maximum imposes no bound.
// A zero maximum is treated as unlimited, the same as an unset one.
func Unlimited(limit *int) bool {
	return limit == nil || *limit == 0
}

// CheckCapacity reports whether units more slots fit under limit. full is the
// error returned when nothing is left; a pair that finds a single slot left
// gets ErrInsufficientPairSlots instead.
func CheckCapacity(limit *int, current, units int, full *RegistrationError) error {
	if units <= 0 || Unlimited(limit) {
		return nil
	}
	remaining := *limit - current
	if remaining >= units {
		return nil
	}
	if remaining < 1 {
		return full
	}
	return ErrInsufficientPairSlots
}
