package validator

import (
	"regexp"
	"strings"
)

var (
	emailRegex  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigitsRe = regexp.MustCompile(`[^\d]`)
)

// OnlyDigits strips every non-digit character (CPF and phone masks).
func OnlyDigits(s string) string {
	return nonDigitsRe.ReplaceAllString(s, "")
}

// NormalizeEmail is the lookup key used for accounts and partner profiles.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// IsValidPhone accepts Brazilian numbers with area code: 10 digits for
// landlines, 11 for mobiles.
func IsValidPhone(phone string) bool {
	n := len(OnlyDigits(phone))
	return n == 10 || n == 11
}

// IsValidCPF runs the CPF check-digit algorithm. Sequences of a single
// repeated digit pass the arithmetic but are never issued, so they are rejected.
func IsValidCPF(cpf string) bool {
	digits := OnlyDigits(cpf)
	if len(digits) != 11 {
		return false
	}

	repeated := true
	for i := 1; i < 11; i++ {
		if digits[i] != digits[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return false
	}

	d := make([]int, 11)
	for i := range digits {
		d[i] = int(digits[i] - '0')
	}

	return checkDigit(d[:9], 10) == d[9] && checkDigit(d[:10], 11) == d[10]
}

func checkDigit(d []int, weight int) int {
	sum := 0
	for i, v := range d {
		sum += v * (weight - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		return 0
	}
	return r
}
