package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestCheckCapacity(t *testing.T) {
	tests := []struct {
		name    string
		max     *int
		current int
		units   int
		want    error
	}{
		{name: "unset max", max: nil, current: 1000, units: 2, want: nil},
		{name: "zero max is unlimited", max: intPtr(0), current: 50, units: 1, want: nil},
		{name: "last slot single", max: intPtr(10), current: 9, units: 1, want: nil},
		{name: "last slot pair", max: intPtr(10), current: 9, units: 2, want: ErrInsufficientPairSlots},
		{name: "full single", max: intPtr(10), current: 10, units: 1, want: ErrCategoryFull},
		{name: "full pair", max: intPtr(10), current: 10, units: 2, want: ErrCategoryFull},
		{name: "over booked", max: intPtr(10), current: 12, units: 1, want: ErrCategoryFull},
		{name: "nothing requested", max: intPtr(1), current: 1, units: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCapacity(tt.max, tt.current, tt.units, ErrCategoryFull)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegistrationError_IsMatchesByCode(t *testing.T) {
	err := NewRegistrationError(CodeEventFull, "custom message")
	assert.ErrorIs(t, err, ErrEventFull)
	assert.NotErrorIs(t, err, ErrCategoryFull)
	assert.Equal(t, CodeEventFull, CodeOf(err))
	assert.Equal(t, "", CodeOf(assert.AnError))
}
