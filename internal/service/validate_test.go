package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItemInputValidate(t *testing.T) {
	tests := []struct {
		name       string
		in         NewItemInput
		wantFields []string
	}{
		{name: "valid", in: NewItemInput{Name: "Milk", Quantity: 2, PlannedValue: 3000}},
		{name: "code as name", in: NewItemInput{Code: "123", Quantity: 1}},
		{name: "blank name", in: NewItemInput{Name: "  ", Quantity: 1}, wantFields: []string{"name"}},
		{name: "zero quantity", in: NewItemInput{Name: "Milk"}, wantFields: []string{"quantity"}},
		{name: "negative price", in: NewItemInput{Name: "Milk", Quantity: 1, PlannedValue: -1}, wantFields: []string{"planned_value"}},
		{name: "NaN price", in: NewItemInput{Name: "Milk", Quantity: 1, PlannedValue: math.NaN()}, wantFields: []string{"planned_value"}},
		{
			name:       "everything wrong",
			in:         NewItemInput{Quantity: -2, PlannedValue: -5},
			wantFields: []string{"name", "quantity", "planned_value"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var got []string
			for _, fe := range FieldErrors(err) {
				got = append(got, fe.Field)
			}
			assert.Equal(t, tt.wantFields, got)
		})
	}
}

func TestFieldErrorsFromSingleError(t *testing.T) {
	err := &FieldError{Field: "name", Message: "item name is required"}
	assert.Equal(t, []*FieldError{err}, FieldErrors(err))
	assert.Nil(t, FieldErrors(errStoreDown))
}

func TestParseQuantity(t *testing.T) {
	tests := map[string]int{
		"3":      3,
		" 7 ":    7,
		"-5":     1,
		"0":      1,
		"2.9":    2,
		"":       1,
		"lots":   1,
		"Inf":    1,
		"1e12":   math.MaxInt32,
		"0.5":    1,
		"100000": 100000,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseQuantity(raw), "raw %q", raw)
	}
}

func TestParseAmount(t *testing.T) {
	tests := map[string]float64{
		"2800":   2800,
		"12.5":   12.5,
		"-1":     0,
		"NaN":    0,
		"+Inf":   0,
		"":       0,
		"cheap":  0,
		" 0.01 ": 0.01,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseAmount(raw), "raw %q", raw)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, ClampQuantity(-10))
	assert.Equal(t, 4, ClampQuantity(4))
	assert.Zero(t, ClampAmount(math.Inf(-1)))
	assert.Equal(t, 5.5, ClampAmount(5.5))
}
