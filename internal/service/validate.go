package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/Kerhoff/ShoppingBoT/internal/models"
)

// FieldError describes one invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors extracts every FieldError from err, which is usually a
// *multierror.Error returned by a Validate method.
func FieldErrors(err error) []*FieldError {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		var out []*FieldError
		for _, e := range merr.Errors {
			var fe *FieldError
			if errors.As(e, &fe) {
				out = append(out, fe)
			}
		}
		return out
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return []*FieldError{fe}
	}
	return nil
}

// NewItemInput is the form submitted to add an item. Code carries text
// decoded by a scanner and is used as the name when Name is blank.
type NewItemInput struct {
	Name         string  `json:"name"`
	Code         string  `json:"code"`
	Quantity     int     `json:"quantity"`
	PlannedValue float64 `json:"planned_value"`
}

// ItemName returns the trimmed name, falling back to the scanned code.
func (in NewItemInput) ItemName() string {
	if name := strings.TrimSpace(in.Name); name != "" {
		return name
	}
	return strings.TrimSpace(in.Code)
}

// Validate reports every invalid field at once.
func (in NewItemInput) Validate() error {
	var result *multierror.Error
	if in.ItemName() == "" {
		result = multierror.Append(result, &FieldError{Field: "name", Message: "item name is required"})
	}
	if in.Quantity < models.MinQuantity {
		result = multierror.Append(result, &FieldError{Field: "quantity", Message: "quantity must be at least 1"})
	}
	if math.IsNaN(in.PlannedValue) || math.IsInf(in.PlannedValue, 0) || in.PlannedValue < models.MinPlanned {
		result = multierror.Append(result, &FieldError{Field: "planned_value", Message: "planned value cannot be negative"})
	}
	return result.ErrorOrNil()
}

// ClampQuantity raises quantities below the floor to 1.
func ClampQuantity(q int) int {
	if q < models.MinQuantity {
		return models.MinQuantity
	}
	return q
}

// ClampAmount maps NaN, infinities and negative amounts to 0.
func ClampAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// ParseQuantity reads a committed quantity edit. Fractions are truncated;
// anything unparsable or below 1 becomes 1.
func ParseQuantity(raw string) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return models.MinQuantity
	}
	v = math.Trunc(v)
	if v > math.MaxInt32 {
		v = math.MaxInt32
	}
	return ClampQuantity(int(v))
}

// ParseAmount reads a committed money edit; anything unparsable or
// negative becomes 0.
func ParseAmount(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return ClampAmount(v)
}
