package models

import "time"

// ShoppingItem represents one entry in a user's shopping list
type ShoppingItem struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Quantity     int       `json:"quantity" db:"quantity"`
	PlannedValue float64   `json:"planned_value" db:"planned_value"`
	ActualValue  float64   `json:"actual_value" db:"actual_value"`
	Purchased    bool      `json:"purchased" db:"purchased"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PlannedTotal returns the planned cost of the whole line.
func (i *ShoppingItem) PlannedTotal() float64 {
	return i.PlannedValue * float64(i.Quantity)
}

// ActualTotal returns the paid cost of the whole line, zero while pending.
func (i *ShoppingItem) ActualTotal() float64 {
	if !i.Purchased {
		return 0
	}
	return i.ActualValue * float64(i.Quantity)
}

// ItemField names a field that can be edited in place on an item.
type ItemField string

const (
	FieldQuantity    ItemField = "quantity"
	FieldActualValue ItemField = "actualValue"
)

// Floors for clamped numeric fields.
const (
	MinQuantity    = 1
	MinPlanned     = 0.0
	MinActualValue = 0.0
)

// ItemFields is a partial document update. Nil fields are left untouched.
type ItemFields struct {
	Name         *string  `json:"name,omitempty"`
	Quantity     *int     `json:"quantity,omitempty"`
	PlannedValue *float64 `json:"planned_value,omitempty"`
	ActualValue  *float64 `json:"actual_value,omitempty"`
	Purchased    *bool    `json:"purchased,omitempty"`
}

// IsEmpty reports whether the update carries no field.
func (f ItemFields) IsEmpty() bool {
	return f.Name == nil && f.Quantity == nil && f.PlannedValue == nil &&
		f.ActualValue == nil && f.Purchased == nil
}

// Apply writes the non-nil fields onto a copy of item and returns it.
func (f ItemFields) Apply(item ShoppingItem) ShoppingItem {
	if f.Name != nil {
		item.Name = *f.Name
	}
	if f.Quantity != nil {
		item.Quantity = *f.Quantity
	}
	if f.PlannedValue != nil {
		item.PlannedValue = *f.PlannedValue
	}
	if f.ActualValue != nil {
		item.ActualValue = *f.ActualValue
	}
	if f.Purchased != nil {
		item.Purchased = *f.Purchased
	}
	return item
}
